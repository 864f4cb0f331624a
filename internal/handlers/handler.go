package handlers

import (
	"net/http"

	"github.com/bytedance/sonic"
)

func ResponseWithJson(w http.ResponseWriter, statusCode int, data interface{}) {
	body, err := sonic.Marshal(data)
	if err != nil {
		ResponseError(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

func ResponseError(w http.ResponseWriter, message string, code int) {
	body, _ := sonic.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
