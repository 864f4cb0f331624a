package response

import (
	"net/http"

	"github.com/bytedance/sonic"
)

type ErrorMessage struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

func WriteError(w http.ResponseWriter, err ErrorMessage) {
	body, _ := sonic.Marshal(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_, _ = w.Write(body)
}

func WriteSuccess(w http.ResponseWriter, data interface{}) {
	body, err := sonic.Marshal(data)
	if err != nil {
		WriteError(w, ErrorMessage{Message: "failed to encode response", StatusCode: http.StatusInternalServerError})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
