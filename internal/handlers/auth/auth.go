package auth

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"

	"gitlab.com/arbfn-2025.net/internal/core/services/auth"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/handlers/response"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

const maxLoginBody = 1 << 16

type Handler struct {
	authService auth.IAuthService
}

func NewHandler(authService auth.IAuthService) *Handler {
	return &Handler{
		authService: authService,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
}

// Login exchanges operator credentials for a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLoginBody))
	if err != nil {
		response.WriteError(w, response.ErrorMessage{Message: "failed to read request", StatusCode: http.StatusBadRequest})
		return
	}

	var req domain.LoginRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		response.WriteError(w, response.ErrorMessage{Message: "invalid request", StatusCode: http.StatusBadRequest})
		return
	}

	token, err := h.authService.Login(r.Context(), req)
	if err != nil {
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, errs.UsernameEmpty):
			status = http.StatusBadRequest
		case errors.Is(err, errs.GeneratingToken):
			status = http.StatusInternalServerError
		}
		response.WriteError(w, response.ErrorMessage{Message: err.Error(), StatusCode: status})
		return
	}

	response.WriteSuccess(w, domain.LoginResponse{Token: token})
}
