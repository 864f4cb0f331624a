package handlers

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/domain"
)

type payloadKey struct{}

type MiddlewareProvider struct {
	jwt        primary.JWTService
	permission string
}

func New(jwt primary.JWTService, permission string) *MiddlewareProvider {
	return &MiddlewareProvider{
		jwt:        jwt,
		permission: permission,
	}
}

// JWTMiddleware admits requests carrying a valid bearer token that grants
// the provider's permission.
func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			ResponseError(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		// Extract token from "Bearer <token>"
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		payload, err := m.jwt.DecodeTokenPayload(r.Context(), tokenString)
		if err != nil {
			ResponseError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if m.permission != "" && !slices.Contains(payload.Permission, m.permission) {
			ResponseError(w, "Permission denied", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), payloadKey{}, payload)))
	})
}

// PayloadFrom returns the claims the middleware attached to ctx
func PayloadFrom(ctx context.Context) (domain.AuthPayload, bool) {
	payload, ok := ctx.Value(payloadKey{}).(domain.AuthPayload)
	return payload, ok
}
