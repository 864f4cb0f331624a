package auth

import (
	"context"

	"gitlab.com/arbfn-2025.net/internal/domain"
)

type IAuthService interface {
	// Login checks the credentials and returns a signed token
	Login(ctx context.Context, req domain.LoginRequest) (string, error)
}
