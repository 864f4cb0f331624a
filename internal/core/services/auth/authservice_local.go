package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.com/arbfn-2025.net/internal/config"
	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

var _ IAuthService = &localAuthService{}

// localAuthService authenticates the single operator account of the config
type localAuthService struct {
	user         string
	passwordHash string
	jwtProvider  primary.JWTService
	logger       primary.Logger
}

func NewLocalAuthService(
	cfg *config.JwtConfig,
	jwtProvider primary.JWTService,
	logger primary.Logger,
) IAuthService {
	return &localAuthService{
		user:         cfg.AdminUser,
		passwordHash: cfg.AdminPasswordHash,
		jwtProvider:  jwtProvider,
		logger:       logger,
	}
}

func (g localAuthService) Login(ctx context.Context, req domain.LoginRequest) (string, error) {
	if req.Username == "" {
		return "", errs.UsernameEmpty
	}
	if g.passwordHash == "" || req.Username != g.user {
		return "", errs.InvalidCredentials
	}

	valid, err := g.jwtProvider.VerifyPassword(ctx, g.passwordHash, req.Password)
	if err != nil || !valid {
		g.logger.Warn("Rejected admin login", "username", req.Username)
		return "", errs.InvalidCredentials
	}

	token, err := g.jwtProvider.GenerateTokenHMAC(ctx, jwt.SigningMethodHS256.Name, map[string]interface{}{
		"username":   req.Username,
		"permission": []string{domain.PermissionMonitor},
	})
	if err != nil {
		g.logger.Error("Failed to sign token", "error", err)
		return "", errs.GeneratingToken
	}
	return token, nil
}
