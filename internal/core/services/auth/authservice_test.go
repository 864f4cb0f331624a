package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/arbfn-2025.net/internal/adapter/crypto"
	"gitlab.com/arbfn-2025.net/internal/adapter/logging"
	"gitlab.com/arbfn-2025.net/internal/config"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

func newService(t *testing.T) (IAuthService, *config.JwtConfig) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.JwtConfig{Secret: "k", AdminUser: "admin", AdminPasswordHash: string(hash)}
	return NewLocalAuthService(cfg, crypto.NewJWTService(cfg), logging.NewNopLogger()), cfg
}

func TestLoginIssuesMonitorToken(t *testing.T) {
	svc, cfg := newService(t)
	token, err := svc.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "pw"})
	require.NoError(t, err)

	payload, err := crypto.NewJWTService(cfg).DecodeTokenPayload(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "admin", payload.Username)
	assert.Contains(t, payload.Permission, domain.PermissionMonitor)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, domain.LoginRequest{Username: "admin", Password: "nope"})
	assert.ErrorIs(t, err, errs.InvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "root", Password: "pw"})
	assert.ErrorIs(t, err, errs.InvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Password: "pw"})
	assert.ErrorIs(t, err, errs.UsernameEmpty)
}

func TestLoginWithoutConfiguredHash(t *testing.T) {
	cfg := &config.JwtConfig{Secret: "k", AdminUser: "admin"}
	svc := NewLocalAuthService(cfg, crypto.NewJWTService(cfg), logging.NewNopLogger())
	_, err := svc.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: ""})
	assert.ErrorIs(t, err, errs.InvalidCredentials)
}
