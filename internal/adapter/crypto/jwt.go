package crypto

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/arbfn-2025.net/internal/config"
	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

var _ primary.JWTService = (*JWTServiceImpl)(nil)

type JWTServiceImpl struct {
	HMACSecretKey string
	TTL           time.Duration
}

func NewJWTService(jwtConfig *config.JwtConfig) primary.JWTService {
	ttl := jwtConfig.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTServiceImpl{
		HMACSecretKey: jwtConfig.Secret,
		TTL:           ttl,
	}
}

func (J JWTServiceImpl) GenerateTokenHMAC(ctx context.Context, method string, claims map[string]interface{}) (string, error) {
	signingMethod := jwt.GetSigningMethod(method)
	if signingMethod == nil {
		return "", fmt.Errorf("unsupported signing method: %s", method)
	}
	if _, ok := signingMethod.(*jwt.SigningMethodHMAC); !ok {
		return "", fmt.Errorf("signing method %s is not HMAC", method)
	}

	// Ensure the claims map contains an expiration time
	if _, exists := claims["exp"]; !exists {
		claims["exp"] = time.Now().Add(J.TTL).Unix()
	}

	tok := jwt.NewWithClaims(signingMethod, jwt.MapClaims(claims))
	return tok.SignedString([]byte(J.HMACSecretKey))
}

func (J JWTServiceImpl) VerifyTokenHMAC(ctx context.Context, token string, method string) (bool, error) {
	parsed, err := J.parse(token, method)
	if err != nil {
		return false, err
	}
	return parsed.Valid, nil
}

func (J JWTServiceImpl) DecodeTokenPayload(ctx context.Context, token string) (domain.AuthPayload, error) {
	parsed, err := J.parse(token, jwt.SigningMethodHS256.Name)
	if err != nil {
		return domain.AuthPayload{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.AuthPayload{}, errs.InvalidToken
	}
	raw, err := sonic.Marshal(claims)
	if err != nil {
		return domain.AuthPayload{}, fmt.Errorf("failed to read token claims: %w", err)
	}

	var payload domain.AuthPayload
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return domain.AuthPayload{}, fmt.Errorf("failed to parse AuthPayload: %w", err)
	}
	return payload, nil
}

func (JWTServiceImpl) VerifyPassword(ctx context.Context, passwordHash string, pwd string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pwd))
	if err != nil {
		return false, err
	}
	return true, nil
}

func (J JWTServiceImpl) EncryptPassword(ctx context.Context, password string) (string, error) {
	pwd, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (J JWTServiceImpl) parse(token string, method string) (*jwt.Token, error) {
	signingMethod := jwt.GetSigningMethod(method)
	if signingMethod == nil {
		return nil, fmt.Errorf("unsupported signing method: %s", method)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(J.HMACSecretKey), nil
	}, jwt.WithValidMethods([]string{signingMethod.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.InvalidToken, err)
	}
	return parsed, nil
}
