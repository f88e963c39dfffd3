package services

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
)

// Identity is what the rest of the service knows about a caller.
type Identity struct {
	UID   string
	Email string
}

type AuthService interface {
	VerifyIDToken(tokenString string) (Identity, error)
}

type authService struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthService(log *logger.Logger, secretKey string) (AuthService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("missing JWT_SECRET_KEY")
	}
	return &authService{
		log:    log.With("service", "AuthService"),
		secret: []byte(secretKey),
	}, nil
}

// VerifyIDToken fails closed: any parse, signature, or claim problem is a 401.
func (s *authService) VerifyIDToken(tokenString string) (Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Identity{}, apierr.Newf(http.StatusUnauthorized, "missing_token", "missing bearer token")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("token verification failed: %w", err))
	}

	uid := claimString(claims, "sub")
	if uid == "" {
		uid = claimString(claims, "uid")
	}
	if uid == "" {
		return Identity{}, apierr.Newf(http.StatusUnauthorized, "invalid_token", "no uid in token")
	}

	return Identity{
		UID:   uid,
		Email: claimString(claims, "email"),
	}, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
