package services

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
)

const testJWTSecret = "unit-test-secret"

func newTestAuthService(t *testing.T) AuthService {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	svc, err := NewAuthService(log, testJWTSecret)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return svc
}

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestVerifyIDTokenValid(t *testing.T) {
	svc := newTestAuthService(t)

	tok := signHS256(t, jwt.MapClaims{"sub": "user-123", "email": "a@example.com"})
	identity, err := svc.VerifyIDToken(tok)
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if identity.UID != "user-123" || identity.Email != "a@example.com" {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestVerifyIDTokenUIDFallback(t *testing.T) {
	svc := newTestAuthService(t)

	tok := signHS256(t, jwt.MapClaims{"uid": "user-456"})
	identity, err := svc.VerifyIDToken(tok)
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if identity.UID != "user-456" {
		t.Fatalf("uid = %q, want fallback claim", identity.UID)
	}
}

func TestVerifyIDTokenRejects(t *testing.T) {
	svc := newTestAuthService(t)

	otherSecret, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).
		SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := []struct {
		name     string
		token    string
		wantCode string
	}{
		{"empty", "", "missing_token"},
		{"garbage", "not.a.jwt", "invalid_token"},
		{"wrong secret", otherSecret, "invalid_token"},
		{"unsigned alg", unsignedToken(t, jwt.MapClaims{"sub": "u"}), "invalid_token"},
		{"no uid claim", signHS256(t, jwt.MapClaims{"email": "a@example.com"}), "invalid_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.VerifyIDToken(tc.token)
			if err == nil {
				t.Fatal("expected rejection")
			}
			var ae *apierr.Error
			if !errors.As(err, &ae) {
				t.Fatalf("expected api error, got %v", err)
			}
			if ae.Status != 401 || ae.Code != tc.wantCode {
				t.Fatalf("got %d/%s, want 401/%s", ae.Status, ae.Code, tc.wantCode)
			}
		})
	}
}

func unsignedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	return signed
}
