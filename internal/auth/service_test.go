package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "voiceaccess",
		Audience: "admin-api",
		TTL:      time.Hour,
	}
	return NewService(hash, jwtConfig)
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc := newTestAuthService(t)

	token, err := svc.Login("hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != AdminSubject || claims.Role != RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := newTestAuthService(t)

	if _, err := svc.Login("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := NewService("", svc.jwtConfig).Login("anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty hash must never authenticate, got %v", err)
	}
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	svc := newTestAuthService(t)

	other := &JWTConfig{Secret: []byte("other-secret"), Issuer: "voiceaccess", Audience: "admin-api", TTL: time.Hour}
	forged, err := GenerateToken(other, AdminSubject)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.ValidateToken(forged); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}

	wrongAud := *svc.jwtConfig
	wrongAud.Audience = "someone-else"
	token, _ := GenerateToken(&wrongAud, AdminSubject)
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("token for another audience must be rejected")
	}

	expired := *svc.jwtConfig
	expired.TTL = -time.Minute
	token, _ = GenerateToken(&expired, AdminSubject)
	if _, err := svc.ValidateToken(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}
