package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned when the admin password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminSubject is the token subject of the admin.
const AdminSubject = "admin"

// Service checks the admin password and issues API tokens.
type Service struct {
	passwordHash string
	jwtConfig    *JWTConfig
}

// NewService creates an auth service for a bcrypt password hash.
func NewService(passwordHash string, jwtConfig *JWTConfig) *Service {
	return &Service{
		passwordHash: passwordHash,
		jwtConfig:    jwtConfig,
	}
}

// Login validates the password and returns a JWT token.
func (s *Service) Login(password string) (string, error) {
	if s.passwordHash == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	if err := ComparePassword(s.passwordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, AdminSubject)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
