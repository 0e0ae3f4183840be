package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const operatorRole = "operator"

type operatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and checks the HS256 tokens that guard operator routes
// (manual status update, bulk sweep).
type AuthService struct {
	JWTSecret string
	Now       func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) Enabled() bool {
	return s != nil && s.JWTSecret != ""
}

func (s *AuthService) IssueOperatorToken(subject string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("jwt secret not configured")
	}
	if strings.TrimSpace(subject) == "" {
		return "", ErrBadRequest("subject required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := s.now()
	claims := operatorClaims{
		Role: operatorRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.JWTSecret))
}

// ParseOperatorToken returns the token subject.
func (s *AuthService) ParseOperatorToken(token string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("jwt secret not configured")
	}
	var claims operatorClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(s.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", ErrUnauthorized("invalid token: " + err.Error())
	}
	if claims.Role != operatorRole {
		return "", ErrUnauthorized("operator role required")
	}
	return claims.Subject, nil
}
