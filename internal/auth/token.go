package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ScopeWorkflows = "workflows"
	ScopePush      = "push"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// TokenService issues and verifies HS256 tokens for the HTTP API.
type TokenService struct {
	secret []byte
	issuer string
}

func NewTokenService(secret, issuer string) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes, got %d", len(secret))
	}

	return &TokenService{secret: []byte(secret), issuer: issuer}, nil
}

func (s *TokenService) Issue(subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

func (s *TokenService) Verify(token string) (Claims, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims, nil
}
