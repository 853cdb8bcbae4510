// Package auth issues and validates access tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried by HeartCare access tokens.
// The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenConfig holds signing settings.
type TokenConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// TokenService signs and validates HS256 access tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a TokenService. A secret is required.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token service requires a secret")
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = 8 * 24 * time.Hour
	}
	return &TokenService{config: cfg, now: time.Now}, nil
}

// Expiration returns the configured token lifetime.
func (s *TokenService) Expiration() time.Duration {
	return s.config.Expiration
}

// Issue creates a signed token for the user.
func (s *TokenService) Issue(userID, username string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token string and returns its claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
