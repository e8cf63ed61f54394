// Package auth issues and validates bearer tokens for API clients
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/findosh/quantdesk/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "quantdesk"

var (
	ErrAuthDisabled       = errors.New("authentication is not configured")
	ErrInvalidCredentials = errors.New("invalid client id or secret")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims are the JWT claims carried by a client token
type Claims struct {
	jwt.RegisteredClaims
}

// Token is a signed access token handed to a client
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service handles client authentication. One client id and bcrypt hashed
// secret are configured; tokens are HS256 JWTs.
type Service struct {
	cfg config.AuthConfig
	now func() time.Time
}

// NewService creates a new auth service
func NewService(cfg config.AuthConfig) *Service {
	return &Service{cfg: cfg, now: time.Now}
}

// Enabled reports whether requests must carry a token
func (s *Service) Enabled() bool {
	return s.cfg.Enabled()
}

// HashSecret returns the bcrypt hash to configure for a client secret
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// IssueToken exchanges client credentials for a signed token
func (s *Service) IssueToken(clientID, clientSecret string) (*Token, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}

	if subtle.ConstantTimeCompare([]byte(clientID), []byte(s.cfg.ClientID)) != 1 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.ClientSecretHash), []byte(clientSecret)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	expires := now.Add(s.cfg.GetTokenExpiry())

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   clientID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
	}, nil
}

// ValidateToken verifies a token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject != s.cfg.ClientID {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
