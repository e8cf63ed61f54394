package auth

import (
	"testing"
	"time"

	"github.com/findosh/quantdesk/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	return NewService(config.AuthConfig{
		JWTSecret:        "test-secret",
		ClientID:         "dashboard",
		ClientSecretHash: string(hash),
		TokenExpiry:      "1h",
	})
}

func TestIssueAndValidateToken(t *testing.T) {
	s := newTestService(t)

	token, err := s.IssueToken("dashboard", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.NotEmpty(t, token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	claims, err := s.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestIssueToken_InvalidCredentials(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		name     string
		clientID string
		secret   string
	}{
		{"wrong secret", "dashboard", "guess"},
		{"wrong client", "other", "s3cret"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.IssueToken(tt.clientID, tt.secret)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestIssueToken_Disabled(t *testing.T) {
	s := NewService(config.AuthConfig{JWTSecret: "x"})

	assert.False(t, s.Enabled())
	_, err := s.IssueToken("dashboard", "s3cret")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestValidateToken_Expired(t *testing.T) {
	s := newTestService(t)
	issued := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return issued }

	token, err := s.IssueToken("dashboard", "s3cret")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateToken_Rejects(t *testing.T) {
	s := newTestService(t)

	token, err := s.IssueToken("dashboard", "s3cret")
	require.NoError(t, err)

	other := newTestService(t)
	other.cfg.JWTSecret = "another-secret"

	foreignClaims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "intruder",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, foreignClaims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:  issuer,
		Subject: "dashboard",
	}}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		svc   *Service
		token string
	}{
		{"garbage", s, "not-a-token"},
		{"wrong key", other, token.AccessToken},
		{"unknown subject", s, foreign},
		{"missing expiry", s, noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}
