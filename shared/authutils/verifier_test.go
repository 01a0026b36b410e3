package authutils

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestVerifyToken(t *testing.T) {
	v, err := NewJWTVerifier(secret, nil)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		token, err := IssueToken(secret, "user-1", time.Hour)
		require.NoError(t, err)
		claims, err := v.VerifyToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := IssueToken(secret, "user-1", -time.Minute)
		require.NoError(t, err)
		_, err = v.VerifyToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := IssueToken("other", "user-1", time.Hour)
		require.NoError(t, err)
		_, err = v.VerifyToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := v.VerifyToken(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("missing user", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}).SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = v.VerifyToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("", nil)
	assert.Error(t, err)
}
