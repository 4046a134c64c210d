package services_test

import (
	"testing"
	"time"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_TokenRoundTrip(t *testing.T) {
	svc := services.NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	token, err := svc.GenerateToken(domain.UserID("alice"), "alice")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	svc := services.NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, services.ErrInvalidToken)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := services.NewAuthService("other-secret", 15*time.Minute, 24*time.Hour)
		token, err := other.GenerateToken(domain.UserID("alice"), "alice")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, services.ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		shortLived := services.NewAuthService("test-secret", -time.Minute, 24*time.Hour)
		token, err := shortLived.GenerateToken(domain.UserID("alice"), "alice")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, services.ErrExpiredToken)
	})
}

func TestAuthService_RefreshToken(t *testing.T) {
	svc := services.NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	refresh, err := svc.GenerateRefreshToken(domain.UserID("alice"))
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), claims.UserID)
}
