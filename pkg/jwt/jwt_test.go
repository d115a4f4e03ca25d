package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePairRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour, "refresh-secret", 2*time.Hour)

	pair, err := svc.GeneratePair(42, "ada@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	claims, err := svc.ValidateToken(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)

	refreshClaims, err := svc.ValidateRefreshToken(pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, uint(42), refreshClaims.UserID)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := NewService("secret-a", time.Hour, "", 0)
	other := NewService("secret-b", time.Hour, "", 0)

	pair, err := svc.GeneratePair(1, "u@example.com")
	require.NoError(t, err)

	_, err = other.ValidateToken(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsRefreshAsAccess(t *testing.T) {
	svc := NewService("secret-a", time.Hour, "refresh-a", time.Hour)

	pair, err := svc.GeneratePair(1, "u@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateToken(pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewService("secret-a", -time.Minute, "", 0)

	pair, err := svc.GeneratePair(1, "u@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateToken(pair.Access)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
