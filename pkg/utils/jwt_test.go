package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateTokenPair(t *testing.T) {
	svc := NewJWTService("test-secret", 15*time.Minute, 7*24*time.Hour)

	access, refresh, expiresIn, err := svc.GenerateTokenPair("user-1", "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)
	assert.Greater(t, expiresIn, time.Now().Unix())

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "access", claims.Type)

	refreshClaims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims.Type)
}

func TestValidateRefreshTokenRejectsAccessToken(t *testing.T) {
	svc := NewJWTService("test-secret", 15*time.Minute, 7*24*time.Hour)

	access, _, _, err := svc.GenerateTokenPair("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateRefreshToken(access)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := NewJWTService("test-secret", 15*time.Minute, 7*24*time.Hour)
	other := NewJWTService("other-secret", 15*time.Minute, 7*24*time.Hour)

	access, _, err := svc.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = other.ValidateToken(access)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", time.Nanosecond, 7*24*time.Hour)

	access, _, err := svc.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	time.Sleep(time.Second + 50*time.Millisecond)
	_, err = svc.ValidateToken(access)
	assert.Error(t, err)
}

func TestRefreshAccessToken(t *testing.T) {
	svc := NewJWTService("test-secret", 15*time.Minute, 7*24*time.Hour)

	_, refresh, _, err := svc.GenerateTokenPair("user-1", "alice@example.com")
	require.NoError(t, err)

	access, expiresAt, err := svc.RefreshAccessToken(refresh)
	require.NoError(t, err)
	assert.Greater(t, expiresAt, time.Now().Unix())

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)
	assert.Contains(t, hash, "$")

	assert.True(t, VerifyPassword("s3cret-password", hash))
	assert.False(t, VerifyPassword("wrong-password", hash))
	assert.False(t, VerifyPassword("s3cret-password", "not-a-valid-hash"))

	// Fresh salt per hash
	hash2, err := HashPassword("s3cret-password")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
}

func TestGenerateInviteCode(t *testing.T) {
	code, err := GenerateInviteCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	for _, r := range code {
		assert.Contains(t, inviteAlphabet, string(r))
	}
	assert.NotContains(t, code, "0")
	assert.NotContains(t, code, "O")

	// Zero length falls back to the default
	code, err = GenerateInviteCode(0)
	require.NoError(t, err)
	assert.Len(t, code, 8)
}

func TestGenerateURLToken(t *testing.T) {
	token, err := GenerateURLToken(24)
	require.NoError(t, err)
	assert.Equal(t, 32, len(token))
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
}
