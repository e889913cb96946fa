package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botsentinel/botsentinel/internal/auth"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := auth.NewJWTService("test-signing-key", "botsentinel")

	token, expiresAt, err := svc.GenerateToken("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.TokenExpiry), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Operator)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "botsentinel", claims.Issuer)
}

func TestJWTService_RejectsWrongKey(t *testing.T) {
	token, _, err := auth.NewJWTService("key-one", "botsentinel").GenerateToken("alice")
	require.NoError(t, err)

	_, err = auth.NewJWTService("key-two", "botsentinel").ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_RejectsWrongIssuer(t *testing.T) {
	token, _, err := auth.NewJWTService("key", "someone-else").GenerateToken("alice")
	require.NoError(t, err)

	_, err = auth.NewJWTService("key", "botsentinel").ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_RejectsGarbage(t *testing.T) {
	svc := auth.NewJWTService("key", "botsentinel")
	_, err := svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
