package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
}

func TestJWT(t *testing.T) {
	tok, err := SignJWT(42, "a@b.c", "s3cret", time.Hour)
	require.NoError(t, err)

	uid, claims, err := ParseJWT(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	assert.Equal(t, "a@b.c", claims.Email)

	_, _, err = ParseJWT(tok, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := SignJWT(42, "", "s3cret", -time.Minute)
	require.NoError(t, err)
	_, _, err = ParseJWT(expired, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
