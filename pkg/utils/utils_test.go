package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Encrypt("ya29.secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "ya29")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ya29.secret", plain)
}

func TestTokenCipherEmptyAndInvalid(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	_, err = c.Decrypt("AAAA")
	assert.Error(t, err)

	_, err = NewTokenCipher([]byte("short"))
	assert.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("secret", "user-1", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, err = ValidateToken("other-secret", token)
	assert.Error(t, err)

	expired, err := GenerateToken("secret", "user-1", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken("secret", expired)
	assert.Error(t, err)

	_, err = ValidateToken("secret", strings.Repeat("x", 10))
	assert.Error(t, err)
}
