package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	sealed, err := SealString("correct horse", "sk-test-123")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "sk-test-123")

	plain, err := OpenString("correct horse", sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", plain)

	_, err = OpenString("wrong", sealed)
	assert.Error(t, err)

	_, err = OpenString("", sealed)
	assert.Error(t, err)
}

func TestOpenStringPassesPlaintextThrough(t *testing.T) {
	plain, err := OpenString("", "not-encrypted")
	require.NoError(t, err)
	assert.Equal(t, "not-encrypted", plain)
}

func TestSealStringRequiresPassphrase(t *testing.T) {
	_, err := SealString("", "x")
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": exp.Unix(),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	got, err := TokenExpiry(tok)
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = TokenExpiry(noExp)
	assert.ErrorIs(t, err, ErrNoExpiry)

	_, err = TokenExpiry("opaque-token")
	assert.Error(t, err)
}

func TestRedactSecrets(t *testing.T) {
	in := map[string]interface{}{
		"openaiApiKey":    "sk-live",
		"openrouteApiKey": "",
		"userAgent":       "SecurityScanner/1.0",
	}
	out := RedactSecrets(in).(map[string]interface{})
	assert.Equal(t, "[REDACTED]", out["openaiApiKey"])
	assert.Equal(t, "", out["openrouteApiKey"])
	assert.Equal(t, "SecurityScanner/1.0", out["userAgent"])
}

func TestMaskSensitiveData(t *testing.T) {
	assert.Equal(t, "****", MaskSensitiveData("abc"))
	assert.Equal(t, "sk****yz", MaskSensitiveData("sk-abcxyz"))
}
