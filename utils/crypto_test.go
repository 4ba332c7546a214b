package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Setenv("DATA_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")

	ciphertext, err := Encrypt([]byte("access-token-value"))
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "access-token-value")

	plain, err := Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "access-token-value", string(plain))
}

func TestEncryptRequiresKey(t *testing.T) {
	t.Setenv("DATA_ENCRYPTION_KEY", "too-short")

	_, err := Encrypt([]byte("x"))
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	t.Setenv("DATA_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")

	_, err := Decrypt("bm90LXJlYWwtY2lwaGVydGV4dA==")
	assert.Error(t, err)
}
