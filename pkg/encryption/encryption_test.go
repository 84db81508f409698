package encryption

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateSalt(KeySize)
	require.NoError(t, err)
	encrypter := NewXChaCha20Poly1305EncrypterWithKeyResolver(func(ctx context.Context) ([]byte, error) {
		return key, nil
	})

	t.Run("round trips with associated data", func(tt *testing.T) {
		plaintext := []byte(`{"kty":"OKP","crv":"Ed25519"}`)
		ciphertext, err := encrypter.Encrypt(context.Background(), plaintext, []byte("issuer"))
		assert.NoError(tt, err)
		assert.NotEqual(tt, plaintext, ciphertext)

		decrypted, err := encrypter.Decrypt(context.Background(), ciphertext, []byte("issuer"))
		assert.NoError(tt, err)
		assert.Equal(tt, plaintext, decrypted)

		_, err = encrypter.Decrypt(context.Background(), ciphertext, []byte("other"))
		assert.Error(tt, err)
	})

	t.Run("nil ciphertext decrypts to nil", func(tt *testing.T) {
		decrypted, err := encrypter.Decrypt(context.Background(), nil, nil)
		assert.NoError(tt, err)
		assert.Nil(tt, decrypted)
	})

	t.Run("short ciphertext fails", func(tt *testing.T) {
		_, err := encrypter.Decrypt(context.Background(), []byte("short"), nil)
		assert.ErrorContains(tt, err, "ciphertext too short")
	})

	t.Run("wrong key fails", func(tt *testing.T) {
		ciphertext, err := encrypter.Encrypt(context.Background(), []byte("secret"), nil)
		require.NoError(tt, err)
		other := NewXChaCha20Poly1305EncrypterWithKey(make([]byte, KeySize))
		_, err = other.Decrypt(context.Background(), ciphertext, nil)
		assert.Error(tt, err)
	})
}

func TestDeriveKey(t *testing.T) {
	salt, err := GenerateSalt(SaltSize)
	require.NoError(t, err)

	key, err := DeriveKey("test-password", salt)
	assert.NoError(t, err)
	assert.Len(t, key, KeySize)

	again, err := DeriveKey("test-password", salt)
	assert.NoError(t, err)
	assert.Equal(t, key, again)

	_, err = DeriveKey("", salt)
	assert.Error(t, err)
	_, err = DeriveKey("test-password", nil)
	assert.Error(t, err)
}

func TestEncodeDecodeKey(t *testing.T) {
	key, err := GenerateSalt(KeySize)
	require.NoError(t, err)

	decoded, err := DecodeKey(EncodeKey(key))
	assert.NoError(t, err)
	assert.Equal(t, key, decoded)

	_, err = DecodeKey(EncodeKey([]byte("too short")))
	assert.ErrorContains(t, err, "key must be 32 bytes")
}
