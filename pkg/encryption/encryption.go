// Package encryption holds the symmetric primitives used to protect data at rest and to derive the service key.
package encryption

import (
	"context"
	"crypto/rand"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// SaltSize is the recommended salt size for argon2, 16 bytes.
	// https://tools.ietf.org/id/draft-irtf-cfrg-argon2-05.html#rfc.section.3.1
	SaltSize = 16

	// KeySize is the size of keys accepted by the XChaCha20-Poly1305 encrypter.
	KeySize = chacha20poly1305.KeySize

	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// Encrypter the interface for any encrypter implementation.
type Encrypter interface {
	Encrypt(ctx context.Context, plaintext, contextData []byte) ([]byte, error)
}

// Decrypter is the interface for any decrypter.
type Decrypter interface {
	// Decrypt decrypts ciphertext. The second parameter is treated as associated data for AEAD (as abstracted in
	// https://datatracker.ietf.org/doc/html/rfc5116).
	Decrypt(ctx context.Context, ciphertext, contextInfo []byte) ([]byte, error)
}

type KeyResolver func(ctx context.Context) ([]byte, error)

type XChaCha20Poly1305Encrypter struct {
	keyResolver KeyResolver
}

func NewXChaCha20Poly1305EncrypterWithKey(key []byte) *XChaCha20Poly1305Encrypter {
	return &XChaCha20Poly1305Encrypter{func(ctx context.Context) ([]byte, error) {
		return key, nil
	}}
}

func NewXChaCha20Poly1305EncrypterWithKeyResolver(resolver KeyResolver) *XChaCha20Poly1305Encrypter {
	return &XChaCha20Poly1305Encrypter{resolver}
}

func (k XChaCha20Poly1305Encrypter) Encrypt(ctx context.Context, plaintext, contextData []byte) ([]byte, error) {
	key, err := k.keyResolver(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving key")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating aead with provided key")
	}

	// random nonce, leaving room for the ciphertext
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err = rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "generating nonce for encryption")
	}
	return aead.Seal(nonce, nonce, plaintext, contextData), nil
}

func (k XChaCha20Poly1305Encrypter) Decrypt(ctx context.Context, ciphertext, contextInfo []byte) ([]byte, error) {
	if ciphertext == nil {
		return nil, nil
	}

	key, err := k.keyResolver(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving key")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating aead with provided key")
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short; could not decrypt data")
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	decrypted, err := aead.Open(nil, nonce, sealed, contextInfo)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not decrypt data")
	}
	return decrypted, nil
}

var _ Decrypter = (*XChaCha20Poly1305Encrypter)(nil)
var _ Encrypter = (*XChaCha20Poly1305Encrypter)(nil)

// DeriveKey stretches a password into a KeySize key using Argon2id.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	if len(salt) == 0 {
		return nil, errors.New("salt cannot be empty")
	}
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, KeySize), nil
}

// GenerateSalt generates a random salt value for a given size
func GenerateSalt(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("invalid size")
	}
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// DecodeKey decodes a base58 encoded KeySize key.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decoding base58 key")
	}
	if len(key) != KeySize {
		return nil, errors.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// EncodeKey is the inverse of DecodeKey.
func EncodeKey(key []byte) string {
	return base58.Encode(key)
}
