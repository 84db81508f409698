package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/openg2p/vci-service/pkg/encryption"
)

// ErrIntegrity is returned when a stored value fails authentication, which means it was altered or sealed with
// another key.
var ErrIntegrity = errors.New("storage integrity check failed")

// EncryptedWrapper seals values written through it with an AEAD. Namespaces and keys stay readable by the
// wrapped storage and are bound to each value as associated data, so a value copied under another key no longer
// opens. Everything apart from reads and writes is served by the wrapped storage.
type EncryptedWrapper struct {
	ServiceStorage
	encrypter encryption.Encrypter
	decrypter encryption.Decrypter
}

func NewEncryptedWrapper(s ServiceStorage, encrypter encryption.Encrypter, decrypter encryption.Decrypter) *EncryptedWrapper {
	return &EncryptedWrapper{ServiceStorage: s, encrypter: encrypter, decrypter: decrypter}
}

func associatedData(namespace, key string) []byte {
	return []byte(namespace + "\x00" + key)
}

func (e EncryptedWrapper) Write(ctx context.Context, namespace, key string, value []byte) error {
	sealed, err := e.encrypter.Encrypt(ctx, value, associatedData(namespace, key))
	if err != nil {
		return errors.Wrapf(err, "sealing value of %s/%s", namespace, key)
	}
	return e.ServiceStorage.Write(ctx, namespace, key, sealed)
}

func (e EncryptedWrapper) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	sealed, err := e.ServiceStorage.Read(ctx, namespace, key)
	if err != nil || sealed == nil {
		return nil, err
	}
	return e.open(ctx, namespace, key, sealed)
}

func (e EncryptedWrapper) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	sealedValues, err := e.ServiceStorage.ReadAll(ctx, namespace)
	if err != nil {
		return nil, err
	}
	values := make(map[string][]byte, len(sealedValues))
	for key, sealed := range sealedValues {
		if values[key], err = e.open(ctx, namespace, key, sealed); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (e EncryptedWrapper) open(ctx context.Context, namespace, key string, sealed []byte) ([]byte, error) {
	value, err := e.decrypter.Decrypt(ctx, sealed, associatedData(namespace, key))
	if err != nil {
		return nil, errors.Wrapf(ErrIntegrity, "opening value of %s/%s: %v", namespace, key, err)
	}
	return value, nil
}

var _ ServiceStorage = (*EncryptedWrapper)(nil)
