package keystore

import (
	"context"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/openg2p/vci-service/pkg/encryption"
	"github.com/openg2p/vci-service/pkg/storage"
)

// StoredKey represents a common data model to store data on all key types
type StoredKey struct {
	ID         string          `json:"id"`
	Controller string          `json:"controller"`
	KeyJWK     json.RawMessage `json:"key"`
	CreatedAt  string          `json:"createdAt"`
}

const (
	namespace = "keystore"

	serviceKeyNamespace = "service-key"
	serviceKeySaltKey   = "vci-service-key-salt"
)

type Storage struct {
	db storage.ServiceStorage
}

// NewKeyStoreStorage stores keys in db, encrypting every value with serviceKey.
func NewKeyStoreStorage(db storage.ServiceStorage, serviceKey []byte) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db reference is nil")
	}
	if len(serviceKey) != encryption.KeySize {
		return nil, errors.Errorf("service key must be %d bytes", encryption.KeySize)
	}
	encrypter := encryption.NewXChaCha20Poly1305EncrypterWithKey(serviceKey)
	return &Storage{db: storage.NewEncryptedWrapper(db, encrypter, encrypter)}, nil
}

func (kss *Storage) StoreKey(ctx context.Context, key StoredKey) error {
	id := key.ID
	if id == "" {
		return sdkutil.LoggingNewError("could not store key without an ID")
	}

	keyBytes, err := json.Marshal(key)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not store key: %s", id)
	}
	return kss.db.Write(ctx, namespace, id, keyBytes)
}

func (kss *Storage) GetKey(ctx context.Context, id string) (*StoredKey, error) {
	storedKeyBytes, err := kss.db.Read(ctx, namespace, id)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not get key details for key: %s", id)
	}
	if len(storedKeyBytes) == 0 {
		return nil, nil
	}

	var stored StoredKey
	if err = json.Unmarshal(storedKeyBytes, &stored); err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not unmarshal stored key: %s", id)
	}
	return &stored, nil
}

func (kss *Storage) DeleteKey(ctx context.Context, id string) error {
	exists, err := kss.db.Exists(ctx, namespace, id)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "checking key: %s", id)
	}
	if !exists {
		return nil
	}
	if err = kss.db.Delete(ctx, namespace, id); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not delete key: %s", id)
	}
	return nil
}

// loadOrCreateSalt returns the salt used to derive the service key from its password. The salt is created on first
// use so that restarts with the same password derive the same key.
func loadOrCreateSalt(ctx context.Context, db storage.ServiceStorage) ([]byte, error) {
	salt, err := db.Read(ctx, serviceKeyNamespace, serviceKeySaltKey)
	if err != nil {
		return nil, errors.Wrap(err, "reading service key salt")
	}
	if len(salt) != 0 {
		return salt, nil
	}

	salt, err = encryption.GenerateSalt(encryption.SaltSize)
	if err != nil {
		return nil, errors.Wrap(err, "generating service key salt")
	}
	if err = db.Write(ctx, serviceKeyNamespace, serviceKeySaltKey, salt); err != nil {
		return nil, errors.Wrap(err, "storing service key salt")
	}
	return salt, nil
}
