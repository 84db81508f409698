package keystore

import (
	"context"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/openg2p/vci-service/config"
	"github.com/openg2p/vci-service/pkg/encryption"
	"github.com/openg2p/vci-service/pkg/storage"
)

// ResolveServiceKey returns the configured service key, or derives it from the configured password using Argon2id and
// a salt kept in db.
func ResolveServiceKey(ctx context.Context, db storage.ServiceStorage, cfg config.KeyStoreServiceConfig) ([]byte, error) {
	if cfg.ServiceKey != "" {
		key, err := encryption.DecodeKey(cfg.ServiceKey)
		if err != nil {
			return nil, errors.Wrap(err, "decoding configured service key")
		}
		return key, nil
	}
	if cfg.ServiceKeyPassword == "" {
		return nil, errors.New("either a service key or a service key password must be configured")
	}

	salt, err := loadOrCreateSalt(ctx, db)
	if err != nil {
		return nil, err
	}
	key, err := encryption.DeriveKey(cfg.ServiceKeyPassword, salt)
	if err != nil {
		return nil, errors.Wrap(err, "deriving service key")
	}
	return key, nil
}

// deriveSecret expands the service key into an independent secret for the given purpose.
func deriveSecret(serviceKey []byte, purpose string, size int) ([]byte, error) {
	secret := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, serviceKey, nil, []byte(purpose)), secret); err != nil {
		return nil, errors.Wrapf(err, "deriving secret for %s", purpose)
	}
	return secret, nil
}
