// Package testutil provides the storage backends service tests run against.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/openg2p/vci-service/pkg/encryption"
	"github.com/openg2p/vci-service/pkg/storage"
)

// TestDatabase opens a fresh, empty storage that is closed when the test ends.
type TestDatabase struct {
	Name           string
	ServiceStorage func(t *testing.T) storage.ServiceStorage
}

var TestDatabases = []TestDatabase{
	{Name: "Test with Bolt DB", ServiceStorage: boltTestDB},
	{Name: "Test with Redis DB", ServiceStorage: redisTestDB},
	{Name: "Test with Memory DB", ServiceStorage: memoryTestDB},
	{Name: "Test with encrypted Memory DB", ServiceStorage: encryptedTestDB},
}

func boltTestDB(t *testing.T) storage.ServiceStorage {
	return openTestDB(t, storage.Bolt, storage.Option{
		ID:     storage.BoltDBFilePathOption,
		Option: filepath.Join(t.TempDir(), "bolt.db"),
	})
}

func redisTestDB(t *testing.T) storage.ServiceStorage {
	return openTestDB(t, storage.Redis, storage.Option{
		ID:     storage.RedisAddressOption,
		Option: miniredis.RunT(t).Addr(),
	})
}

func memoryTestDB(t *testing.T) storage.ServiceStorage {
	return openTestDB(t, storage.Memory)
}

func encryptedTestDB(t *testing.T) storage.ServiceStorage {
	key, err := encryption.GenerateSalt(encryption.KeySize)
	require.NoError(t, err)
	encrypter := encryption.NewXChaCha20Poly1305EncrypterWithKey(key)
	return storage.NewEncryptedWrapper(memoryTestDB(t), encrypter, encrypter)
}

func openTestDB(t *testing.T, storageType storage.Type, opts ...storage.Option) storage.ServiceStorage {
	s, err := storage.NewStorage(storageType, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
