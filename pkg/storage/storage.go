package storage

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type (
	Type      string
	OptionKey string
)

const (
	Bolt        Type = "bolt"
	Redis       Type = "redis"
	DatabaseSQL Type = "sql"
	Memory      Type = "memory"

	// PasswordOption is shared by the providers that support authentication.
	PasswordOption OptionKey = "storage-password-option"
)

// Option represents a single, provider specific, storage option. Options are decoded from the `storage_option`
// entries of the service configuration.
type Option struct {
	ID     OptionKey `toml:"id" json:"id,omitempty"`
	Option any       `toml:"option" json:"option,omitempty"`
}

// ServiceStorage describes the api for storage independent of DB providers
type ServiceStorage interface {
	Init(opts ...Option) error
	Type() Type
	URI() string
	IsOpen() bool
	Close() error
	Write(ctx context.Context, namespace, key string, value []byte) error
	Read(ctx context.Context, namespace, key string) ([]byte, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	ReadAll(ctx context.Context, namespace string) (map[string][]byte, error)
	ReadAllKeys(ctx context.Context, namespace string) ([]string, error)
	Delete(ctx context.Context, namespace, key string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// availableStorages is filled by the init functions of the provider files, which may run before any init of this
// file, so it must be ready at variable initialization.
var availableStorages = make(map[Type]ServiceStorage)

// RegisterStorage registers a storage dynamically by its Type.
func RegisterStorage(storage ServiceStorage) error {
	if storage == nil {
		return errors.New("storage cannot be nil")
	}
	storageType := storage.Type()
	if IsStorageAvailable(storageType) {
		return fmt.Errorf("unable to register storage type %s, already registered", storageType)
	}

	availableStorages[storageType] = storage
	return nil
}

// IsStorageAvailable returns whether a storage provider has been registered for the given type.
func IsStorageAvailable(storage Type) bool {
	_, ok := availableStorages[storage]
	return ok
}

// NewStorage initializes the registered storage provider for the given type with the given options.
func NewStorage(storageProvider Type, opts ...Option) (ServiceStorage, error) {
	storage, ok := availableStorages[storageProvider]
	if !ok {
		return nil, fmt.Errorf("unsupported storage provider: %s", storageProvider)
	}
	// providers are registered as prototypes, hand out a fresh instance for every call
	instance := newInstance(storage)
	if err := instance.Init(opts...); err != nil {
		return nil, errors.Wrapf(err, "initializing %s storage", storageProvider)
	}
	logrus.Infof("initialized storage provider<%s> at <%s>", storageProvider, instance.URI())
	return instance, nil
}

func newInstance(prototype ServiceStorage) ServiceStorage {
	return reflect.New(reflect.TypeOf(prototype).Elem()).Interface().(ServiceStorage)
}

// Join combines a namespace and a key into a single, provider agnostic key.
func Join(parts ...string) string {
	return strings.Join(parts, "-")
}

func optionString(opts []Option, id OptionKey) (string, bool, error) {
	for _, opt := range opts {
		if opt.ID != id {
			continue
		}
		s, ok := opt.Option.(string)
		if !ok {
			return "", true, errors.Errorf("option<%s> must be a string", id)
		}
		return s, true, nil
	}
	return "", false, nil
}
