package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

func init() {
	if err := RegisterStorage(new(MemoryDB)); err != nil {
		panic(err)
	}
}

// MemoryDB is an in memory implementation of ServiceStorage that is safe for concurrent use.
type MemoryDB struct {
	maps sync.Map
}

func (f *MemoryDB) Init(...Option) error {
	return nil
}

func (f *MemoryDB) Type() Type {
	return Memory
}

func (f *MemoryDB) URI() string {
	return "memory"
}

func (f *MemoryDB) IsOpen() bool {
	return true
}

func (f *MemoryDB) Close() error {
	return nil
}

func (f *MemoryDB) Write(_ context.Context, namespace, key string, value []byte) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	if key == "" {
		return errors.New("key required")
	}

	b, _ := f.maps.LoadOrStore(namespace, &sync.Map{})
	b.(*sync.Map).Store(key, append([]byte(nil), value...))
	return nil
}

func (f *MemoryDB) Read(_ context.Context, namespace, key string) ([]byte, error) {
	if namespace == "" {
		// This is what the bolt implementation does.
		return nil, nil
	}
	if key == "" {
		return nil, errors.New("key required")
	}
	m, ok := f.maps.Load(namespace)
	if !ok {
		return nil, nil
	}

	v, _ := m.(*sync.Map).Load(key)
	if v == nil {
		return nil, nil
	}
	return v.([]byte), nil
}

func (f *MemoryDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	v, err := f.Read(ctx, namespace, key)
	return v != nil, err
}

func (f *MemoryDB) ReadAll(_ context.Context, namespace string) (map[string][]byte, error) {
	r := make(map[string][]byte)
	m, ok := f.maps.Load(namespace)
	if !ok {
		return r, nil
	}
	m.(*sync.Map).Range(func(key, value any) bool {
		r[key.(string)] = value.([]byte)
		return true
	})
	return r, nil
}

func (f *MemoryDB) ReadAllKeys(_ context.Context, namespace string) ([]string, error) {
	var r []string
	m, ok := f.maps.Load(namespace)
	if !ok {
		return r, nil
	}
	m.(*sync.Map).Range(func(key, _ any) bool {
		r = append(r, key.(string))
		return true
	})
	return r, nil
}

func (f *MemoryDB) Delete(_ context.Context, namespace, key string) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	if key == "" {
		return errors.New("key required")
	}

	b, ok := f.maps.Load(namespace)
	if !ok {
		return errors.Errorf("namespace<%s> does not exist", namespace)
	}
	b.(*sync.Map).Delete(key)
	return nil
}

func (f *MemoryDB) DeleteNamespace(_ context.Context, namespace string) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	if _, loaded := f.maps.LoadAndDelete(namespace); !loaded {
		return errors.Errorf("could not delete namespace<%s>", namespace)
	}
	return nil
}

var _ ServiceStorage = (*MemoryDB)(nil)
