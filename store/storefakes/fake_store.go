package storefakes

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/localspot/localspot-go/store"
	"github.com/pkg/errors"
)

var _ store.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store for tests. Individual operations can be
// made to fail by setting the corresponding error fields.
type FakeStore struct {
	lock sync.RWMutex
	data map[string][]byte

	GetErr    error
	SetErr    error
	DeleteErr error
	KeysErr   error

	SetCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{data: make(map[string][]byte)}
}

func (fs *FakeStore) Get(_ context.Context, key string) ([]byte, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.GetErr != nil {
		return nil, fs.GetErr
	}
	value, ok := fs.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (fs *FakeStore) Set(_ context.Context, key string, value []byte) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.SetCalls++
	if fs.SetErr != nil {
		return fs.SetErr
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	fs.data[key] = stored
	return nil
}

func (fs *FakeStore) Delete(_ context.Context, key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.DeleteErr != nil {
		return fs.DeleteErr
	}
	delete(fs.data, key)
	return nil
}

func (fs *FakeStore) Keys(_ context.Context, prefix string) ([]string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.KeysErr != nil {
		return nil, fs.KeysErr
	}
	keys := make([]string, 0, len(fs.data))
	for k := range fs.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Has reports whether key currently exists, bypassing error injection.
func (fs *FakeStore) Has(key string) bool {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	_, ok := fs.data[key]
	return ok
}

// Corrupt overwrites the stored value for key without going through Set,
// for tests exercising decode failures.
func (fs *FakeStore) Corrupt(key string, value []byte) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.data == nil {
		fs.data = make(map[string][]byte)
	}
	fs.data[key] = value
}

// Err builds an injectable storage error.
func Err(msg string) error {
	return errors.New(msg)
}
