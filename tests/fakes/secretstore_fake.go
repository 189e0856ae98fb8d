package fakes

import (
	"context"
	"fmt"
	"sync"
)

// FakeSecretStore is an in-memory secretstore.Store.
type FakeSecretStore struct {
	mu      sync.Mutex
	Secrets map[string][]byte
	Errors  map[string]error
	Calls   []string
}

// NewFakeSecretStore creates a store holding the given string values.
func NewFakeSecretStore(values map[string]string) *FakeSecretStore {
	f := &FakeSecretStore{
		Secrets: make(map[string][]byte),
		Errors:  make(map[string]error),
	}
	for k, v := range values {
		f.Secrets[k] = []byte(v)
	}
	return f
}

// Type returns "fake".
func (f *FakeSecretStore) Type() string {
	return "fake"
}

// Fetch returns a copy of the stored value or the configured error.
func (f *FakeSecretStore) Fetch(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, name)

	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	v, ok := f.Secrets[name]
	if !ok {
		return nil, fmt.Errorf("secret %s not found", name)
	}
	return append([]byte(nil), v...), nil
}

// CallCount returns the number of Fetch calls.
func (f *FakeSecretStore) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
