package secretstore

import (
	"context"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name used when none is configured.
const DefaultKeyringService = "zligate"

// KeyringStore reads secrets from the OS keyring. It is meant for running
// the service locally.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a store for the given keyring service.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{service: service}
}

// Type returns "keyring".
func (s *KeyringStore) Type() string {
	return TypeKeyring
}

// Fetch returns the keyring entry stored under name.
func (s *KeyringStore) Fetch(_ context.Context, name string) ([]byte, error) {
	v, err := keyring.Get(s.service, name)
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}
