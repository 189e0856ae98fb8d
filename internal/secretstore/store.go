// Package secretstore fetches the credentials zli needs from an external
// secret store. Values are fetched once at startup and kept encrypted in
// memory for the life of the process.
package secretstore

import (
	"context"
	"fmt"
	"sort"

	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/internal/logging"
	"github.com/systmms/zligate/internal/secure"
)

// Store type names.
const (
	TypeGCP     = "gcp"
	TypeAWS     = "aws"
	TypeAzure   = "azure"
	TypeKeyring = "keyring"
	TypeEnv     = "env"
)

// Store is a black-box name to value lookup.
type Store interface {
	// Fetch returns the raw secret value for name.
	Fetch(ctx context.Context, name string) ([]byte, error)
	// Type returns the store type, such as "gcp".
	Type() string
}

// Config selects and configures a Store.
type Config struct {
	Type string `yaml:"type"`

	// gcp
	ProjectID string `yaml:"projectID,omitempty"`
	// aws
	Region string `yaml:"region,omitempty"`
	// azure
	VaultURL string `yaml:"vaultURL,omitempty"`
	// keyring
	Service string `yaml:"service,omitempty"`
	// env
	EnvPrefix string `yaml:"envPrefix,omitempty"`
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var factories = map[string]factory{
	TypeGCP:     func(ctx context.Context, cfg Config) (Store, error) { return NewGCPStore(ctx, cfg.ProjectID) },
	TypeAWS:     func(ctx context.Context, cfg Config) (Store, error) { return NewAWSStore(ctx, cfg.Region) },
	TypeAzure:   func(_ context.Context, cfg Config) (Store, error) { return NewAzureStore(cfg.VaultURL) },
	TypeKeyring: func(_ context.Context, cfg Config) (Store, error) { return NewKeyringStore(cfg.Service), nil },
	TypeEnv:     func(_ context.Context, cfg Config) (Store, error) { return NewEnvStore(cfg.EnvPrefix), nil },
}

// Types lists the supported store types.
func Types() []string {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsValidType reports whether t names a supported store.
func IsValidType(t string) bool {
	_, ok := factories[t]
	return ok
}

// New creates the Store described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	f, ok := factories[cfg.Type]
	if !ok {
		return nil, dserrors.ConfigError{
			Field:      "secretStore.type",
			Value:      cfg.Type,
			Message:    "unknown secret store type",
			Suggestion: fmt.Sprintf("Use one of: %v", Types()),
		}
	}
	return f(ctx, cfg)
}

// Load fetches one secret and seals it. A missing or empty value is an error;
// there are no retries.
func Load(ctx context.Context, store Store, name string) (*secure.SecureBuffer, error) {
	data, err := store.Fetch(ctx, name)
	if err != nil {
		return nil, dserrors.SecretError{Name: name, Store: store.Type(), Err: err}
	}
	if len(data) == 0 {
		return nil, dserrors.SecretError{Name: name, Store: store.Type(), Err: dserrors.ErrEmptySecret}
	}

	buf, err := secure.NewSecureBuffer(data)
	if err != nil {
		return nil, dserrors.SecretError{Name: name, Store: store.Type(), Err: err}
	}
	return buf, nil
}

// Credentials are the two secrets zli service-account login needs.
type Credentials struct {
	Provider *secure.SecureBuffer
	BZero    *secure.SecureBuffer
}

// LoadCredentials fetches both login secrets in order and fails on the first
// one that is unavailable.
func LoadCredentials(ctx context.Context, store Store, providerName, bzeroName string, logger *logging.Logger) (Credentials, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	provider, err := Load(ctx, store, providerName)
	if err != nil {
		return Credentials{}, err
	}
	logger.Debug("Loaded provider credentials from %s store (%d bytes)", store.Type(), provider.Len())

	bzero, err := Load(ctx, store, bzeroName)
	if err != nil {
		provider.Destroy()
		return Credentials{}, err
	}
	logger.Debug("Loaded BastionZero credentials from %s store (%d bytes)", store.Type(), bzero.Len())

	return Credentials{Provider: provider, BZero: bzero}, nil
}

// Buffers returns the values in login argument order.
func (c Credentials) Buffers() []*secure.SecureBuffer {
	return []*secure.SecureBuffer{c.Provider, c.BZero}
}

// Redact removes any credential value that appears in s. The values are
// compared in locked memory and never copied out of it.
func (c Credentials) Redact(s string) string {
	out := []byte(s)
	for _, b := range c.Buffers() {
		if b == nil {
			continue
		}
		_ = b.WithPlaintext(func(p []byte) error {
			out = logging.RedactBytes(out, p)
			return nil
		})
	}
	return string(out)
}

// Destroy drops both values.
func (c Credentials) Destroy() {
	for _, b := range c.Buffers() {
		if b != nil {
			b.Destroy()
		}
	}
}
