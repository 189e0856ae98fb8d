package secretstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix prefixes the variable names read by EnvStore.
const DefaultEnvPrefix = "ZLIGATE_SECRET_"

// EnvStore reads secrets from environment variables.
type EnvStore struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvStore creates a store reading prefix + NAME variables.
func NewEnvStore(prefix string) *EnvStore {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvStore{prefix: prefix, lookup: os.LookupEnv}
}

// Type returns "env".
func (s *EnvStore) Type() string {
	return TypeEnv
}

// Fetch reads the variable for name. Non-alphanumeric characters become
// underscores and letters are upper-cased, so "bzero-creds" reads
// ZLIGATE_SECRET_BZERO_CREDS.
func (s *EnvStore) Fetch(_ context.Context, name string) ([]byte, error) {
	key := s.Key(name)
	v, ok := s.lookup(key)
	if !ok {
		return nil, fmt.Errorf("environment variable %s is not set", key)
	}
	return []byte(v), nil
}

// Key returns the variable name read for name.
func (s *EnvStore) Key(name string) string {
	return s.prefix + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
