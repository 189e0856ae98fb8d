package commands

import (
	"context"
	"io"

	"github.com/systmms/zligate/internal/config"
	"github.com/systmms/zligate/internal/logging"
	"github.com/systmms/zligate/internal/secretstore"
)

// loadConfig loads cfg and turns on debug logging when the configuration
// asks for it and the flag did not.
func loadConfig(cfg *config.Config) error {
	if cfg.Logger == nil {
		cfg.Logger = logging.New(false, false)
	}
	if err := cfg.Load(); err != nil {
		return err
	}
	if cfg.Definition.Debug && !cfg.Logger.DebugEnabled() {
		cfg.Logger = cfg.Logger.WithDebug(true)
	}
	return nil
}

// storeFactory builds the configured secret store. Tests swap it for a fake.
type storeFactory func(ctx context.Context, c secretstore.Config) (secretstore.Store, error)

// loadCredentials fetches both login secrets and releases the store client.
func loadCredentials(ctx context.Context, cfg *config.Config, newStore storeFactory) (secretstore.Credentials, error) {
	d := cfg.Definition

	store, err := newStore(ctx, d.SecretStore)
	if err != nil {
		return secretstore.Credentials{}, err
	}
	if c, ok := store.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	return secretstore.LoadCredentials(ctx, store, d.Secrets.Provider, d.Secrets.BZero, cfg.Logger.With("secrets"))
}
