package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/systmms/zligate/internal/config"
	"github.com/systmms/zligate/internal/secretstore"
	"github.com/systmms/zligate/internal/server"
	"github.com/systmms/zligate/internal/session"
	"github.com/systmms/zligate/pkg/exec"
)

func NewServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long: `Start the HTTP gateway.

Before listening, serve checks that the zli binary is executable and loads
both service-account secrets from the configured secret store. Any failure
stops startup with a non-zero exit.

Endpoints:
  GET /          zli --version
  GET /login     zli service-account login
  GET /generate  zli generate sshConfig
  GET /ssh       ssh ?user=&host=&cmd= through the zli ssh configuration
  GET /healthz   session state as JSON
  GET /metrics   Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cfg); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg, secretstore.New)
			if err != nil {
				return err
			}
			defer app.close()

			ln, err := net.Listen("tcp", cfg.Addr())
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
			}
			return app.serve(ctx, ln)
		},
	}

	return cmd
}

// app is everything serve builds before it accepts traffic.
type app struct {
	cfg    *config.Config
	creds  secretstore.Credentials
	server *server.Server
}

func newApp(ctx context.Context, cfg *config.Config, newStore storeFactory) (*app, error) {
	d := cfg.Definition
	logger := cfg.Logger

	if err := exec.VerifyExecutable(d.Zli.Path); err != nil {
		return nil, fmt.Errorf("zli is not available: %w", err)
	}
	logger.Debug("Found zli at %s", d.Zli.Path)

	creds, err := loadCredentials(ctx, cfg, newStore)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	logger.Info("Loaded service-account credentials from %s store", d.SecretStore.Type)

	metrics := server.NewMetrics()
	executor := metrics.Instrument(exec.NewRealCommandExecutor(exec.Options{
		MaxOutputBytes: d.Commands.MaxOutputBytes,
		Timeout:        d.Commands.Timeout,
		Logger:         logger.With("exec"),
	}))

	sess, err := session.New(session.Options{
		Executor: executor,
		Commands: session.Commands{
			ZliPath:        d.Zli.Path,
			SSHPath:        d.SSH.Path,
			SSHConfigPath:  d.SSH.ConfigPath,
			SSHExtraArgs:   d.SSH.ExtraArgs,
			DefaultUser:    d.SSH.DefaultUser,
			DefaultCommand: d.SSH.DefaultCommand,
		},
		Credentials:   creds.Buffers(),
		CredentialDir: d.Credentials.Dir,
		Logger:        logger.With("session"),
		Observer:      metrics,
	})
	if err != nil {
		creds.Destroy()
		return nil, err
	}

	srv, err := server.New(server.Options{
		Addr:         cfg.Addr(),
		ReadTimeout:  d.Server.ReadTimeout,
		WriteTimeout: d.Server.WriteTimeout,
		Session:      sess,
		Metrics:      metrics,
		Logger:       logger.With("http"),
		Redact:       creds.Redact,
	})
	if err != nil {
		creds.Destroy()
		return nil, err
	}

	return &app{cfg: cfg, creds: creds, server: srv}, nil
}

// serve blocks until ctx is done or the listener fails, then shuts the
// server down within the configured grace period.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Definition.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		a.cfg.Logger.Warn("In-flight requests did not finish within %s", a.cfg.Definition.Server.ShutdownTimeout)
	}
	return <-errCh
}

func (a *app) close() {
	a.creds.Destroy()
}
