// Package session tracks the authenticated zli session of this process.
//
// Two flags make up the state: whether zli is logged in and whether the ssh
// configuration has been generated. Login and generation are serialized so
// concurrent cold requests trigger each at most once. The flags are reset
// only by Invalidate, and only the login flag is ever reset.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/systmms/zligate/internal/credfile"
	"github.com/systmms/zligate/internal/logging"
	"github.com/systmms/zligate/internal/secure"
	"github.com/systmms/zligate/pkg/exec"
)

// State is a snapshot of the session flags.
type State struct {
	Authenticated       bool `json:"authenticated"`
	EnvironmentPrepared bool `json:"environmentPrepared"`
}

// Observer is notified of session transitions.
type Observer interface {
	LoginFinished(err error)
	EnvironmentPrepared(forced bool, err error)
	Invalidated()
}

type nopObserver struct{}

func (nopObserver) LoginFinished(error)             {}
func (nopObserver) EnvironmentPrepared(bool, error) {}
func (nopObserver) Invalidated()                    {}

// Options configures a Session.
type Options struct {
	Executor exec.CommandExecutor
	Commands Commands
	// Credentials are the provider and BastionZero credential values, in
	// login argument order.
	Credentials []*secure.SecureBuffer
	// CredentialDir is where ephemeral credential files are written.
	CredentialDir string
	Logger        *logging.Logger
	Observer      Observer
}

// Session owns the login state for one process.
type Session struct {
	executor exec.CommandExecutor
	commands Commands
	creds    []*secure.SecureBuffer
	credDir  string
	logger   *logging.Logger
	observer Observer

	// loginMu serializes login attempts; prepareMu serializes generation.
	loginMu   sync.Mutex
	prepareMu sync.Mutex

	mu                  sync.Mutex
	authenticated       bool
	environmentPrepared bool
}

// New creates an unauthenticated, unprepared session.
func New(opts Options) (*Session, error) {
	if opts.Executor == nil {
		return nil, errors.New("session: executor is required")
	}
	if len(opts.Credentials) != 2 {
		return nil, fmt.Errorf("session: expected 2 credentials, got %d", len(opts.Credentials))
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	return &Session{
		executor: opts.Executor,
		commands: opts.Commands,
		creds:    opts.Credentials,
		credDir:  opts.CredentialDir,
		logger:   opts.Logger,
		observer: opts.Observer,
	}, nil
}

// Commands returns the command builder the session was configured with.
func (s *Session) Commands() Commands {
	return s.commands
}

// State returns the current flags.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Authenticated: s.authenticated, EnvironmentPrepared: s.environmentPrepared}
}

// Version runs `zli --version`. It does not touch session state.
func (s *Session) Version(ctx context.Context) (string, error) {
	return s.executor.Run(ctx, s.commands.Version())
}

// Authenticate logs in unconditionally, even when already logged in.
func (s *Session) Authenticate(ctx context.Context) (string, error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	return s.login(ctx)
}

// EnsureAuthenticated logs in only if the session is not logged in. ran
// reports whether a login was performed by this call.
func (s *Session) EnsureAuthenticated(ctx context.Context) (output string, ran bool, err error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	if s.State().Authenticated {
		return "", false, nil
	}

	output, err = s.login(ctx)
	return output, true, err
}

// login must be called with loginMu held.
func (s *Session) login(ctx context.Context) (string, error) {
	var output string

	err := credfile.With(s.credDir, s.creds, func(paths []string) error {
		s.logger.Debug("Wrote ephemeral credentials to %s and %s", paths[0], paths[1])

		var runErr error
		output, runErr = s.executor.Run(ctx, s.commands.Login(paths[0], paths[1]))
		return runErr
	})
	s.observer.LoginFinished(err)

	if err != nil {
		s.logger.Warn("zli service-account login failed: %v", err)
		return output, err
	}

	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()

	s.logger.Info("zli service-account login succeeded")
	s.logger.Debug("zli service-account login: %s", output)
	return output, nil
}

// PrepareEnvironmentOnce generates the ssh configuration unless it has
// already been generated successfully. ran reports whether the command ran.
func (s *Session) PrepareEnvironmentOnce(ctx context.Context) (output string, ran bool, err error) {
	s.prepareMu.Lock()
	defer s.prepareMu.Unlock()

	if s.State().EnvironmentPrepared {
		return "", false, nil
	}

	output, err = s.executor.Run(ctx, s.commands.GenerateSSHConfig())
	s.observer.EnvironmentPrepared(false, err)
	if err != nil {
		s.logger.Warn("zli generate sshConfig failed: %v", err)
		return output, true, err
	}

	s.mu.Lock()
	s.environmentPrepared = true
	s.mu.Unlock()

	s.logger.Debug("zli generate sshConfig: %s", output)
	return output, true, nil
}

// GenerateEnvironment regenerates the ssh configuration unconditionally.
// It does not change the prepared flag.
func (s *Session) GenerateEnvironment(ctx context.Context) (string, error) {
	s.prepareMu.Lock()
	defer s.prepareMu.Unlock()

	output, err := s.executor.Run(ctx, s.commands.GenerateSSHConfig())
	s.observer.EnvironmentPrepared(true, err)
	return output, err
}

// Invalidate marks the session as logged out so the next request logs in
// again. The prepared flag is kept.
func (s *Session) Invalidate() {
	s.mu.Lock()
	was := s.authenticated
	s.authenticated = false
	s.mu.Unlock()

	if was {
		s.logger.Info("Session invalidated; next request will log in again")
	}
	s.observer.Invalidated()
}

// Run executes a downstream command against the session. Commands run
// concurrently; Run holds no session lock.
func (s *Session) Run(ctx context.Context, cmd exec.Command) (string, error) {
	return s.executor.Run(ctx, cmd)
}
