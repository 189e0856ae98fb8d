// Package exec runs external commands and captures their output.
// The CommandExecutor interface lets session logic be tested without
// spawning real processes.
package exec

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/apparentlymart/go-shquot/shquot"
	"github.com/armon/circbuf"
	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/internal/logging"
)

// DefaultMaxOutputBytes bounds each captured stream.
const DefaultMaxOutputBytes = 1 << 20

// waitDelay bounds how long Run waits for the output pipes to close after
// the process group has been killed.
const waitDelay = time.Second

// Command is a program and its arguments. It is executed directly, never
// through a shell.
type Command struct {
	Name string
	Args []string
}

// NewCommand builds a Command from a program name and arguments.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Argv returns the full argument vector.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command as a POSIX shell would need to see it.
func (c Command) String() string {
	return shquot.POSIXShell(c.Argv())
}

// CommandExecutor runs a command to completion.
type CommandExecutor interface {
	// Run returns stdout and stderr joined by a newline. A non-zero exit
	// returns a dserrors.CommandError carrying the same output.
	Run(ctx context.Context, cmd Command) (string, error)
}

// Options configures a RealCommandExecutor.
type Options struct {
	// MaxOutputBytes caps each of stdout and stderr; older bytes are dropped.
	MaxOutputBytes int64
	// Timeout bounds each command. Zero means no timeout.
	Timeout time.Duration
	Logger  *logging.Logger
}

// RealCommandExecutor executes commands with os/exec.
type RealCommandExecutor struct {
	maxOutput int64
	timeout   time.Duration
	logger    *logging.Logger
}

// NewRealCommandExecutor returns an executor for production use.
func NewRealCommandExecutor(opts Options) *RealCommandExecutor {
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &RealCommandExecutor{
		maxOutput: opts.MaxOutputBytes,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
}

// DefaultExecutor returns an executor with default limits and no timeout.
func DefaultExecutor() CommandExecutor {
	return NewRealCommandExecutor(Options{})
}

// Run executes cmd and waits for it to finish.
func (r *RealCommandExecutor) Run(ctx context.Context, cmd Command) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	stdout, err := circbuf.NewBuffer(r.maxOutput)
	if err != nil {
		return "", fmt.Errorf("failed to allocate output buffer: %w", err)
	}
	stderr, err := circbuf.NewBuffer(r.maxOutput)
	if err != nil {
		return "", fmt.Errorf("failed to allocate output buffer: %w", err)
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = waitDelay
	killProcessGroup(c)

	r.logger.Debug("Executing command: %s", cmd)
	start := time.Now()
	runErr := c.Run()

	if stdout.TotalWritten() > stdout.Size() || stderr.TotalWritten() > stderr.Size() {
		r.logger.Warn("Output of %s truncated to the last %d bytes per stream", cmd.Name, r.maxOutput)
	}
	output := stdout.String() + "\n" + stderr.String()

	if runErr == nil {
		r.logger.Debug("Command %s finished in %s", cmd.Name, time.Since(start).Round(time.Millisecond))
		return output, nil
	}

	return output, classify(ctx, cmd, output, runErr)
}

func classify(ctx context.Context, cmd Command, output string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		kind := dserrors.KindCommandFailed
		msg := "canceled"
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			kind = dserrors.KindTimeout
			msg = "timed out"
		}
		return dserrors.CommandError{
			Kind:    kind,
			Command: cmd.String(),
			Output:  output,
			Message: msg,
			Err:     ctxErr,
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return dserrors.CommandError{
			Kind:     dserrors.KindCommandFailed,
			Command:  cmd.String(),
			ExitCode: exitErr.ExitCode(),
			Output:   output,
			Message:  exitErr.Error(),
			Err:      err,
		}
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return dserrors.WrapCommandNotFound(cmd.Name, err)
	}

	return dserrors.CommandError{
		Kind:    dserrors.KindCommandFailed,
		Command: cmd.String(),
		Output:  output,
		Message: err.Error(),
		Err:     err,
	}
}

// VerifyExecutable checks that path is a regular file with an executable bit.
func VerifyExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dserrors.WrapCommandNotFound(path, err)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return dserrors.UserError{
			Message:    fmt.Sprintf("%s is not a regular file", path),
			Suggestion: "Point ZLI_PATH at the zli binary",
		}
	}
	if info.Mode().Perm()&0o111 == 0 {
		return dserrors.UserError{
			Message:    fmt.Sprintf("%s is not executable", path),
			Suggestion: fmt.Sprintf("Run 'chmod +x %s' in the image build", path),
		}
	}

	return nil
}

// LookPath resolves name through PATH when it has no separator and then
// checks it with VerifyExecutable.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", dserrors.WrapCommandNotFound(name, err)
		}
		return "", err
	}
	if err := VerifyExecutable(path); err != nil {
		return "", err
	}
	return path, nil
}
