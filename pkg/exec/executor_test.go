package exec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/zligate/internal/errors"
)

func TestRealCommandExecutor_Run(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cmd        Command
		wantOutput string
	}{
		{
			name:       "stdout only",
			cmd:        NewCommand("echo", "hello"),
			wantOutput: "hello\n\n",
		},
		{
			name:       "stdout then stderr",
			cmd:        NewCommand("sh", "-c", "echo out && echo err >&2"),
			wantOutput: "out\n\nerr\n",
		},
		{
			name:       "stderr only",
			cmd:        NewCommand("sh", "-c", "echo err >&2"),
			wantOutput: "\nerr\n",
		},
		{
			name:       "no output",
			cmd:        NewCommand("true"),
			wantOutput: "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := DefaultExecutor().Run(context.Background(), tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutput, out)
		})
	}
}

func TestRealCommandExecutor_NonZeroExit(t *testing.T) {
	t.Parallel()

	out, err := DefaultExecutor().Run(context.Background(),
		NewCommand("sh", "-c", "echo partial; echo 'session expired' >&2; exit 3"))
	require.Error(t, err)

	assert.Equal(t, "partial\n\nsession expired\n", out)

	var cmdErr dserrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, dserrors.KindCommandFailed, cmdErr.Kind)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, out, cmdErr.Output, "failure carries the same captured text")
	assert.True(t, dserrors.InvalidatesSession(err))
}

func TestRealCommandExecutor_CommandNotFound(t *testing.T) {
	t.Parallel()

	_, err := DefaultExecutor().Run(context.Background(), NewCommand("nonexistent_command_xyz123"))
	require.Error(t, err)
	assert.Equal(t, dserrors.KindCommandNotFound, dserrors.KindOf(err))
}

func TestRealCommandExecutor_Timeout(t *testing.T) {
	t.Parallel()

	executor := NewRealCommandExecutor(Options{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := executor.Run(context.Background(), NewCommand("sleep", "10"))
	require.Error(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, dserrors.KindTimeout, dserrors.KindOf(err))
}

func TestRealCommandExecutor_TimeoutKillsChildren(t *testing.T) {
	t.Parallel()

	executor := NewRealCommandExecutor(Options{Timeout: 200 * time.Millisecond})

	start := time.Now()
	_, err := executor.Run(context.Background(), NewCommand("sh", "-c", "sleep 5; echo done"))
	require.Error(t, err)

	assert.Less(t, time.Since(start), 3*time.Second, "a child holding the output pipes must not outlive the deadline")
	assert.Equal(t, dserrors.KindTimeout, dserrors.KindOf(err))
}

func TestRealCommandExecutor_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DefaultExecutor().Run(ctx, NewCommand("sleep", "10"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, dserrors.InvalidatesSession(err))
}

func TestRealCommandExecutor_BoundsOutput(t *testing.T) {
	t.Parallel()

	executor := NewRealCommandExecutor(Options{MaxOutputBytes: 16})

	out, err := executor.Run(context.Background(),
		NewCommand("sh", "-c", "printf 'aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaEND'"))
	require.NoError(t, err)

	stdout := strings.TrimSuffix(out, "\n")
	assert.Len(t, stdout, 16)
	assert.True(t, strings.HasSuffix(stdout, "END"), "newest bytes are kept")
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	cmd := NewCommand("ssh", "-F", "/home/.ssh/config", "root@example.com", "uname -a")
	assert.Equal(t, []string{"ssh", "-F", "/home/.ssh/config", "root@example.com", "uname -a"}, cmd.Argv())

	rendered, err := shellwords.Parse(cmd.String())
	require.NoError(t, err)
	assert.Equal(t, cmd.Argv(), rendered, "rendering round-trips through a POSIX shell parser")
}

func TestDefaultExecutor(t *testing.T) {
	t.Parallel()

	executor := DefaultExecutor()
	require.NotNil(t, executor)

	_, ok := executor.(*RealCommandExecutor)
	assert.True(t, ok, "DefaultExecutor should return a *RealCommandExecutor")
}

func TestCommandExecutorInterface(t *testing.T) {
	t.Parallel()

	var _ CommandExecutor = &RealCommandExecutor{}
	var _ CommandExecutor = (*RealCommandExecutor)(nil)
}

func TestVerifyExecutable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	bin := filepath.Join(dir, "zli")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, []byte("data"), 0o644))

	assert.NoError(t, VerifyExecutable(bin))

	err := VerifyExecutable(plain)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not executable")

	err = VerifyExecutable(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")

	err = VerifyExecutable(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Equal(t, dserrors.KindCommandNotFound, dserrors.KindOf(err))
}

func TestLookPath(t *testing.T) {
	t.Parallel()

	path, err := LookPath("sh")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	_, err = LookPath("zligate-definitely-not-installed")
	require.Error(t, err)
	assert.Equal(t, dserrors.KindCommandNotFound, dserrors.KindOf(err))
}
