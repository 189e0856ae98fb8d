package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/internal/logging"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func requiredEnv() map[string]string {
	return map[string]string{
		"PROVIDER_FILE_SECRET_NAME": "projects/p/secrets/provider/versions/latest",
		"BZERO_FILE_SECRET_NAME":    "projects/p/secrets/bzero/versions/latest",
	}
}

func TestConfig_LoadFromEnvironmentWithDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{Logger: logging.Discard(), LookupEnv: envMap(requiredEnv())}
	require.NoError(t, cfg.Load())

	d := cfg.Definition
	assert.Equal(t, "projects/p/secrets/provider/versions/latest", d.Secrets.Provider)
	assert.Equal(t, "projects/p/secrets/bzero/versions/latest", d.Secrets.BZero)
	assert.Equal(t, "gcp", d.SecretStore.Type)
	assert.Equal(t, 8080, d.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "/usr/bin/zli", d.Zli.Path)
	assert.Equal(t, "ssh", d.SSH.Path)
	assert.Equal(t, "/home/.ssh/config", d.SSH.ConfigPath)
	assert.Equal(t, "root", d.SSH.DefaultUser)
	assert.Equal(t, "uname -a", d.SSH.DefaultCommand)
	assert.Equal(t, time.Duration(0), d.Commands.Timeout)
	assert.Equal(t, int64(1<<20), d.Commands.MaxOutputBytes)
	assert.False(t, d.Debug)
}

func TestConfig_EnvironmentOverrides(t *testing.T) {
	t.Parallel()

	env := requiredEnv()
	env["PORT"] = "9000"
	env["SECRET_STORE"] = "aws"
	env["AWS_REGION"] = "eu-west-1"
	env["ZLI_PATH"] = "/opt/zli"
	env["COMMAND_TIMEOUT"] = "45s"
	env["MAX_OUTPUT_BYTES"] = "4096"
	env["SSH_EXTRA_ARGS"] = `-o StrictHostKeyChecking=no -o "ConnectTimeout 5"`
	env["DEBUG"] = "true"

	cfg := &Config{LookupEnv: envMap(env)}
	require.NoError(t, cfg.Load())

	d := cfg.Definition
	assert.Equal(t, 9000, d.Server.Port)
	assert.Equal(t, "aws", d.SecretStore.Type)
	assert.Equal(t, "eu-west-1", d.SecretStore.Region)
	assert.Equal(t, "/opt/zli", d.Zli.Path)
	assert.Equal(t, 45*time.Second, d.Commands.Timeout)
	assert.Equal(t, int64(4096), d.Commands.MaxOutputBytes)
	assert.Equal(t, []string{"-o", "StrictHostKeyChecking=no", "-o", "ConnectTimeout 5"}, d.SSH.ExtraArgs)
	assert.True(t, d.Debug)
}

func TestConfig_FileWithEnvironmentOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "zligate.yaml")
	content := `
secrets:
  provider: provider-creds
  bzero: bzero-creds
secretStore:
  type: gcp
  projectID: file-project
server:
  port: 7000
ssh:
  config: /etc/zli/ssh_config
  defaultUser: ubuntu
commands:
  timeout: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := &Config{
		Path:      path,
		LookupEnv: envMap(map[string]string{"GOOGLE_CLOUD_PROJECT": "env-project"}),
	}
	require.NoError(t, cfg.Load())

	d := cfg.Definition
	assert.Equal(t, "provider-creds", d.Secrets.Provider)
	assert.Equal(t, "bzero-creds", d.Secrets.BZero)
	assert.Equal(t, "env-project", d.SecretStore.ProjectID, "environment wins over file")
	assert.Equal(t, 7000, d.Server.Port)
	assert.Equal(t, "/etc/zli/ssh_config", d.SSH.ConfigPath)
	assert.Equal(t, "ubuntu", d.SSH.DefaultUser)
	assert.Equal(t, 2*time.Minute, d.Commands.Timeout)
}

func TestConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(env map[string]string)
		wantField string
	}{
		{
			name:      "missing provider secret name",
			mutate:    func(env map[string]string) { delete(env, "PROVIDER_FILE_SECRET_NAME") },
			wantField: "PROVIDER_FILE_SECRET_NAME",
		},
		{
			name:      "empty bzero secret name",
			mutate:    func(env map[string]string) { env["BZERO_FILE_SECRET_NAME"] = "" },
			wantField: "BZERO_FILE_SECRET_NAME",
		},
		{
			name:      "non-numeric port",
			mutate:    func(env map[string]string) { env["PORT"] = "eighty" },
			wantField: "PORT",
		},
		{
			name:      "port out of range",
			mutate:    func(env map[string]string) { env["PORT"] = "70000" },
			wantField: "PORT",
		},
		{
			name:      "unknown store",
			mutate:    func(env map[string]string) { env["SECRET_STORE"] = "vault" },
			wantField: "SECRET_STORE",
		},
		{
			name:      "bad timeout",
			mutate:    func(env map[string]string) { env["COMMAND_TIMEOUT"] = "soon" },
			wantField: "COMMAND_TIMEOUT",
		},
		{
			name:      "negative timeout",
			mutate:    func(env map[string]string) { env["COMMAND_TIMEOUT"] = "-1s" },
			wantField: "COMMAND_TIMEOUT",
		},
		{
			name:      "unterminated quote in ssh args",
			mutate:    func(env map[string]string) { env["SSH_EXTRA_ARGS"] = `-o "broken` },
			wantField: "SSH_EXTRA_ARGS",
		},
		{
			name:      "bad debug flag",
			mutate:    func(env map[string]string) { env["DEBUG"] = "maybe" },
			wantField: "DEBUG",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := requiredEnv()
			tt.mutate(env)

			cfg := &Config{LookupEnv: envMap(env)}
			err := cfg.Load()
			require.Error(t, err)

			var cfgErr dserrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Equal(t, dserrors.KindConfig, dserrors.KindOf(err))
		})
	}
}

func TestConfig_MissingFile(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: "/nonexistent/path/to/zligate.yaml", LookupEnv: envMap(requiredEnv())}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestConfig_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "zligate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("secrets:\n  provider: [unclosed\n"), 0o644))

	cfg := &Config{Path: path, LookupEnv: envMap(requiredEnv())}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML syntax")
}
