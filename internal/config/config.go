package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-shellwords"
	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/internal/logging"
	"github.com/systmms/zligate/internal/secretstore"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultPort           = 8080
	DefaultZliPath        = "/usr/bin/zli"
	DefaultSSHPath        = "ssh"
	DefaultSSHConfigPath  = "/home/.ssh/config"
	DefaultSSHUser        = "root"
	DefaultSSHCommand     = "uname -a"
	DefaultMaxOutputBytes = 1 << 20
	DefaultSecretStore    = secretstore.TypeGCP
)

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition Definition

	// LookupEnv reads the process environment; tests replace it.
	LookupEnv func(string) (string, bool)
}

// Definition is the zligate.yaml structure. Environment variables override
// every field they name.
type Definition struct {
	Debug       bool               `yaml:"debug"`
	Secrets     SecretNames        `yaml:"secrets"`
	SecretStore secretstore.Config `yaml:"secretStore"`
	Server      ServerConfig       `yaml:"server"`
	Zli         ZliConfig          `yaml:"zli"`
	SSH         SSHConfig          `yaml:"ssh"`
	Commands    CommandsConfig     `yaml:"commands"`
	Credentials CredentialsConfig  `yaml:"credentials"`
}

// SecretNames are the secret store references for the two login credentials.
type SecretNames struct {
	Provider string `yaml:"provider"`
	BZero    string `yaml:"bzero"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ZliConfig locates the zli binary.
type ZliConfig struct {
	Path string `yaml:"path"`
}

// SSHConfig controls the pass-through ssh command.
type SSHConfig struct {
	Path           string   `yaml:"path"`
	ConfigPath     string   `yaml:"config"`
	DefaultUser    string   `yaml:"defaultUser"`
	DefaultCommand string   `yaml:"defaultCommand"`
	ExtraArgs      []string `yaml:"extraArgs"`
}

// CommandsConfig bounds every executed command.
type CommandsConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxOutputBytes int64         `yaml:"maxOutputBytes"`
}

// CredentialsConfig controls where ephemeral credential files are written.
type CredentialsConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads the optional YAML file, applies environment overrides and
// defaults, then validates the result.
func (c *Config) Load() error {
	if c.Path != "" {
		if err := c.loadFile(); err != nil {
			return err
		}
	}

	if err := c.applyEnv(); err != nil {
		return err
	}
	c.applyDefaults()

	return c.Validate()
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Omit --config to configure zligate from environment variables only",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Field:      "path",
			Value:      c.Path,
			Message:    fmt.Sprintf("invalid YAML syntax: %v", err),
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}
	c.Definition = def

	return nil
}

func (c *Config) applyEnv() error {
	lookup := c.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	d := &c.Definition

	strs := []struct {
		key string
		dst *string
	}{
		{"PROVIDER_FILE_SECRET_NAME", &d.Secrets.Provider},
		{"BZERO_FILE_SECRET_NAME", &d.Secrets.BZero},
		{"SECRET_STORE", &d.SecretStore.Type},
		{"GOOGLE_CLOUD_PROJECT", &d.SecretStore.ProjectID},
		{"AWS_REGION", &d.SecretStore.Region},
		{"AZURE_KEYVAULT_URL", &d.SecretStore.VaultURL},
		{"KEYRING_SERVICE", &d.SecretStore.Service},
		{"SECRET_ENV_PREFIX", &d.SecretStore.EnvPrefix},
		{"ZLI_PATH", &d.Zli.Path},
		{"SSH_PATH", &d.SSH.Path},
		{"SSH_CONFIG_PATH", &d.SSH.ConfigPath},
		{"CREDENTIAL_DIR", &d.Credentials.Dir},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return dserrors.ConfigError{Field: "PORT", Value: v, Message: "port must be a number"}
		}
		d.Server.Port = port
	}

	if v, ok := lookup("COMMAND_TIMEOUT"); ok && v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return dserrors.ConfigError{
				Field:      "COMMAND_TIMEOUT",
				Value:      v,
				Message:    "invalid duration",
				Suggestion: "Use a Go duration such as 30s or 2m",
			}
		}
		d.Commands.Timeout = timeout
	}

	if v, ok := lookup("MAX_OUTPUT_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return dserrors.ConfigError{Field: "MAX_OUTPUT_BYTES", Value: v, Message: "must be a number of bytes"}
		}
		d.Commands.MaxOutputBytes = n
	}

	if v, ok := lookup("SSH_EXTRA_ARGS"); ok && v != "" {
		args, err := shellwords.Parse(v)
		if err != nil {
			return dserrors.ConfigError{
				Field:      "SSH_EXTRA_ARGS",
				Value:      v,
				Message:    fmt.Sprintf("cannot split into arguments: %v", err),
				Suggestion: "Quote arguments the way a POSIX shell would",
			}
		}
		d.SSH.ExtraArgs = args
	}

	if v, ok := lookup("DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return dserrors.ConfigError{Field: "DEBUG", Value: v, Message: "must be true or false"}
		}
		d.Debug = d.Debug || debug
	}

	return nil
}

func (c *Config) applyDefaults() {
	d := &c.Definition

	if d.SecretStore.Type == "" {
		d.SecretStore.Type = DefaultSecretStore
	}
	if d.Server.Port == 0 {
		d.Server.Port = DefaultPort
	}
	if d.Server.ShutdownTimeout == 0 {
		d.Server.ShutdownTimeout = 10 * time.Second
	}
	if d.Zli.Path == "" {
		d.Zli.Path = DefaultZliPath
	}
	if d.SSH.Path == "" {
		d.SSH.Path = DefaultSSHPath
	}
	if d.SSH.ConfigPath == "" {
		d.SSH.ConfigPath = DefaultSSHConfigPath
	}
	if d.SSH.DefaultUser == "" {
		d.SSH.DefaultUser = DefaultSSHUser
	}
	if d.SSH.DefaultCommand == "" {
		d.SSH.DefaultCommand = DefaultSSHCommand
	}
	if d.Commands.MaxOutputBytes == 0 {
		d.Commands.MaxOutputBytes = DefaultMaxOutputBytes
	}
}

// Validate checks that the service can start with this configuration.
func (c *Config) Validate() error {
	d := c.Definition

	if d.Secrets.Provider == "" {
		return dserrors.ConfigError{
			Field:      "PROVIDER_FILE_SECRET_NAME",
			Message:    "provider credentials secret name is required",
			Suggestion: "Set PROVIDER_FILE_SECRET_NAME to the secret holding the provider credentials file",
		}
	}
	if d.Secrets.BZero == "" {
		return dserrors.ConfigError{
			Field:      "BZERO_FILE_SECRET_NAME",
			Message:    "BastionZero credentials secret name is required",
			Suggestion: "Set BZERO_FILE_SECRET_NAME to the secret holding the BastionZero credentials file",
		}
	}
	if !secretstore.IsValidType(d.SecretStore.Type) {
		return dserrors.ConfigError{
			Field:      "SECRET_STORE",
			Value:      d.SecretStore.Type,
			Message:    "unknown secret store type",
			Suggestion: fmt.Sprintf("Use one of: %v", secretstore.Types()),
		}
	}
	if d.Server.Port < 1 || d.Server.Port > 65535 {
		return dserrors.ConfigError{
			Field:      "PORT",
			Value:      d.Server.Port,
			Message:    "port out of range",
			Suggestion: "Set PORT to a value between 1 and 65535",
		}
	}
	if d.Commands.Timeout < 0 {
		return dserrors.ConfigError{Field: "COMMAND_TIMEOUT", Value: d.Commands.Timeout, Message: "timeout cannot be negative"}
	}
	if d.Commands.MaxOutputBytes < 0 {
		return dserrors.ConfigError{Field: "MAX_OUTPUT_BYTES", Value: d.Commands.MaxOutputBytes, Message: "limit cannot be negative"}
	}

	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Definition.Server.Port)
}
