package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// Kind classifies a failure so callers can decide on recovery without
// inspecting error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindUserInput
	KindConfig
	KindSecretUnavailable
	KindCommandFailed
	KindCommandNotFound
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUserInput:
		return "user_input"
	case KindConfig:
		return "config"
	case KindSecretUnavailable:
		return "secret_unavailable"
	case KindCommandFailed:
		return "command_failed"
	case KindCommandNotFound:
		return "command_not_found"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// UserError represents an error that should be shown to the caller with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError is returned when startup configuration is missing or invalid.
// The process must not start serving when one is returned.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

// SecretError reports that a named secret could not be fetched or was empty.
type SecretError struct {
	Name  string
	Store string
	Err   error
}

func (e SecretError) Error() string {
	msg := fmt.Sprintf("secret %q unavailable", e.Name)
	if e.Store != "" {
		msg += fmt.Sprintf(" from %s store", e.Store)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := secretSuggestion(e.Store, e.Err); s != "" {
		msg += "\n  " + s
	}
	return msg
}

func (e SecretError) Unwrap() error {
	return e.Err
}

// CommandError represents a failed command execution. Output holds whatever
// the command printed so callers can surface the tool's own diagnostics.
type CommandError struct {
	Kind       Kind
	Command    string
	ExitCode   int
	Output     string
	Message    string
	Suggestion string
	Err        error
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command %s failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" && e.Message != fmt.Sprintf("exit status %d", e.ExitCode) {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

func (e CommandError) Unwrap() error {
	return e.Err
}

// ErrEmptySecret is wrapped by SecretError when the store returned no data.
var ErrEmptySecret = errors.New("secret value is empty")

// NewUserInputError builds the error returned for a bad or missing request parameter.
func NewUserInputError(message, suggestion string) error {
	return userInputError{UserError{Message: message, Suggestion: suggestion}}
}

type userInputError struct {
	UserError
}

// KindOf returns the classification of err, looking through wrapped errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var cmdErr CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Kind
	}

	var inputErr userInputError
	if errors.As(err, &inputErr) {
		return KindUserInput
	}

	var secretErr SecretError
	if errors.As(err, &secretErr) {
		return KindSecretUnavailable
	}

	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return KindConfig
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	return KindUnknown
}

// InvalidatesSession reports whether a failure on the session command path
// should be treated as an expired login. Any downstream command failure
// counts; bad input and a caller that went away do not.
func InvalidatesSession(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	switch KindOf(err) {
	case KindCommandFailed, KindCommandNotFound, KindTimeout:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error to the status code returned to HTTP callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUserInput:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// OutputOf returns the captured command output carried by err, if the
// command printed anything.
func OutputOf(err error) (string, bool) {
	var cmdErr CommandError
	if errors.As(err, &cmdErr) && strings.TrimSpace(cmdErr.Output) != "" {
		return cmdErr.Output, true
	}
	return "", false
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"zli": "Install the BastionZero zli client in the container image",
		"ssh": "Install an OpenSSH client in the container image",
	}

	suggestion := suggestions[filepath.Base(command)]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	return CommandError{
		Kind:       KindCommandNotFound,
		Command:    command,
		Message:    "command not found",
		Suggestion: suggestion,
		Err:        err,
	}
}

// secretSuggestion returns a hint based on the store type and error text
func secretSuggestion(store string, err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrEmptySecret) {
		return "Add a non-empty version to the secret"
	}

	errStr := err.Error()

	switch store {
	case "gcp":
		switch {
		case strings.Contains(errStr, "PermissionDenied"):
			return "Grant the service account roles/secretmanager.secretAccessor"
		case strings.Contains(errStr, "NotFound"):
			return "Verify the secret resource name and project ID"
		case strings.Contains(errStr, "Unauthenticated"):
			return "Check application default credentials for the container"
		}
	case "aws":
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") {
			return "Verify the secret name and region"
		}
	case "azure":
		if strings.Contains(errStr, "Forbidden") {
			return "Grant the identity get permission on the key vault secrets"
		}
	case "env":
		return "Set the environment variable for this secret"
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check network access to the secret store"
	}

	return ""
}

// SuggestionOf returns the remediation hint carried by err, if any.
func SuggestionOf(err error) string {
	var inputErr userInputError
	if errors.As(err, &inputErr) {
		return inputErr.Suggestion
	}
	var userErr UserError
	if errors.As(err, &userErr) {
		return userErr.Suggestion
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Suggestion
	}
	var secretErr SecretError
	if errors.As(err, &secretErr) {
		return secretSuggestion(secretErr.Store, secretErr.Err)
	}
	var cmdErr CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Suggestion
	}
	return ""
}
