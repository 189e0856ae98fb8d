package session

import (
	"strings"

	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/pkg/exec"
)

// Commands builds the argument vectors for every command the session runs.
type Commands struct {
	ZliPath        string
	SSHPath        string
	SSHConfigPath  string
	SSHExtraArgs   []string
	DefaultUser    string
	DefaultCommand string
}

// Version returns `zli --version`.
func (c Commands) Version() exec.Command {
	return exec.NewCommand(c.ZliPath, "--version")
}

// Login returns the service-account login command for the two credential files.
func (c Commands) Login(providerCredsPath, bzeroCredsPath string) exec.Command {
	return exec.NewCommand(c.ZliPath, "service-account", "login",
		"--providerCreds", providerCredsPath,
		"--bzeroCreds", bzeroCredsPath)
}

// GenerateSSHConfig returns the environment preparation command.
func (c Commands) GenerateSSHConfig() exec.Command {
	return exec.NewCommand(c.ZliPath, "generate", "sshConfig")
}

// SSHRequest holds the caller-supplied parts of a pass-through command.
// Empty User and Command fall back to the configured defaults.
type SSHRequest struct {
	User    string
	Host    string
	Command string
}

// SSH builds `ssh -F <config> [extra...] user@host <command>`. The remote
// command is passed as a single argument; it is never interpreted by a
// local shell.
func (c Commands) SSH(req SSHRequest) (exec.Command, error) {
	host := strings.TrimSpace(req.Host)
	if host == "" {
		return exec.Command{}, dserrors.NewUserInputError(
			"Please specify a host in the query parameters",
			"Add ?host=<target> to the request")
	}

	user := strings.TrimSpace(req.User)
	if user == "" {
		user = c.DefaultUser
	}
	command := req.Command
	if strings.TrimSpace(command) == "" {
		command = c.DefaultCommand
	}

	if strings.HasPrefix(host, "-") || strings.HasPrefix(user, "-") {
		return exec.Command{}, dserrors.NewUserInputError(
			"host and user must not start with '-'",
			"Pass a plain host name and user name")
	}
	if strings.ContainsAny(host+user, " \t\r\n@") {
		return exec.Command{}, dserrors.NewUserInputError(
			"host and user must not contain whitespace or '@'",
			"Pass the user and host as separate parameters")
	}

	args := []string{"-F", c.SSHConfigPath}
	args = append(args, c.SSHExtraArgs...)
	args = append(args, user+"@"+host, command)

	return exec.NewCommand(c.SSHPath, args...), nil
}
