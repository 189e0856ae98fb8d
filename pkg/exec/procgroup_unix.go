//go:build unix

package exec

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts c in its own process group and kills the whole
// group on cancellation, so helpers such as an ssh ProxyCommand do not
// outlive the command.
func killProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
