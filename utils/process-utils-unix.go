//go:build unix

package utils

import (
	"os"
	"os/exec"
	"syscall"
)

// ConfigureDetachedProcAttr configures the command to run in a separate process group
// on Unix systems, so a Ctrl-C in the terminal reaches us first and we decide
// how the children are stopped.
func ConfigureDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

// InterruptProcess asks a child to terminate gracefully.
func InterruptProcess(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

// HideConsole is a no-op outside windows.
func HideConsole(cmd *exec.Cmd) {}
