//go:build windows

package utils

import (
	"os"
	"os/exec"
	"syscall"
)

// ConfigureDetachedProcAttr hides the console window of child processes
// unless debug mode is on, in which case their output stays visible.
func ConfigureDetachedProcAttr(cmd *exec.Cmd) {
	if IsDebug() {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow: true,
	}
}

// InterruptProcess terminates the child. Windows has no SIGTERM equivalent
// for console-less processes, so this is a hard stop.
func InterruptProcess(p *os.Process) error {
	return p.Kill()
}

// HideConsole prevents short-lived helper commands (adb) from flashing a console.
func HideConsole(cmd *exec.Cmd) {
	ConfigureDetachedProcAttr(cmd)
}
