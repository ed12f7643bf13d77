//go:build windows

package cli

import (
	"errors"
	"os"
	"os/exec"
)

// setSysProcAttr is a no-op on Windows. Use a service wrapper such as NSSM
// for long-running deployments.
func setSysProcAttr(cmd *exec.Cmd) {}

// isProcessRunning is best effort on Windows, where FindProcess opens a
// handle only for live processes.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	proc.Release()
	return true
}

// stopProcess kills the process; Windows has no SIGTERM.
func stopProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

// reloadProcess is unsupported on Windows; restart the server instead.
func reloadProcess(pid int) error {
	return errors.New("policy reload by signal is not supported on windows, restart the server")
}
