//go:build unix

package lifecycle

import (
	"os"
	"os/exec"
	"syscall"
)

// SpawnDetached starts the given command in its own session so it survives
// the parent exiting, with stderr appended to logPath. Stdout goes to the
// same log; stdin is closed.
func SpawnDetached(exe string, args []string, logPath string) (int, error) {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- path is project-local
	if err != nil {
		return 0, err
	}
	defer logFile.Close()

	cmd := exec.Command(exe, args...) // #nosec G204 -- exe is our own binary path
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Detach: the child is reparented when we exit, and we must not leave
	// a zombie behind if we outlive it.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

// terminateProcess asks the process to shut down cleanly.
func terminateProcess(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(syscall.SIGTERM)
}
