//go:build windows

package lifecycle

import (
	"os"
	"os/exec"
	"syscall"
)

// SpawnDetached starts the given command detached from the console, with
// stderr appended to logPath. Stdout goes to the same log; stdin is closed.
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
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x00000008, // DETACHED_PROCESS
	}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

// terminateProcess kills the process. Windows has no SIGTERM equivalent
// the dashboard could trap, so this is a hard stop.
func terminateProcess(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
