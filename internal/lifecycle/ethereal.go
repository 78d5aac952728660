// Package lifecycle manages how dashboards come up and go away: the
// per-project ethereal instance spawned on demand, and the opt-in
// long-running server daemon that hosts several projects at once.
//
// The ethereal protocol is lock-guarded so that two agents starting work
// in the same project at the same moment end up sharing one dashboard
// instead of racing each other onto the same port.
package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/weftworks/weft/internal/lockfile"
)

// startupGrace is how long a freshly spawned dashboard gets before we
// check whether it exited immediately (bad flag, port stolen, panic).
const startupGrace = 500 * time.Millisecond

// SpawnFunc starts a detached dashboard process for the project, with
// stderr redirected to logPath, and returns its pid. Split out so tests
// can spawn something cheaper than the real binary.
type SpawnFunc func(port int, logPath string) (pid int, err error)

// EphemeralStatus describes the dashboard instance for one project.
type EphemeralStatus struct {
	Running bool
	PID     int
	Port    int
	Reused  bool
	URL     string
}

// EnsureEphemeral makes sure a dashboard is serving the project and
// returns where to find it. weftDir is the project's .weft directory.
//
// The sequence: take the startup lock (fail fast if another session holds
// it), reuse a live instance, reap stale files, pick a port, spawn, wait
// out the early-exit window, record pid and port. The lock is released on
// every path.
func EnsureEphemeral(weftDir, resolvedDir string, spawn SpawnFunc) (*EphemeralStatus, error) {
	lock, err := lockfile.Acquire(filepath.Join(weftDir, ephemeralLockFile))
	if err != nil {
		if errors.Is(err, lockfile.ErrBusy) {
			return nil, fmt.Errorf("another session is starting the dashboard, retry shortly")
		}
		return nil, err
	}
	defer lock.Release()

	// Re-check under the lock: the previous holder may have just finished
	// bringing an instance up.
	if st := probeEphemeral(weftDir); st.Running {
		st.Reused = true
		return &st, nil
	}

	// Anything recorded now is stale: dead pid, or live pid that stopped
	// listening. Clear before starting over.
	reapEphemeral(weftDir)

	port, err := ChoosePort(resolvedDir)
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(weftDir, ephemeralLogFile)
	pid, err := spawn(port, logPath)
	if err != nil {
		return nil, fmt.Errorf("starting dashboard: %w", err)
	}

	time.Sleep(startupGrace)
	if !lockfile.ProcessAlive(pid) {
		msg := fmt.Sprintf("dashboard exited during startup (pid %d)", pid)
		if tail := tailFile(logPath, 2048); tail != "" {
			msg += ":\n" + tail
		}
		return nil, errors.New(msg)
	}

	if err := writeIntFile(filepath.Join(weftDir, ephemeralPIDFile), pid); err != nil {
		return nil, err
	}
	if err := writeIntFile(filepath.Join(weftDir, ephemeralPortFile), port); err != nil {
		return nil, err
	}
	return &EphemeralStatus{
		Running: true,
		PID:     pid,
		Port:    port,
		URL:     fmt.Sprintf("http://127.0.0.1:%d", port),
	}, nil
}

// probeEphemeral reads the recorded pid and port and checks both that the
// process is alive and that the port accepts connections. Either failing
// means the instance is gone or wedged and should not be reused.
func probeEphemeral(weftDir string) EphemeralStatus {
	pid, err := readIntFile(filepath.Join(weftDir, ephemeralPIDFile))
	if err != nil {
		return EphemeralStatus{}
	}
	port, err := readIntFile(filepath.Join(weftDir, ephemeralPortFile))
	if err != nil {
		return EphemeralStatus{}
	}
	if !lockfile.ProcessAlive(pid) || !portAccepting(port) {
		return EphemeralStatus{PID: pid, Port: port}
	}
	return EphemeralStatus{
		Running: true,
		PID:     pid,
		Port:    port,
		URL:     fmt.Sprintf("http://127.0.0.1:%d", port),
	}
}

// CheckEphemeral reports the current instance state without taking the
// startup lock or mutating anything. Used by status and doctor output.
func CheckEphemeral(weftDir string) EphemeralStatus {
	return probeEphemeral(weftDir)
}

// StopEphemeral terminates a running instance and clears its files.
// Missing files mean nothing to stop.
func StopEphemeral(weftDir string) error {
	pid, err := readIntFile(filepath.Join(weftDir, ephemeralPIDFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if lockfile.ProcessAlive(pid) {
		if err := terminateProcess(pid); err != nil {
			return fmt.Errorf("stopping dashboard pid %d: %w", pid, err)
		}
	}
	reapEphemeral(weftDir)
	return nil
}

func reapEphemeral(weftDir string) {
	os.Remove(filepath.Join(weftDir, ephemeralPIDFile))
	os.Remove(filepath.Join(weftDir, ephemeralPortFile))
}
