// Package lockfile provides advisory file locks and process liveness probes
// for the dashboard lifecycle protocol.
package lockfile

import (
	"errors"
	"fmt"
	"os"
)

// ErrBusy is returned when another process already holds the lock.
var ErrBusy = errors.New("lock already held by another process")

// Lock is a held advisory lock. The underlying file stays on disk after
// Release; only the lock is dropped.
type Lock struct {
	f    *os.File
	path string
}

// Acquire opens (creating if needed) path and takes an exclusive
// non-blocking advisory lock on it. Returns ErrBusy without waiting when
// another process holds it.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) // #nosec G304 -- path is project-local
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := flockExclusiveNonBlock(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrBusy) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return &Lock{f: f, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock and closes the file. Safe to call once on every
// return path; subsequent calls are no-ops.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := flockUnlock(l.f)
	cerr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return cerr
}
