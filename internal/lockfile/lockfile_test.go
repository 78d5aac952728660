package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ephemeral.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if lock.Path() != path {
		t.Errorf("Path() = %q, want %q", lock.Path(), path)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	// Release keeps the file on disk.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file removed on release: %v", err)
	}
	// Double release is a no-op.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release errored: %v", err)
	}
}

func TestAcquireContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ephemeral.lock")

	held, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer func() { _ = held.Release() }()

	// A second descriptor on the same file contends with the first.
	if _, err := Acquire(path); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire = %v, want ErrBusy", err)
	}
}

func TestAcquireAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ephemeral.lock")

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	second, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	_ = second.Release()
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Error("own PID reported dead")
	}
	if ProcessAlive(0) {
		t.Error("PID 0 reported alive")
	}
	if ProcessAlive(-5) {
		t.Error("negative PID reported alive")
	}
}

func TestErrBusyIsComparable(t *testing.T) {
	if !errors.Is(ErrBusy, ErrBusy) {
		t.Fatal("ErrBusy must match itself with errors.Is")
	}
}
