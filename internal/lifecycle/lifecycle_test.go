package lifecycle

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDeterministicPortIsStableAndBounded(t *testing.T) {
	a := DeterministicPort("/home/alice/projects/loom")
	b := DeterministicPort("/home/alice/projects/loom")
	if a != b {
		t.Fatalf("same dir produced different ports: %d vs %d", a, b)
	}
	if a < portBase || a >= portBase+portSpread {
		t.Fatalf("port %d outside [%d, %d)", a, portBase, portBase+portSpread)
	}
	c := DeterministicPort("/home/alice/projects/other")
	if c < portBase || c >= portBase+portSpread {
		t.Fatalf("port %d outside expected range", c)
	}
}

func TestChoosePortFallsBackSequentially(t *testing.T) {
	dir := t.TempDir()
	first := DeterministicPort(dir)

	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", first))
	if err != nil {
		t.Skipf("deterministic port %d unavailable on this host: %v", first, err)
	}
	defer l.Close()

	got, err := ChoosePort(dir)
	if err != nil {
		t.Fatalf("ChoosePort: %v", err)
	}
	if got == first {
		t.Fatalf("ChoosePort returned occupied port %d", first)
	}
	if got != first+1 {
		// A neighbor may be in use on a busy host; the invariant is that
		// the result stays within the fallback window or is OS-assigned.
		inWindow := got > first && got <= first+portFallback
		if !inWindow && got < 1024 {
			t.Fatalf("unexpected fallback port %d for base %d", got, first)
		}
	}
}

func TestChoosePortUsesOSAssignedWhenWindowFull(t *testing.T) {
	dir := t.TempDir()
	var held []net.Listener
	for _, port := range CandidatePorts(dir) {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			t.Skipf("cannot occupy candidate window: %v", err)
		}
		held = append(held, l)
	}
	defer func() {
		for _, l := range held {
			l.Close()
		}
	}()

	got, err := ChoosePort(dir)
	if err != nil {
		t.Fatalf("ChoosePort: %v", err)
	}
	for _, port := range CandidatePorts(dir) {
		if got == port {
			t.Fatalf("ChoosePort returned occupied candidate %d", got)
		}
	}
	if got == 0 {
		t.Fatal("ChoosePort returned 0")
	}
}

func TestEnsureEphemeralSpawnsAndRecords(t *testing.T) {
	weftDir := t.TempDir()

	var spawnedPort int
	spawn := func(port int, logPath string) (int, error) {
		spawnedPort = port
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return 0, err
		}
		t.Cleanup(func() { l.Close() })
		go func() {
			for {
				conn, err := l.Accept()
				if err != nil {
					return
				}
				conn.Close()
			}
		}()
		return os.Getpid(), nil
	}

	st, err := EnsureEphemeral(weftDir, weftDir, spawn)
	if err != nil {
		t.Fatalf("EnsureEphemeral: %v", err)
	}
	if !st.Running || st.Reused {
		t.Fatalf("expected fresh running instance, got %+v", st)
	}
	if st.Port != spawnedPort {
		t.Fatalf("status port %d != spawned port %d", st.Port, spawnedPort)
	}

	pid, err := readIntFile(filepath.Join(weftDir, ephemeralPIDFile))
	if err != nil || pid != os.Getpid() {
		t.Fatalf("pid file: pid=%d err=%v", pid, err)
	}
	port, err := readIntFile(filepath.Join(weftDir, ephemeralPortFile))
	if err != nil || port != spawnedPort {
		t.Fatalf("port file: port=%d err=%v", port, err)
	}

	// Second call must reuse, not respawn.
	calls := 0
	st2, err := EnsureEphemeral(weftDir, weftDir, func(int, string) (int, error) {
		calls++
		return 0, fmt.Errorf("should not spawn")
	})
	if err != nil {
		t.Fatalf("EnsureEphemeral reuse: %v", err)
	}
	if !st2.Reused || st2.Port != spawnedPort || calls != 0 {
		t.Fatalf("expected reuse of port %d, got %+v (spawn calls %d)", spawnedPort, st2, calls)
	}
}

func TestEnsureEphemeralReapsStaleInstance(t *testing.T) {
	weftDir := t.TempDir()

	// Record a pid that cannot be alive and a port nothing listens on.
	if err := writeIntFile(filepath.Join(weftDir, ephemeralPIDFile), 1<<30); err != nil {
		t.Fatal(err)
	}
	if err := writeIntFile(filepath.Join(weftDir, ephemeralPortFile), 1); err != nil {
		t.Fatal(err)
	}

	spawned := false
	st, err := EnsureEphemeral(weftDir, weftDir, func(port int, logPath string) (int, error) {
		spawned = true
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return 0, err
		}
		t.Cleanup(func() { l.Close() })
		return os.Getpid(), nil
	})
	if err != nil {
		t.Fatalf("EnsureEphemeral: %v", err)
	}
	if !spawned || st.Reused {
		t.Fatalf("stale instance was not replaced: %+v", st)
	}
}

func TestEnsureEphemeralReportsEarlyExitWithLog(t *testing.T) {
	weftDir := t.TempDir()

	spawn := func(port int, logPath string) (int, error) {
		if err := os.WriteFile(logPath, []byte("fatal: port already bound\n"), 0o600); err != nil {
			return 0, err
		}
		return 1 << 30, nil // a pid that does not exist
	}
	_, err := EnsureEphemeral(weftDir, weftDir, spawn)
	if err == nil {
		t.Fatal("expected early-exit error")
	}
	if !strings.Contains(err.Error(), "exited during startup") ||
		!strings.Contains(err.Error(), "port already bound") {
		t.Fatalf("error should carry the log tail, got: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(weftDir, ephemeralPIDFile)); !os.IsNotExist(statErr) {
		t.Fatal("pid file should not be written after a failed start")
	}
}

func TestServerConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadServerConfig(dir)
	if err != nil {
		t.Fatalf("LoadServerConfig on empty dir: %v", err)
	}
	if cfg.Port != DefaultServerPort || len(cfg.Projects) != 0 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}

	cfg.Port = 9100
	cfg.Projects["/srv/projects/loom"] = ServerProject{Prefix: "loom"}
	if err := SaveServerConfig(dir, cfg); err != nil {
		t.Fatalf("SaveServerConfig: %v", err)
	}

	got, err := LoadServerConfig(dir)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if got.Port != 9100 {
		t.Fatalf("port = %d, want 9100", got.Port)
	}
	if got.Projects["/srv/projects/loom"].Prefix != "loom" {
		t.Fatalf("projects did not round-trip: %+v", got.Projects)
	}
}

func TestRegisterProjectRejectsPrefixCollision(t *testing.T) {
	dir := t.TempDir()

	if _, err := RegisterProject(dir, "/srv/a/loom", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := RegisterProject(dir, "/srv/b/loom", ""); err == nil {
		t.Fatal("expected prefix collision error")
	}
	if _, err := RegisterProject(dir, "/srv/b/loom", "loom2"); err != nil {
		t.Fatalf("register with explicit prefix: %v", err)
	}

	cfg, err := LoadServerConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/srv/a/loom", "/srv/b/loom"}
	got := cfg.SortedProjectDirs()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("registered dirs = %v, want %v", got, want)
	}

	if _, err := UnregisterProject(dir, "/srv/a/loom"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, err := UnregisterProject(dir, "/srv/a/loom"); err == nil {
		t.Fatal("expected error unregistering unknown dir")
	}
}

func TestEphemeralChecksGradeStaleState(t *testing.T) {
	weftDir := t.TempDir()

	checks := EphemeralChecks(weftDir)
	if len(checks) != 1 || checks[0].Status != CheckOK {
		t.Fatalf("empty dir should be ok: %+v", checks)
	}

	if err := writeIntFile(filepath.Join(weftDir, ephemeralPIDFile), 1<<30); err != nil {
		t.Fatal(err)
	}
	if err := writeIntFile(filepath.Join(weftDir, ephemeralPortFile), 1); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(weftDir, ephemeralLogFile), []byte("panic: boom\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	checks = EphemeralChecks(weftDir)
	if len(checks) != 1 || checks[0].Status != CheckWarn {
		t.Fatalf("stale instance should warn: %+v", checks)
	}
	if !strings.Contains(checks[0].Detail, "panic: boom") {
		t.Fatalf("warn detail should include log tail: %q", checks[0].Detail)
	}
}

func TestWriteFileAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ephemeral.port")
	if err := writeIntFile(path, 8412); err != nil {
		t.Fatal(err)
	}
	if err := writeIntFile(path, 8413); err != nil {
		t.Fatal(err)
	}
	n, err := readIntFile(path)
	if err != nil || n != 8413 {
		t.Fatalf("read back %d, err %v", n, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
