package lifecycle

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	ephemeralLockFile = "ephemeral.lock"
	ephemeralPIDFile  = "ephemeral.pid"
	ephemeralPortFile = "ephemeral.port"
	ephemeralLogFile  = "ephemeral.log"

	// probeTimeout bounds the TCP dial used to decide whether a recorded
	// port is still accepting connections.
	probeTimeout = 250 * time.Millisecond
)

// writeFileAtomic writes via a temp file in the same directory plus rename,
// so a crash mid-write never leaves a truncated pid or port file behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func writeIntFile(path string, n int) error {
	return writeFileAtomic(path, []byte(strconv.Itoa(n)+"\n"))
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// portAccepting reports whether something is listening on the loopback port.
func portAccepting(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// tailFile returns up to maxBytes from the end of a file, for surfacing
// the last lines of a crashed dashboard's stderr.
func tailFile(path string, maxBytes int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return ""
	}
	if info.Size() > maxBytes {
		if _, err := f.Seek(-maxBytes, 2); err != nil {
			return ""
		}
	}
	buf := make([]byte, maxBytes)
	n, _ := f.Read(buf)
	return strings.TrimSpace(string(buf[:n]))
}
