package lifecycle

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"net"
)

const (
	portBase     = 8400
	portSpread   = 1000
	portFallback = 4
)

// DeterministicPort maps a resolved project directory to its stable
// dashboard port. Different projects on one machine land on different
// ports; the same project always tries the same port first, so bookmarks
// and agent configs keep working across sessions.
func DeterministicPort(resolvedDir string) int {
	sum := sha256.Sum256([]byte(resolvedDir))
	n := binary.BigEndian.Uint64(sum[:8])
	return portBase + int(n%portSpread)
}

// CandidatePorts returns the deterministic port followed by its sequential
// fallbacks.
func CandidatePorts(resolvedDir string) []int {
	first := DeterministicPort(resolvedDir)
	out := make([]int, 0, portFallback+1)
	for i := 0; i <= portFallback; i++ {
		out = append(out, first+i)
	}
	return out
}

// ChoosePort finds a free loopback port for the project: the deterministic
// candidates in order, then an OS-assigned one. The probe listener is
// closed before returning, so the port is reserved only by convention
// until the dashboard binds it.
func ChoosePort(resolvedDir string) (int, error) {
	for _, port := range CandidatePorts(resolvedDir) {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		l.Close()
		return port, nil
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("no free port: %w", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port, nil
}
