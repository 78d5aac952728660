// Package debug provides env-gated diagnostic logging.
//
// Set WEFT_DEBUG=1 to enable. Output goes to stderr so it never corrupts
// JSON emitted on stdout for agent consumers.
package debug

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

var (
	enabled = os.Getenv("WEFT_DEBUG") != "" && os.Getenv("WEFT_DEBUG") != "0"
	verbose atomic.Bool
	quiet   atomic.Bool
)

// Enabled reports whether debug logging is on.
func Enabled() bool { return enabled }

// SetVerbose toggles verbose user-facing output (--verbose).
func SetVerbose(v bool) { verbose.Store(v) }

// SetQuiet suppresses normal user-facing output (--quiet).
func SetQuiet(q bool) { quiet.Store(q) }

// Verbose reports whether --verbose is active.
func Verbose() bool { return verbose.Load() }

// Logf writes a timestamped debug line to stderr when WEFT_DEBUG is set.
func Logf(format string, args ...interface{}) {
	if !enabled {
		return
	}
	fmt.Fprintf(os.Stderr, "[weft %s] %s\n",
		time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
}

// Printf writes normal user-facing output unless --quiet is set.
func Printf(format string, args ...interface{}) {
	if quiet.Load() {
		return
	}
	fmt.Printf(format, args...)
}

// Verbosef writes user-facing output only under --verbose.
func Verbosef(format string, args ...interface{}) {
	if !verbose.Load() || quiet.Load() {
		return
	}
	fmt.Printf(format, args...)
}
