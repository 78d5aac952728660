// Package ui provides terminal styling and output helpers for weft CLI
// output.
package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsAgentMode reports whether output should stay plain for machine
// consumption. Set WEFT_AGENT=1 in agent harnesses; --json is the better
// option when a command supports it.
func IsAgentMode() bool {
	return os.Getenv("WEFT_AGENT") != ""
}

// ShouldUseColor decides whether to emit ANSI colors, honoring the
// conventional environment variables in precedence order:
// NO_COLOR beats everything, then CLICOLOR_FORCE, then CLICOLOR=0,
// then the TTY check.
func ShouldUseColor() bool {
	if _, set := os.LookupEnv("NO_COLOR"); set && os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" && os.Getenv("CLICOLOR_FORCE") != "0" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if IsAgentMode() {
		return false
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether status icons may use non-ASCII glyphs.
func ShouldUseEmoji() bool {
	if os.Getenv("WEFT_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}
