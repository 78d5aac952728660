package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/weftworks/weft/internal/engine"
)

// Exit codes: 0 success, 1 user error, 2 internal error.
const (
	exitOK       = 0
	exitUser     = 1
	exitInternal = 2
)

// FatalError writes an error message to stderr and exits with code 1.
// Use this for user-input failures and unmet preconditions.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(exitUser)
}

// FatalErrorWithHint writes an error message with an actionable hint to
// stderr and exits with code 1.
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(exitUser)
}

// WarnError writes a warning to stderr and returns. Use for optional
// operations that enhance a command but are not required for it.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// fatal exits with the right code and message for a domain error.
// Hard-enforcement failures get their hint printed; everything the user
// can fix exits 1, internal faults exit 2.
func fatal(err error) {
	var hard *engine.HardEnforcementError
	if errors.As(err, &hard) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", hard)
		if hint := hard.Hint(); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(exitUser)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCodeFor(err))
}

func exitCodeFor(err error) int {
	switch engine.CodeOf(err) {
	case engine.CodeNotFound, engine.CodeValidation, engine.CodeTransitionNotAllowed,
		engine.CodeHardEnforcement, engine.CodeCycleDetected, engine.CodeConflict,
		engine.CodeTemplateParse:
		return exitUser
	default:
		return exitInternal
	}
}
