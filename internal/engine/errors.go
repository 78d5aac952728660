package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// Stable error kind identifiers. The API surface and the CLI map these to
// HTTP statuses and exit codes; they never change once published.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeValidation           = "VALIDATION"
	CodeTransitionNotAllowed = "TRANSITION_NOT_ALLOWED"
	CodeHardEnforcement      = "HARD_ENFORCEMENT"
	CodeCycleDetected        = "CYCLE_DETECTED"
	CodeConflict             = "CONFLICT"
	CodeMigrationFailed      = "MIGRATION_FAILED"
	CodeTemplateParse        = "TEMPLATE_PARSE"
	CodeIOError              = "IO_ERROR"
	CodeInternal             = "INTERNAL"
)

// NotFoundError reports an unknown issue id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("issue %s not found", e.ID) }

// Code returns the stable error kind.
func (e *NotFoundError) Code() string { return CodeNotFound }

// ValidationError is a general input error: bad priority range, bad status
// value, schema violation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Code returns the stable error kind.
func (e *ValidationError) Code() string { return CodeValidation }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransitionNotAllowedError is raised where the engine demands strict
// checking, such as closing with an explicit state outside the done
// category.
type TransitionNotAllowedError struct {
	Type string
	From string
	To   string
	Msg  string
}

func (e *TransitionNotAllowedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("transition %s -> %s is not allowed for type %s", e.From, e.To, e.Type)
}

// Code returns the stable error kind.
func (e *TransitionNotAllowedError) Code() string { return CodeTransitionNotAllowed }

// HardEnforcementError reports a hard transition blocked by missing fields.
// ValidTransitions carries the currently available moves so callers can
// self-correct without a second request.
type HardEnforcementError struct {
	Type             string
	From             string
	To               string
	MissingFields    []string
	ValidTransitions []types.TransitionOption
}

func (e *HardEnforcementError) Error() string {
	return fmt.Sprintf("transition %s -> %s requires fields: %s",
		e.From, e.To, strings.Join(e.MissingFields, ", "))
}

// Code returns the stable error kind.
func (e *HardEnforcementError) Code() string { return CodeHardEnforcement }

// Hint suggests the next move for agents that hit the wall.
func (e *HardEnforcementError) Hint() string {
	if len(e.ValidTransitions) == 0 {
		return fmt.Sprintf("populate %s and retry", strings.Join(e.MissingFields, ", "))
	}
	var ready []string
	for _, tr := range e.ValidTransitions {
		if tr.Satisfied {
			ready = append(ready, tr.To)
		}
	}
	if len(ready) > 0 {
		return fmt.Sprintf("populate %s and retry, or move to: %s",
			strings.Join(e.MissingFields, ", "), strings.Join(ready, ", "))
	}
	return fmt.Sprintf("populate %s and retry", strings.Join(e.MissingFields, ", "))
}

// CycleError reports a dependency edge that would close a cycle.
type CycleError struct {
	From string
	To   string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency %s -> %s would create a cycle", e.From, e.To)
}

// Code returns the stable error kind.
func (e *CycleError) Code() string { return CodeCycleDetected }

// ConflictError reports an optimistic-locking failure on claim or release.
type ConflictError struct {
	ID  string
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// Code returns the stable error kind.
func (e *ConflictError) Code() string { return CodeConflict }

// coder is implemented by every typed engine error.
type coder interface {
	Code() string
}

// CodeOf maps any error to its stable kind identifier. Storage sentinels
// translate to their engine-level kinds; everything else is INTERNAL.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, storage.ErrConflict):
		return CodeConflict
	case errors.Is(err, storage.ErrCycle):
		return CodeCycleDetected
	case errors.Is(err, storage.ErrExists):
		return CodeValidation
	}
	return CodeInternal
}
