package latency

import (
	"errors"
	"fmt"
)

// Error is a classified failure raised by the measurement loop.
//
// Only CodeCollaboratorFatal and CodeNoData are ever returned to callers.
// The other codes classify attempt-level outcomes that are recorded in the
// run and in DiagnosticCounters but never stop a run.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Run is the 1-based run index, 0 when not tied to a run.
	Run int

	// Attempt is the 1-based attempt index, 0 when not tied to an attempt.
	Attempt int

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes measurement errors.
type ErrorCode string

const (
	// CodeCollaboratorTransient is a single failed poll tick; retried on the
	// next tick within the same attempt budget.
	CodeCollaboratorTransient ErrorCode = "COLLABORATOR_TRANSIENT"

	// CodeCollaboratorFatal means the injector or the source is unusable.
	// The current run is aborted.
	CodeCollaboratorFatal ErrorCode = "COLLABORATOR_FATAL"

	// CodeImplausibleLatency is a detected change whose latency falls
	// outside (0, MaxPlausibleLatency].
	CodeImplausibleLatency ErrorCode = "IMPLAUSIBLE_LATENCY"

	// CodeNoChangeDetected means the attempt budget ran out.
	CodeNoChangeDetected ErrorCode = "NO_CHANGE_DETECTED"

	// CodeNoData means there are no accepted samples to reduce.
	CodeNoData ErrorCode = "NO_DATA"
)

// ErrNoData is returned by Reduce for an empty sample set.
var ErrNoData = &Error{Code: CodeNoData, Message: "no accepted samples"}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Run != 0 && e.Attempt != 0:
		msg = fmt.Sprintf("%s (run=%d, attempt=%d)", msg, e.Run, e.Attempt)
	case e.Run != 0:
		msg = fmt.Sprintf("%s (run=%d)", msg, e.Run)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code, so errors.Is(err, ErrNoData)
// works for wrapped no-data failures too.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// IsFatal returns true if the error aborted a run.
// Uses errors.As to handle wrapped errors.
func IsFatal(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == CodeCollaboratorFatal
	}
	return false
}

// IsNoData returns true if the error reports an empty sample set.
func IsNoData(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == CodeNoData
	}
	return false
}

// newFatalError wraps a collaborator failure that aborts the current run.
func newFatalError(run, attempt int, what string, err error) *Error {
	return &Error{
		Code:    CodeCollaboratorFatal,
		Message: what,
		Run:     run,
		Attempt: attempt,
		Err:     err,
	}
}
