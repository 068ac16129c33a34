// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors: malformed or out-of-order bars. A backtest cannot skip
	// bars without corrupting swing confirmation indices, so these halt the
	// run and are never retried.
	ErrDataInvalid      = &Error{Code: "DATA_INVALID", Message: "invalid bar data"}
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no bar data available"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient warm-up bars"}

	// Config errors: rejected at construction, before any bar is processed.
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// StateViolation indicates a logic defect (double entry, premature
	// classification, look-ahead). Never recoverable; always surfaced.
	ErrStateViolation = &Error{Code: "STATE_VIOLATION", Message: "internal state invariant violated"}

	// Storage errors
	ErrArchiveFailed = &Error{Code: "ARCHIVE_FAILED", Message: "result archive write failed"}
)
