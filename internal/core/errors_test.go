package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "DATA_INVALID", Message: "invalid bar data"}
	if err.Error() != "[DATA_INVALID] invalid bar data" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	wrapped := WrapError(ErrDataInvalid, fmt.Errorf("bar 42 out of order"))
	want := "[DATA_INVALID] invalid bar data: bar 42 out of order"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestError_Is(t *testing.T) {
	wrapped := WrapError(ErrConfigInvalid, fmt.Errorf("timeout must be positive"))

	if !errors.Is(wrapped, ErrConfigInvalid) {
		t.Error("wrapped error should match its base by code")
	}
	if errors.Is(wrapped, ErrDataInvalid) {
		t.Error("wrapped error should not match a different code")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	wrapped := WrapError(ErrStateViolation, cause)

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the cause via Unwrap")
	}
}
