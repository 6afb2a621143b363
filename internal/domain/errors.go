package domain

import (
	"errors"
	"fmt"
)

// ValidationError indicates malformed input (bad URI, missing parameter,
// dimension mismatch). It fails fast: no retry, no compensation, since no
// state was mutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError indicates a referenced job, project, or file does not exist.
// Surfaced directly to the caller, never retried.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// TransientProviderError indicates rate-limiting or a server-side failure
// from an external provider. Retried with exponential backoff up to a fixed
// attempt cap; exhausting the cap escalates to a pipeline failure.
type TransientProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransientProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s transient error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s transient error (status %d)", e.Provider, e.StatusCode)
}

func (e *TransientProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientProviderError.
func IsTransient(err error) bool {
	var te *TransientProviderError
	return errors.As(err, &te)
}

// PipelineError wraps a stage failure that occurred after job creation,
// recording the phase in flight when it fired. It always triggers the
// orchestrator's compensation sequence.
type PipelineError struct {
	Phase Phase
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline phase %s: %v", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
