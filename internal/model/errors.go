package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("listing not found")
	ErrStateConflict    = errors.New("moderation state changed concurrently")
)

// ValidationError reports malformed input for a single field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match the error with errors.Is(err, ErrValidation)
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SubmissionRejectedError is returned when the classification gate refuses a
// submission; nothing has been persisted.
type SubmissionRejectedError struct {
	Verdict SubmissionVerdict
}

func (e *SubmissionRejectedError) Error() string {
	return "submission rejected: " + e.Verdict.Message
}
