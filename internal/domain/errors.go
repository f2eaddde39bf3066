package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a submission or entity fails validation.
	// It is usually wrapped by a ValidationError carrying the field name.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyContent is returned when a prompt or filename is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRequestKind is returned for a request kind other than prompt or file.
	ErrInvalidRequestKind = errors.New("invalid request kind")

	// ErrInvalidChartKind is returned for an unknown chart kind.
	ErrInvalidChartKind = errors.New("invalid chart kind")

	// ErrInvalidPayload is returned when a visualization payload does not match its kind.
	ErrInvalidPayload = errors.New("invalid visualization payload")

	// ErrInvalidID is returned when a task id is malformed.
	ErrInvalidID = errors.New("invalid ID")
)

// ValidationError describes a rejected field of a submission.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError. A nil err defaults to ErrValidation.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports ErrValidation for every ValidationError so callers can match
// on the category without knowing the specific cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
