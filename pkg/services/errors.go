package services

import (
	"errors"
	"fmt"
)

// ErrNotCancellable is returned when a plan exists but is not in a
// cancellable state.
var ErrNotCancellable = errors.New("plan is not cancellable")

// ValidationError wraps field-specific request validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
