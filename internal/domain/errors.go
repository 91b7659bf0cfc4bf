package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrConflict           = errors.New("conflict")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")

	ErrUsernameTaken   = fmt.Errorf("username already registered: %w", ErrConflict)
	ErrEmailTaken      = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("player %w", ErrNotFound)
)

// ValidationError identifies the field of a payload that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
