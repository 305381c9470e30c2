package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the portal's error taxonomy. The service layer wraps
// these with fmt.Errorf("...: %w", ...) and handlers map them to HTTP codes
// with errors.Is.
var (
	ErrAuthFailure        = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrValidation         = errors.New("validation failed")
)

// ValidationError carries the field that failed validation. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a field-level validation failure.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
