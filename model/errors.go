package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the store and the HTTP layer.
var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a form, submission or user id that does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated caller that is neither owner nor admin.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a stale form version or a duplicate unique key.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries a message meant for the client, and optionally
// per-field messages keyed by field name or question id.
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
