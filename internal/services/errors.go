package services

import (
	"errors"
	"fmt"
)

// Error categories. Specific service errors wrap one of these so callers can
// classify them with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrChannelNotReady = errors.New("event channel is not initialized")
)

// PersistenceError reports a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func forbidden(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrForbidden)
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrValidation)
}
