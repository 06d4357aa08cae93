package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a request is malformed. *ValidationError matches it.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a turn or document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when retrieval, embedding or the model fails.
	ErrExternalService = errors.New("external service error")
)

// ValidationError names the rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func invalidField(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) hold for validation failures.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// WrapError prefixes err with msg, keeping it matchable. A nil err stays nil.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
