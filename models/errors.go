package models

import (
	"errors"
	"fmt"
)

// ValidationError is a local form error. It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if error is a validation error
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// NotAuthenticatedError is returned when an action needs an identity and none is signed in.
type NotAuthenticatedError struct{}

func (e *NotAuthenticatedError) Error() string {
	return "User not authenticated"
}

// ErrNotAuthenticated is the shared NotAuthenticatedError value.
var ErrNotAuthenticated error = &NotAuthenticatedError{}

func IsNotAuthenticated(err error) bool {
	var e *NotAuthenticatedError
	return errors.As(err, &e)
}

// AuthorizationError is returned when an identity is present but does not own the entity.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

func IsAuthorizationError(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

// UploadError wraps a blob storage failure.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return "upload failed"
	}
	return e.Err.Error()
}

func (e *UploadError) Unwrap() error { return e.Err }

func IsUploadError(err error) bool {
	var e *UploadError
	return errors.As(err, &e)
}

// PersistenceError wraps a gateway write failure. Op names the mutation, e.g. "create post".
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsPersistenceError(err error) bool {
	var e *PersistenceError
	return errors.As(err, &e)
}

// StreamError reports that a live subscription terminated abnormally.
type StreamError struct {
	Stream string
	Err    error
}

func (e *StreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("stream %s terminated", e.Stream)
	}
	return e.Err.Error()
}

func (e *StreamError) Unwrap() error { return e.Err }

func IsStreamError(err error) bool {
	var e *StreamError
	return errors.As(err, &e)
}

// Message returns the human readable message of err, or fallback when err carries none.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
