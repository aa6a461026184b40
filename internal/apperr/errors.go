// Package apperr defines the error taxonomy shared by the query pipeline,
// the governance components and the transport layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a user lacks the permission for an action.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when an entity with the same id already exists.
	ErrConflict = errors.New("conflict")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
)

// ValidationError represents a malformed request, e.g. an unknown role.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConfigurationError is raised at construction time when a required
// collaborator (index, corpus, model) is missing or unreachable.
type ConfigurationError struct {
	Component string
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Component, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RetrievalFailure wraps an embedding or vector index failure.
type RetrievalFailure struct {
	Err error
}

func (e *RetrievalFailure) Error() string {
	return fmt.Sprintf("retrieval failed: %v", e.Err)
}

func (e *RetrievalFailure) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExternalService) match retrieval failures.
func (e *RetrievalFailure) Is(target error) bool {
	return target == ErrExternalService
}

// GenerationFailure wraps a generation backend error or timeout.
type GenerationFailure struct {
	Err error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExternalService) match generation failures.
func (e *GenerationFailure) Is(target error) bool {
	return target == ErrExternalService
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
