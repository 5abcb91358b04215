package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions. Every stage consumes the same
// closed taxonomy instead of branching on raw HTTP status codes:
//
//   - ErrNotFound        — citation id unknown; fatal input, never retried
//   - ErrConcurrencyConflict — optimistic version mismatch; retried locally,
//     re-raised as transient when the local budget is exhausted
//   - ErrServiceUnavailable  — adapter timeout/gateway-timeout; retried by the
//     job queue's backoff policy, then dead-lettered
//   - ErrRemoteNotFound  — adapter 404; not an error, a stage-local no-op
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrencyConflict indicates a version-guarded write lost the race
	// against a concurrent writer.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrAlreadyProcessed indicates the citation is terminal and accepts no
	// further stage mutation until explicitly reset.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrServiceUnavailable indicates an external service is unavailable or
	// timed out.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRemoteNotFound indicates an external registry does not know the
	// requested identifier.
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrWorkflowFailed indicates that a Temporal workflow failed.
	ErrWorkflowFailed = errors.New("workflow failed")

	// ErrInternalError indicates an internal server error.
	ErrInternalError = errors.New("internal error")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// ConflictError provides details about an optimistic concurrency conflict.
type ConflictError struct {
	Entity          string
	ID              string
	ExpectedVersion int64
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s version conflict: %s (expected version %d)", e.Entity, e.ID, e.ExpectedVersion)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ConflictError) Unwrap() error {
	return ErrConcurrencyConflict
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Entity: entity,
		ID:     id,
	}
}

// NewConflictError creates a new ConflictError.
func NewConflictError(entity, id string, expectedVersion int64) *ConflictError {
	return &ConflictError{
		Entity:          entity,
		ID:              id,
		ExpectedVersion: expectedVersion,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
