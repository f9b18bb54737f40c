// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrInvalidFormat = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")

	// Persistence errors
	ErrPersistence = errors.New("persistence failure")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "archive", "timeline", "kinderpedia"
	Op      string // Operation that failed, e.g., "Put", "FetchWeek"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Child domain errors
var (
	ErrChildNotFound   = NewDomainError("child", "Find", ErrNotFound, "child not found")
	ErrInvalidChildKey = NewDomainError("child", "Validate", ErrInvalidID, "invalid child key")
)

// Kinderpedia API errors
var (
	ErrAPIUnavailable     = NewDomainError("kinderpedia", "Request", ErrServiceUnavailable, "Kinderpedia API is unavailable")
	ErrAPIRateLimited     = NewDomainError("kinderpedia", "Request", ErrRateLimited, "Kinderpedia API rate limit exceeded")
	ErrAPITimeout         = NewDomainError("kinderpedia", "Request", ErrTimeout, "Kinderpedia API request timeout")
	ErrAPIAuthFailed      = NewDomainError("kinderpedia", "Login", ErrUnauthorized, "Kinderpedia login rejected")
	ErrAPIInvalidResponse = NewDomainError("kinderpedia", "Parse", ErrInvalidFormat, "invalid response from Kinderpedia API")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsTransient reports whether the error is a transient fetch condition:
// a network, auth, timeout or rate-limit failure that should be retried at
// the next scheduled step rather than aborting a walk or poll loop.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrExternalService)
}

// IsPersistence reports whether the error came from the durable store.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}
