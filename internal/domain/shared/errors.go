// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
	"time"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// External service errors
	ErrExternalService = errors.New("external service error")
	ErrTimeout         = errors.New("operation timeout")
	ErrRateLimited     = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "homework", "market", "timetable"
	Op      string // Operation that failed, e.g., "Delete", "Untrack"
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

// ══════════════════════════════════════════════════════════════════════════════
// UPSTREAM ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitedError is returned when a fetch is attempted before the shared
// cooldown has elapsed. No network call is made in that case.
type RateLimitedError struct {
	// Wait is how long the caller has to wait before the next allowed call.
	Wait time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.Wait)
}

// Is lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// UpstreamError is returned when an upstream service answers with a status
// outside the accepted set, times out (408) or cannot be reached (0).
type UpstreamError struct {
	StatusCode int
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: status %d", e.URL, e.StatusCode)
}

// Unwrap returns the transport error, if any.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrExternalService) match.
func (e *UpstreamError) Is(target error) bool {
	if target == ErrExternalService {
		return true
	}
	return target == ErrTimeout && e.StatusCode == 408
}

// Homework domain errors
var (
	ErrEventNotFound      = NewDomainError("homework", "Find", ErrNotFound, "homework event not found")
	ErrEventAlreadyExists = NewDomainError("homework", "Create", ErrAlreadyExists, "identical homework event already exists")
	ErrEventTitleEmpty    = NewDomainError("homework", "Validate", ErrEmptyValue, "homework title cannot be empty")
	ErrEventClosed        = NewDomainError("homework", "Transition", ErrStateTransition, "reminder is no longer active")
)

// Market domain errors
var (
	ErrItemNotFound      = NewDomainError("market", "Find", ErrNotFound, "tracked item not found")
	ErrItemAlreadyExists = NewDomainError("market", "Track", ErrAlreadyExists, "item is already tracked")
	ErrInvalidPriceBand  = NewDomainError("market", "Validate", ErrValueOutOfRange, "minimum price must be lower than maximum price")
	ErrUntrackForbidden  = NewDomainError("market", "Untrack", ErrForbidden, "only the creator or an administrator can untrack this item")
)

// Timetable domain errors
var (
	ErrUnknownGroup     = NewDomainError("timetable", "Validate", ErrInvalidInput, "unknown group tag")
	ErrInvalidBoundary  = NewDomainError("timetable", "Validate", ErrInvalidFormat, "period boundaries must be increasing and non-overlapping")
	ErrInvalidTimetable = NewDomainError("timetable", "Parse", ErrInvalidFormat, "invalid timetable document")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsForbidden checks if the error is a permission error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRateLimited checks if the error is a cooldown rejection.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
