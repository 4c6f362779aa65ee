package domain

import (
	"errors"
	"fmt"
)

var (
	// Request errors
	ErrValidation       = errors.New("validation failed")
	ErrSameAccount      = errors.New("cannot post to same account")
	ErrInvalidAmount    = errors.New("amount must be non-zero")
	ErrCurrencyMismatch = errors.New("posting currency does not match account currency")
	ErrEmptyPlan        = errors.New("plan has no batches")
	ErrEmptyBatch       = errors.New("batch has no postings")
	ErrDuplicateBatch   = errors.New("batch id repeated within plan")
	ErrInvalidPlanID    = errors.New("invalid plan id")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrChecksumMismatch = errors.New("batch content differs from held batch")
	ErrInvalidClock     = errors.New("invalid clock")
	ErrPlanTooLarge     = errors.New("plan has too many postings")

	// Read errors
	ErrNotReady           = errors.New("state has not caught up with clock")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPlanMarkerNotFound = errors.New("plan marker not found")

	// Transport errors
	ErrRequestInFlight = errors.New("request with this idempotency key is in progress")

	// Replay errors
	ErrHoldMissing         = errors.New("no hold recorded for batch")
	ErrInvariantViolation  = errors.New("balance invariant violated")
	ErrStorage             = errors.New("storage failure")
	ErrConflict            = errors.New("transaction conflict")
	ErrLogUnavailable      = errors.New("log unavailable")
	ErrUnknownPartition    = errors.New("partition not assigned to reader")
	ErrMalformedLogMessage = errors.New("malformed log message")
)

// ValidationError marks a request rejected before anything is published.
// It matches both ErrValidation and the specific cause with errors.Is.
type ValidationError struct {
	Cause  error
	Detail string
}

// NewValidationError wraps cause as a validation failure.
func NewValidationError(cause error, format string, args ...any) *ValidationError {
	return &ValidationError{Cause: cause, Detail: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Cause.Error()
	}
	return e.Cause.Error() + ": " + e.Detail
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Cause}
}

// StorageError wraps a failure of the embedded store.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err with the storage operation that produced it.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}
