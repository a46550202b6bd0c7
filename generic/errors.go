/*
errors.go - Centralized error types for the generic primitives

PURPOSE:
  All error types in one place for consistency and discoverability.
  The payroll package wraps these errors with domain context.

ERROR CATEGORIES:
  1. Ledger errors - Transaction persistence failures
  2. Validation errors - Malformed periods and amounts
  3. Store errors - Missing records, optimistic-lock conflicts

USAGE:
    if errors.Is(err, generic.ErrConcurrentModification) {
        // another commit touched the same accumulator, retry the batch
    }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTransactionFailed is returned when a transaction cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEntityNotFound is returned when a referenced record doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrCurrencyMismatch is returned when amounts in different currencies are combined.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError reports an accumulator that changed between read and commit.
type ConflictError struct {
	EntityID      EntityID
	AccumulatorID AccumulatorID
	Expected      Amount
	Actual        Amount
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("accumulator %s/%s changed: expected %s, found %s",
		e.EntityID, e.AccumulatorID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error {
	return ErrConcurrentModification
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrCurrencyMismatch)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
