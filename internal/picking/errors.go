package picking

import (
	"errors"
	"fmt"
)

var (
	// ErrLockConflict marks a claim that overlaps an active batch's claims.
	// Not fatal: callers may proceed with the reduced available set or abort.
	ErrLockConflict = errors.New("items are locked by another active batch")

	// ErrInvalidState marks an operation attempted against a batch in a
	// state that forbids it. Always rejected, never retried.
	ErrInvalidState = errors.New("operation not allowed in current batch state")

	// ErrIntegrityViolation marks a duplicate ledger entry or a claim update
	// affecting zero rows when a positive count was expected. The enclosing
	// transaction must roll back fully.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrZeroAvailable marks a create or re-claim whose candidate set, after
	// excluding conflicts, is empty.
	ErrZeroAvailable = errors.New("no claimable lines match the batch criteria")

	// ErrNotFound marks a missing batch or order line.
	ErrNotFound = errors.New("not found")
)

// ConflictError carries the structured conflict report for user display
type ConflictError struct {
	Report ConflictReport
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d items are locked by %d other active batch(es)",
		e.Report.TotalConflictingItems, len(e.Report.Conflicts))
}

func (e *ConflictError) Unwrap() error {
	return ErrLockConflict
}

// StateError carries the offending operation and status
type StateError struct {
	Op     string
	Status string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed while batch is %q", e.Op, e.Status)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}
