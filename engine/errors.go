/*
errors.go - Centralized error types for the pay engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The workflow and API layers wrap these with additional context.

ERROR CATEGORIES:
  1. Rate errors - No applicable rate, overlapping rate entries
  2. Calculation errors - Invalid hours input
  3. Workflow errors - Illegal transitions, failed guards, lost races
  4. Store errors - Persistence failures (wrapped, never swallowed)

USAGE:
  Callers match with errors.Is / errors.As:

    if errors.Is(err, engine.ErrRateNotFound) { ... }

    var tErr *engine.InvalidTransitionError
    if errors.As(err, &tErr) { ... tErr.From, tErr.Event ... }

SEE ALSO:
  - rates.go, calculator.go: producers of rate/hours errors
  - workflow package: producer of transition errors
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRateNotFound is returned when no rate entry covers a
	// (user, project, date) triple. Never defaulted to zero: a zero rate
	// would silently corrupt payroll.
	ErrRateNotFound = errors.New("no applicable rate")

	// ErrInvalidHours is returned for negative or out-of-day entries.
	ErrInvalidHours = errors.New("invalid hours")

	// ErrInvalidTransition is returned when a workflow event is not legal
	// from the record's current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrValidation is returned for malformed input (missing rejection
	// reason, bad expense amount) before any state mutates.
	ErrValidation = errors.New("validation failed")

	// ErrConcurrentModification is returned when an optimistic version
	// check fails: someone else transitioned the record first.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrPersistence wraps storage failures. The engine never retries;
	// retrying is the caller's responsibility.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RateNotFoundError reports which lookup failed.
type RateNotFoundError struct {
	UserID    UserID
	ProjectID ProjectID
	Date      Date
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no rate for user %s on project %s effective %s",
		e.UserID, e.ProjectID, e.Date)
}

func (e *RateNotFoundError) Unwrap() error { return ErrRateNotFound }

// OverlappingRateError reports a rate-table invariant violation: two
// entries at the same specificity cover the same date.
type OverlappingRateError struct {
	Date     Date
	EntryIDs []string
}

func (e *OverlappingRateError) Error() string {
	return fmt.Sprintf("overlapping rate entries %v effective %s", e.EntryIDs, e.Date)
}

func (e *OverlappingRateError) Unwrap() error { return ErrValidation }

// InvalidHoursError reports a bad time entry fed to the calculator.
type InvalidHoursError struct {
	EntryID EntryID
	Minutes int
	Reason  string
}

func (e *InvalidHoursError) Error() string {
	return fmt.Sprintf("invalid hours on entry %s (%d min): %s", e.EntryID, e.Minutes, e.Reason)
}

func (e *InvalidHoursError) Unwrap() error { return ErrInvalidHours }

// InvalidTransitionError identifies which transition was attempted and why
// it was refused, so the UI can present an actionable message.
type InvalidTransitionError struct {
	TargetID string
	From     SheetStatus
	Event    string
	Reason   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s from %s: %s", e.Event, e.TargetID, e.From, e.Reason)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports malformed input. Raised before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// =============================================================================
// ERROR HELPERS - Used by the API layer for status mapping
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidHours) ||
		errors.Is(err, ErrRateNotFound)
}

// IsConflict returns true for races and illegal transitions (HTTP 409).
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrPersistence)
}
