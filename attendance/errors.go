/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (HTTP handlers, CLI tools) map these to their own surfaces.

ERROR CATEGORIES:
  1. InvalidState  - An attempted lifecycle transition is illegal
  2. Validation    - Malformed input (bad month, blank reason, ...)
  3. NotFound      - Referenced day or employee does not exist
  4. Persistence   - Storage I/O failed; the unit of work rolled back

USAGE:
  Handlers branch on category with the helpers:

    if attendance.IsInvalidState(err) {
        // 409 Conflict
    }

SEE ALSO:
  - engine.go: Raises these errors
  - store.go: Store implementations wrap failures in ErrPersistence
*/
package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidState is returned when a transition is illegal given the
	// day's current status. Recoverable by choosing a different action.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrValidation is returned for malformed input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced day or employee does not
	// exist or is outside the requesting actor's scope.
	ErrNotFound = errors.New("not found")

	// ErrPersistence is returned when the underlying store fails during a
	// transactional mutation. Nothing partially commits, so a retry is safe:
	// the precondition checks make every action idempotent-by-state.
	ErrPersistence = errors.New("persistence failure")

	// ErrDuplicateDay is returned by stores when creating a second
	// AttendanceDay for the same (employee, date). The engine resolves this
	// with a re-read rather than surfacing it.
	ErrDuplicateDay = errors.New("attendance day already exists for date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidStateError reports an illegal lifecycle transition. Message carries
// the stable user-facing text for the rejected action.
type InvalidStateError struct {
	Action  string // "clock_in", "clock_out", "break_start", "break_end"
	Status  Status // status at the time of the attempt
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }
func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ValidationError reports invalid input, optionally scoped to one field so
// administrative override failures can name the offending field.
type ValidationError struct {
	Field   string // empty when not field-scoped
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing day or employee.
type NotFoundError struct {
	Kind string // "attendance_day", "employee"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
func IsDuplicateDay(err error) bool { return errors.Is(err, ErrDuplicateDay) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsPersistence(err error) bool  { return errors.Is(err, ErrPersistence) }
