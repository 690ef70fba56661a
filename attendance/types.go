/*
Package attendance provides the core attendance lifecycle engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking one
  employee's working day: clocking in and out, taking breaks, rolling up
  work and break minutes, and recording administrative corrections.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: The day's position in the clock-in/break/clock-out lifecycle
  - AttendanceDay: One per (employee, calendar date) aggregate
  - ClockEvent: An immutable punch record owned by one AttendanceDay
  - Employee: The entity whose time is being tracked

DESIGN PRINCIPLES:
  1. Closed states: Status is a named enum; illegal states are unrepresentable
  2. Immutability: ClockEvents are written once and never modified
  3. Single writer: one AttendanceDay per (employee, date), enforced by the
     store's uniqueness constraint
  4. Derived capabilities: what an employee may do next is computed from
     Status, never stored

SEE ALSO:
  - engine.go: State machine and transition rules
  - minutes.go: Minute arithmetic and HH:MM formatting
  - store.go: Persistence interfaces
*/
package attendance

import "time"

// =============================================================================
// STATUS - Lifecycle state of one attendance day
// =============================================================================

// Status is the day's position in the lifecycle. Transitions are governed
// exclusively by the Engine; see engine.go for the allowed edges.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusClockedIn  Status = "clocked_in"
	StatusOnBreak    Status = "on_break"
	StatusClockedOut Status = "clocked_out"
)

// Complete reports whether the day has reached its terminal state.
func (s Status) Complete() bool { return s == StatusClockedOut }

// InProgress reports whether the employee is currently at work.
func (s Status) InProgress() bool { return s == StatusClockedIn || s == StatusOnBreak }

// Capability flags. Derived from Status, never stored.
func (s Status) CanClockIn() bool    { return s == StatusNotStarted }
func (s Status) CanClockOut() bool   { return s == StatusClockedIn || s == StatusOnBreak }
func (s Status) CanStartBreak() bool { return s == StatusClockedIn }
func (s Status) CanEndBreak() bool   { return s == StatusOnBreak }

// Valid reports whether s is one of the four named states.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusClockedIn, StatusOnBreak, StatusClockedOut:
		return true
	}
	return false
}

// =============================================================================
// ATTENDANCE DAY - One per (employee, calendar date)
// =============================================================================

// AttendanceDay is the per-employee, per-date aggregate tracking one day's
// work session.
//
// INVARIANTS (enforced by the Engine and the store):
//   - At most one AttendanceDay per (EmployeeID, Date)
//   - ClockOutAt, if present, is strictly after ClockInAt
//   - Date is never in the future
//   - Both minute totals are >= 0
//
// Status is the only field mutated by live clock actions; every other write
// goes through either the state machine or an audited administrative
// override. TotalBreakMinutes is a running counter incremented at each break
// end, not a value replayed from the event log.
type AttendanceDay struct {
	ID         string
	EmployeeID string
	Date       time.Time // day granularity, UTC midnight

	Status     Status
	ClockInAt  *time.Time
	ClockOutAt *time.Time

	TotalWorkMinutes  int
	TotalBreakMinutes int

	CreatedAt time.Time
}

// Complete reports whether the day reached ClockedOut.
func (d *AttendanceDay) Complete() bool { return d.Status.Complete() }

// InProgress reports whether the day is open (clocked in or on break).
func (d *AttendanceDay) InProgress() bool { return d.Status.InProgress() }

// CurrentBreakMinutes returns the break minutes accumulated so far.
// An in-progress break segment contributes nothing until it ends.
func (d *AttendanceDay) CurrentBreakMinutes() int { return d.TotalBreakMinutes }

// CurrentWorkMinutes returns the work minutes for display. For a completed
// day this is the stored final total; for an open day it is computed live
// against now. Never negative.
func (d *AttendanceDay) CurrentWorkMinutes(now time.Time) int {
	if d.Status.Complete() {
		return d.TotalWorkMinutes
	}
	if d.ClockInAt == nil {
		return 0
	}
	end := now
	if d.ClockOutAt != nil {
		end = *d.ClockOutAt
	}
	worked := MinutesBetween(*d.ClockInAt, end) - d.CurrentBreakMinutes()
	if worked < 0 {
		return 0
	}
	return worked
}

// =============================================================================
// CLOCK EVENT - Immutable punch record
// =============================================================================

type EventType string

const (
	EventClockIn    EventType = "clock_in"
	EventClockOut   EventType = "clock_out"
	EventBreakStart EventType = "break_start"
	EventBreakEnd   EventType = "break_end"
)

// ClockEvent is an immutable punch record. Created exactly once per
// transition, never mutated, deleted only by cascade with its day.
type ClockEvent struct {
	ID        string
	DayID     string
	Type      EventType
	Timestamp time.Time
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

type Employee struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// =============================================================================
// DATE HELPERS
// =============================================================================

// DateOf truncates t to its UTC calendar day. AttendanceDay.Date values are
// always stored in this normalized form so (employee, date) lookups compare
// exactly.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the inclusive day count between two dates.
// A single-day range yields 1.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours()/24) + 1
}
