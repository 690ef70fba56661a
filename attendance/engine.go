/*
engine.go - Attendance lifecycle state machine

PURPOSE:
  The Engine owns every mutation of an AttendanceDay. It validates the
  requested transition against the current status, performs the effect,
  appends the matching ClockEvent, and recomputes totals - all inside one
  storage transaction.

STATE MACHINE:
  NotStarted  --clock_in-->    ClockedIn
  ClockedIn   --clock_out-->   ClockedOut   (terminal)
  ClockedIn   --break_start--> OnBreak
  OnBreak     --break_end-->   ClockedIn
  OnBreak     --clock_out-->   ClockedOut   (composed: break_end, then clock_out)

  No transition leaves ClockedOut. No transition leaves NotStarted except
  clock_in. Any other attempt fails with an InvalidStateError.

TOTALS:
  TotalBreakMinutes is a running counter, incremented each time a break
  ends (including the implicit break end inside clock_out). It is NOT
  replayed from the event log, so nothing outside this engine may write
  events directly. Final work minutes on clock_out:

    floor((clockOutAt - clockInAt) / 60s) - TotalBreakMinutes, floored at 0

  While the day is open, display totals come from
  AttendanceDay.CurrentWorkMinutes / CurrentBreakMinutes.

ADMIN OVERRIDES:
  Override is the one code path that bypasses the state machine. It writes
  only the supplied fields, funnels through the same total recomputation
  when a clock timestamp changed, and always emits exactly one AuditEntry
  in the same transaction. A blank reason is rejected before any mutation.

SEE ALSO:
  - types.go: Status, AttendanceDay, ClockEvent
  - store.go: TxStore contract the engine relies on
  - audit.go: Diff shape for override audit entries
*/
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies lifecycle transitions to attendance days.
type Engine struct {
	Store TxStore

	// Clock returns the authoritative current time. Defaults to time.Now;
	// tests pin it.
	Clock func() time.Time
}

// NewEngine creates an engine backed by the given store.
func NewEngine(store TxStore) *Engine {
	return &Engine{Store: store, Clock: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// DayWithEvents bundles an aggregate with its chronological punch records,
// the shape returned to callers by every read and action operation.
type DayWithEvents struct {
	Day    AttendanceDay
	Events []ClockEvent
}

// =============================================================================
// READ / FIND-OR-CREATE
// =============================================================================

// GetOrCreateToday returns the employee's day for the given date, lazily
// creating a NotStarted record on first touch. A future date is rejected.
// Concurrent first-touch requests are resolved by the store's uniqueness
// constraint: on ErrDuplicateDay the freshly created row is re-read.
func (e *Engine) GetOrCreateToday(ctx context.Context, employeeID string, date time.Time) (*DayWithEvents, error) {
	date = DateOf(date)
	if date.After(DateOf(e.now())) {
		return nil, &ValidationError{Field: "date", Message: "date must not be in the future"}
	}

	day, err := e.Store.GetDay(ctx, employeeID, date)
	if err != nil {
		return nil, fmt.Errorf("load day: %w", err)
	}
	if day == nil {
		created := &AttendanceDay{
			ID:         uuid.NewString(),
			EmployeeID: employeeID,
			Date:       date,
			Status:     StatusNotStarted,
			CreatedAt:  e.now(),
		}
		switch err := e.Store.CreateDay(ctx, created); {
		case err == nil:
			day = created
		case IsDuplicateDay(err):
			// Lost the find-or-create race; the winner's row is authoritative.
			day, err = e.Store.GetDay(ctx, employeeID, date)
			if err != nil {
				return nil, fmt.Errorf("reload day after conflict: %w", err)
			}
		default:
			return nil, fmt.Errorf("create day: %w", err)
		}
	}

	events, err := e.Store.Events(ctx, day.ID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return &DayWithEvents{Day: *day, Events: events}, nil
}

// =============================================================================
// LIFECYCLE TRANSITIONS
// =============================================================================

// ClockIn starts the work day. Legal only from NotStarted.
func (e *Engine) ClockIn(ctx context.Context, employeeID string, date time.Time) (*DayWithEvents, error) {
	return e.transition(ctx, employeeID, date, func(s Store, day *AttendanceDay, now time.Time) error {
		if !day.Status.CanClockIn() {
			return &InvalidStateError{Action: "clock_in", Status: day.Status, Message: "Already clocked in today"}
		}
		day.ClockInAt = &now
		day.Status = StatusClockedIn
		return appendEvent(ctx, s, day.ID, EventClockIn, now)
	})
}

// ClockOut ends the work day. Legal from ClockedIn or OnBreak; from OnBreak
// the open break is ended first, as an explicit composed step.
func (e *Engine) ClockOut(ctx context.Context, employeeID string, date time.Time) (*DayWithEvents, error) {
	return e.transition(ctx, employeeID, date, func(s Store, day *AttendanceDay, now time.Time) error {
		if !day.Status.CanClockOut() {
			return &InvalidStateError{Action: "clock_out", Status: day.Status, Message: "Cannot clock out. Must be clocked in first"}
		}
		if day.Status == StatusOnBreak {
			if err := e.endBreakEffect(ctx, s, day, now); err != nil {
				return err
			}
		}
		day.ClockOutAt = &now
		day.Status = StatusClockedOut
		if day.ClockInAt != nil {
			worked := MinutesBetween(*day.ClockInAt, now) - day.TotalBreakMinutes
			if worked < 0 {
				worked = 0
			}
			day.TotalWorkMinutes = worked
		}
		return appendEvent(ctx, s, day.ID, EventClockOut, now)
	})
}

// StartBreak pauses the work day. Legal only from ClockedIn.
func (e *Engine) StartBreak(ctx context.Context, employeeID string, date time.Time) (*DayWithEvents, error) {
	return e.transition(ctx, employeeID, date, func(s Store, day *AttendanceDay, now time.Time) error {
		if !day.Status.CanStartBreak() {
			return &InvalidStateError{Action: "break_start", Status: day.Status, Message: "Cannot start break. Must be clocked in first"}
		}
		day.Status = StatusOnBreak
		return appendEvent(ctx, s, day.ID, EventBreakStart, now)
	})
}

// EndBreak resumes the work day. Legal only from OnBreak.
func (e *Engine) EndBreak(ctx context.Context, employeeID string, date time.Time) (*DayWithEvents, error) {
	return e.transition(ctx, employeeID, date, func(s Store, day *AttendanceDay, now time.Time) error {
		if !day.Status.CanEndBreak() {
			return &InvalidStateError{Action: "break_end", Status: day.Status, Message: "Cannot end break. Must be on break first"}
		}
		return e.endBreakEffect(ctx, s, day, now)
	})
}

// endBreakEffect closes the most recent open break: adds the elapsed whole
// minutes to the running break counter, flips status back to ClockedIn, and
// appends the BreakEnd event. When no unmatched BreakStart exists the delta
// is zero and the state still flips; tolerated rather than failed.
func (e *Engine) endBreakEffect(ctx context.Context, s Store, day *AttendanceDay, now time.Time) error {
	events, err := s.Events(ctx, day.ID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if start, ok := openBreakStart(events); ok {
		if delta := MinutesBetween(start, now); delta > 0 {
			day.TotalBreakMinutes += delta
		}
	}
	day.Status = StatusClockedIn
	return appendEvent(ctx, s, day.ID, EventBreakEnd, now)
}

// openBreakStart returns the timestamp of the most recent BreakStart with no
// matching BreakEnd, scanning the chronological event list.
func openBreakStart(events []ClockEvent) (time.Time, bool) {
	var start time.Time
	open := false
	for _, ev := range events {
		switch ev.Type {
		case EventBreakStart:
			start, open = ev.Timestamp, true
		case EventBreakEnd:
			open = false
		}
	}
	return start, open
}

// transition runs one lifecycle action as a single unit of work: find or
// create the day, apply the effect, persist day + event together.
func (e *Engine) transition(ctx context.Context, employeeID string, date time.Time, effect func(Store, *AttendanceDay, time.Time) error) (*DayWithEvents, error) {
	date = DateOf(date)
	if date.After(DateOf(e.now())) {
		return nil, &ValidationError{Field: "date", Message: "date must not be in the future"}
	}

	var result *DayWithEvents
	err := e.Store.WithTx(ctx, func(s Store) error {
		day, err := s.GetDay(ctx, employeeID, date)
		if err != nil {
			return fmt.Errorf("load day: %w", err)
		}
		if day == nil {
			day = &AttendanceDay{
				ID:         uuid.NewString(),
				EmployeeID: employeeID,
				Date:       date,
				Status:     StatusNotStarted,
				CreatedAt:  e.now(),
			}
			if err := s.CreateDay(ctx, day); err != nil {
				if IsDuplicateDay(err) {
					if day, err = s.GetDay(ctx, employeeID, date); err != nil {
						return fmt.Errorf("reload day after conflict: %w", err)
					}
				} else {
					return fmt.Errorf("create day: %w", err)
				}
			}
		}

		if err := effect(s, day, e.now()); err != nil {
			return err
		}
		if err := s.UpdateDay(ctx, day); err != nil {
			return fmt.Errorf("save day: %w", err)
		}

		events, err := s.Events(ctx, day.ID)
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		result = &DayWithEvents{Day: *day, Events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func appendEvent(ctx context.Context, s Store, dayID string, typ EventType, at time.Time) error {
	return s.AppendEvent(ctx, ClockEvent{
		ID:        uuid.NewString(),
		DayID:     dayID,
		Type:      typ,
		Timestamp: at,
	})
}

// =============================================================================
// ADMINISTRATIVE OVERRIDE
// =============================================================================

// OverrideFields carries the fields an administrator wants to rewrite.
// Nil pointers mean "leave as is".
type OverrideFields struct {
	Status            *Status
	ClockInAt         *time.Time
	ClockOutAt        *time.Time
	TotalBreakMinutes *int
}

// OverrideInput is one administrative correction request.
type OverrideInput struct {
	DayID   string
	ActorID string
	Fields  OverrideFields
	Reason  string
}

// Override rewrites the supplied fields of an existing day, bypassing the
// state machine. Work minutes are recomputed when either clock timestamp
// (or the break counter) changed. Exactly one AuditEntry with the
// field-level diff commits in the same transaction. A blank reason is a
// validation failure raised before anything is touched.
func (e *Engine) Override(ctx context.Context, in OverrideInput) (*DayWithEvents, error) {
	if isBlank(in.Reason) {
		return nil, &ValidationError{Field: "reason", Message: "reason is required"}
	}
	if in.Fields.Status != nil && !in.Fields.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *in.Fields.Status)}
	}
	if in.Fields.TotalBreakMinutes != nil && *in.Fields.TotalBreakMinutes < 0 {
		return nil, &ValidationError{Field: "total_break_minutes", Message: "must not be negative"}
	}

	var result *DayWithEvents
	err := e.Store.WithTx(ctx, func(s Store) error {
		day, err := s.GetDayByID(ctx, in.DayID)
		if err != nil {
			return fmt.Errorf("load day: %w", err)
		}
		if day == nil {
			return &NotFoundError{Kind: "attendance_day", ID: in.DayID}
		}

		before := *day
		clockChanged := false

		if in.Fields.Status != nil {
			day.Status = *in.Fields.Status
		}
		if in.Fields.ClockInAt != nil {
			day.ClockInAt = in.Fields.ClockInAt
			clockChanged = true
		}
		if in.Fields.ClockOutAt != nil {
			day.ClockOutAt = in.Fields.ClockOutAt
			clockChanged = true
		}
		if in.Fields.TotalBreakMinutes != nil {
			day.TotalBreakMinutes = *in.Fields.TotalBreakMinutes
			clockChanged = true
		}

		if day.ClockInAt != nil && day.ClockOutAt != nil && !day.ClockOutAt.After(*day.ClockInAt) {
			return &ValidationError{Field: "clock_out_at", Message: "must be after clock in"}
		}

		if clockChanged && day.ClockInAt != nil && day.ClockOutAt != nil {
			worked := MinutesBetween(*day.ClockInAt, *day.ClockOutAt) - day.TotalBreakMinutes
			if worked < 0 {
				worked = 0
			}
			day.TotalWorkMinutes = worked
		}

		diff := DiffDays(&before, day)
		if len(diff) > 0 {
			if err := s.UpdateDay(ctx, day); err != nil {
				return fmt.Errorf("save day: %w", err)
			}
		}
		if err := s.AppendAudit(ctx, AuditEntry{
			ID:           uuid.NewString(),
			ActorID:      in.ActorID,
			SubjectID:    day.EmployeeID,
			DayID:        day.ID,
			Action:       ActionOverride,
			FieldChanges: diff,
			Reason:       in.Reason,
			CreatedAt:    e.now(),
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		events, err := s.Events(ctx, day.ID)
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		result = &DayWithEvents{Day: *day, Events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
