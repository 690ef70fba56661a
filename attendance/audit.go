/*
audit.go - Immutable records of administrative corrections

PURPOSE:
  Administrative overrides bypass the state machine, so every one of them
  must leave a trail: who changed what, for whom, and why. AuditEntry is
  that trail. It is created only alongside a successful override, inside
  the same unit of work, and is never created standalone.

DIFF SHAPE:
  FieldChanges maps field name -> {From, To} and contains only fields whose
  value actually changed. Timestamps are rendered RFC3339; absent values
  render as the empty string.

SEE ALSO:
  - engine.go: Override is the only producer of audit entries
*/
package attendance

import (
	"strconv"
	"time"
)

// =============================================================================
// AUDIT ENTRY
// =============================================================================

// FieldChange records one field's old and new value.
type FieldChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AuditEntry is an immutable record of one administrative correction.
// Reason is mandatory and non-empty; the engine rejects blank reasons
// before any mutation happens.
type AuditEntry struct {
	ID           string
	ActorID      string // admin who made the change
	SubjectID    string // employee whose record changed
	DayID        string
	Action       string
	FieldChanges map[string]FieldChange
	Reason       string
	CreatedAt    time.Time
}

// ActionOverride labels the (currently only) administrative mutation.
const ActionOverride = "attendance_override"

// =============================================================================
// DIFF
// =============================================================================

// DiffDays computes the field-level diff between two snapshots of the same
// day. Only fields that actually changed appear in the result.
func DiffDays(before, after *AttendanceDay) map[string]FieldChange {
	diff := make(map[string]FieldChange)

	if before.Status != after.Status {
		diff["status"] = FieldChange{From: string(before.Status), To: string(after.Status)}
	}
	if !timePtrEqual(before.ClockInAt, after.ClockInAt) {
		diff["clock_in_at"] = FieldChange{From: formatTimePtr(before.ClockInAt), To: formatTimePtr(after.ClockInAt)}
	}
	if !timePtrEqual(before.ClockOutAt, after.ClockOutAt) {
		diff["clock_out_at"] = FieldChange{From: formatTimePtr(before.ClockOutAt), To: formatTimePtr(after.ClockOutAt)}
	}
	if before.TotalWorkMinutes != after.TotalWorkMinutes {
		diff["total_work_minutes"] = FieldChange{From: strconv.Itoa(before.TotalWorkMinutes), To: strconv.Itoa(after.TotalWorkMinutes)}
	}
	if before.TotalBreakMinutes != after.TotalBreakMinutes {
		diff["total_break_minutes"] = FieldChange{From: strconv.Itoa(before.TotalBreakMinutes), To: strconv.Itoa(after.TotalBreakMinutes)}
	}
	return diff
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
