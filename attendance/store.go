/*
store.go - Persistence interfaces for attendance data

PURPOSE:
  Defines the interface between the lifecycle engine and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Day/event/audit/employee persistence
  TxStore: Transactional operations (atomic multi-table writes)

APPEND-ONLY CONTRACT:
  clock events and audit entries are append-only:
  - AppendEvent() / AppendAudit() are the only write operations
  - NO update or delete methods exist for either
  - Both are removed only by cascade when their owner is deleted

ATOMICITY:
  Every lifecycle transition writes the day row, a new clock event, and
  (for overrides) an audit entry. TxStore.WithTx ensures these commit
  together or not at all.

UNIQUENESS:
  CreateDay enforces at most one AttendanceDay per (employee, date) and
  returns ErrDuplicateDay on conflict. Concurrent first-touch requests are
  resolved by the engine re-reading after a conflict, not by app-level locks.

IMPLEMENTATIONS:
  - store/sqlite/attendance.go: Production SQLite
  - attendance/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: The only caller that mutates days through these interfaces
*/
package attendance

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Persistence interface
// =============================================================================

// Store handles persistence of days, events, audit entries, and employees.
type Store interface {
	// GetDay returns the day for (employeeID, date), or nil when absent.
	// date must be day-normalized (see DateOf).
	GetDay(ctx context.Context, employeeID string, date time.Time) (*AttendanceDay, error)

	// GetDayByID returns the day with the given ID, or nil when absent.
	GetDayByID(ctx context.Context, id string) (*AttendanceDay, error)

	// CreateDay inserts a new day. Returns ErrDuplicateDay when a day for
	// the same (employee, date) already exists.
	CreateDay(ctx context.Context, day *AttendanceDay) error

	// UpdateDay rewrites the mutable fields (status, timestamps, totals) of
	// an existing day. Identity fields (employee, date) never change.
	UpdateDay(ctx context.Context, day *AttendanceDay) error

	// ListDays returns an employee's days with Date in [from, to],
	// ordered by date ascending.
	ListDays(ctx context.Context, employeeID string, from, to time.Time) ([]AttendanceDay, error)

	// AppendEvent adds a punch record. Append-only.
	AppendEvent(ctx context.Context, ev ClockEvent) error

	// Events returns a day's punch records in chronological order.
	Events(ctx context.Context, dayID string) ([]ClockEvent, error)

	// AppendAudit adds an administrative correction record. Append-only.
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// AuditBySubject returns corrections applied to one employee's records,
	// most recent first.
	AuditBySubject(ctx context.Context, subjectID string) ([]AuditEntry, error)

	// Employees.
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	GetEmployeeByEmail(ctx context.Context, email string) (*Employee, error)
	SaveEmployee(ctx context.Context, emp Employee) error
	ListEmployees(ctx context.Context) ([]Employee, error)
	// DeleteEmployee removes an employee and cascades to their days,
	// events, and audit entries.
	DeleteEmployee(ctx context.Context, id string) error
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic multi-write operations
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
