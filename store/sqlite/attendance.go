/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements attendance.Store and attendance.TxStore using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  employees:        Entity records
  attendance_days:  One row per (employee, date), mutable control fields
  clock_events:     Immutable punch records (append-only)
  audit_entries:    Immutable administrative correction records (append-only)

UNIQUENESS:
  UNIQUE(employee_id, date) on attendance_days is the single source of
  truth for the one-day-per-employee invariant. Concurrent first-touch
  requests race on the insert; the loser gets attendance.ErrDuplicateDay
  and re-reads the winner's row.

APPEND-ONLY ENFORCEMENT:
  clock_events and audit_entries have no UPDATE or DELETE statements
  anywhere in this package; rows disappear only via ON DELETE CASCADE
  when an employee is removed.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. Mutating
  operations for the same employee+date are serialized here; the engine
  assumes last-committed-wins at this granularity.

SEE ALSO:
  - attendance/store.go: Interface definitions
  - attendance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/attendance-engine/attendance"
)

// Store implements attendance.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'employee',
		password_hash TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance_days (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		clock_in_at TEXT,
		clock_out_at TEXT,
		total_work_minutes INTEGER NOT NULL DEFAULT 0,
		total_break_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_days_employee_date
		ON attendance_days(employee_id, date);

	-- Punch records (append-only)
	CREATE TABLE IF NOT EXISTS clock_events (
		id TEXT PRIMARY KEY,
		day_id TEXT NOT NULL REFERENCES attendance_days(id) ON DELETE CASCADE,
		event_type TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_day
		ON clock_events(day_id, timestamp);

	-- Administrative corrections (append-only)
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		subject_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		day_id TEXT NOT NULL,
		action TEXT NOT NULL,
		field_changes_json TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_subject
		ON audit_entries(subject_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query helpers
// serve direct calls and transactional views.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ATTENDANCE DAYS
// =============================================================================

func (s *Store) GetDay(ctx context.Context, employeeID string, date time.Time) (*attendance.AttendanceDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDay(ctx, s.db, employeeID, date)
}

func getDay(ctx context.Context, db dbtx, employeeID string, date time.Time) (*attendance.AttendanceDay, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, employee_id, date, status, clock_in_at, clock_out_at,
		       total_work_minutes, total_break_minutes, created_at
		FROM attendance_days
		WHERE employee_id = ? AND date = ?
	`, employeeID, dateStr(date))
	return scanDay(row)
}

func (s *Store) GetDayByID(ctx context.Context, id string) (*attendance.AttendanceDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDayByID(ctx, s.db, id)
}

func getDayByID(ctx context.Context, db dbtx, id string) (*attendance.AttendanceDay, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, employee_id, date, status, clock_in_at, clock_out_at,
		       total_work_minutes, total_break_minutes, created_at
		FROM attendance_days
		WHERE id = ?
	`, id)
	return scanDay(row)
}

func (s *Store) CreateDay(ctx context.Context, day *attendance.AttendanceDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createDay(ctx, s.db, day)
}

func createDay(ctx context.Context, db dbtx, day *attendance.AttendanceDay) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO attendance_days
		(id, employee_id, date, status, clock_in_at, clock_out_at,
		 total_work_minutes, total_break_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		day.ID,
		day.EmployeeID,
		dateStr(day.Date),
		string(day.Status),
		nullTime(day.ClockInAt),
		nullTime(day.ClockOutAt),
		day.TotalWorkMinutes,
		day.TotalBreakMinutes,
		day.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return attendance.ErrDuplicateDay
		}
		return fmt.Errorf("%w: insert day: %v", attendance.ErrPersistence, err)
	}
	return nil
}

func (s *Store) UpdateDay(ctx context.Context, day *attendance.AttendanceDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateDay(ctx, s.db, day)
}

func updateDay(ctx context.Context, db dbtx, day *attendance.AttendanceDay) error {
	res, err := db.ExecContext(ctx, `
		UPDATE attendance_days
		SET status = ?, clock_in_at = ?, clock_out_at = ?,
		    total_work_minutes = ?, total_break_minutes = ?
		WHERE id = ?
	`,
		string(day.Status),
		nullTime(day.ClockInAt),
		nullTime(day.ClockOutAt),
		day.TotalWorkMinutes,
		day.TotalBreakMinutes,
		day.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update day: %v", attendance.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &attendance.NotFoundError{Kind: "attendance_day", ID: day.ID}
	}
	return nil
}

func (s *Store) ListDays(ctx context.Context, employeeID string, from, to time.Time) ([]attendance.AttendanceDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDays(ctx, s.db, employeeID, from, to)
}

func listDays(ctx context.Context, db dbtx, employeeID string, from, to time.Time) ([]attendance.AttendanceDay, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, employee_id, date, status, clock_in_at, clock_out_at,
		       total_work_minutes, total_break_minutes, created_at
		FROM attendance_days
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, employeeID, dateStr(from), dateStr(to))
	if err != nil {
		return nil, fmt.Errorf("%w: query days: %v", attendance.ErrPersistence, err)
	}
	defer rows.Close()

	var days []attendance.AttendanceDay
	for rows.Next() {
		day, err := scanDayRows(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, *day)
	}
	return days, rows.Err()
}

// =============================================================================
// CLOCK EVENTS (append-only)
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, ev attendance.ClockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEvent(ctx, s.db, ev)
}

func appendEvent(ctx context.Context, db dbtx, ev attendance.ClockEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO clock_events (id, day_id, event_type, timestamp)
		VALUES (?, ?, ?, ?)
	`, ev.ID, ev.DayID, string(ev.Type), ev.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: insert event: %v", attendance.ErrPersistence, err)
	}
	return nil
}

func (s *Store) Events(ctx context.Context, dayID string) ([]attendance.ClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadEvents(ctx, s.db, dayID)
}

func loadEvents(ctx context.Context, db dbtx, dayID string) ([]attendance.ClockEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, day_id, event_type, timestamp
		FROM clock_events
		WHERE day_id = ?
		ORDER BY timestamp ASC, id ASC
	`, dayID)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", attendance.ErrPersistence, err)
	}
	defer rows.Close()

	var events []attendance.ClockEvent
	for rows.Next() {
		var ev attendance.ClockEvent
		var typ, ts string
		if err := rows.Scan(&ev.ID, &ev.DayID, &typ, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", attendance.ErrPersistence, err)
		}
		ev.Type = attendance.EventType(typ)
		ev.Timestamp, _ = time.Parse(time.RFC3339, ts)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// AUDIT ENTRIES (append-only)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry attendance.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, entry)
}

func appendAudit(ctx context.Context, db dbtx, entry attendance.AuditEntry) error {
	changes, err := json.Marshal(entry.FieldChanges)
	if err != nil {
		return fmt.Errorf("%w: marshal field changes: %v", attendance.ErrPersistence, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO audit_entries
		(id, actor_id, subject_id, day_id, action, field_changes_json, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.ActorID,
		entry.SubjectID,
		entry.DayID,
		entry.Action,
		string(changes),
		entry.Reason,
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: insert audit entry: %v", attendance.ErrPersistence, err)
	}
	return nil
}

func (s *Store) AuditBySubject(ctx context.Context, subjectID string) ([]attendance.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return auditBySubject(ctx, s.db, subjectID)
}

func auditBySubject(ctx context.Context, db dbtx, subjectID string) ([]attendance.AuditEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, actor_id, subject_id, day_id, action, field_changes_json, reason, created_at
		FROM audit_entries
		WHERE subject_id = ?
		ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: query audit entries: %v", attendance.ErrPersistence, err)
	}
	defer rows.Close()

	var entries []attendance.AuditEntry
	for rows.Next() {
		var entry attendance.AuditEntry
		var changesJSON, createdAt string
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.SubjectID, &entry.DayID,
			&entry.Action, &changesJSON, &entry.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan audit entry: %v", attendance.ErrPersistence, err)
		}
		if err := json.Unmarshal([]byte(changesJSON), &entry.FieldChanges); err != nil {
			return nil, fmt.Errorf("%w: unmarshal field changes: %v", attendance.ErrPersistence, err)
		}
		entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (*attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanEmployee(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, password_hash, created_at
		FROM employees WHERE id = ?
	`, id))
}

func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanEmployee(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, password_hash, created_at
		FROM employees WHERE email = ?
	`, email))
}

func (s *Store) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, emp)
}

func saveEmployee(ctx context.Context, db dbtx, emp attendance.Employee) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			password_hash = excluded.password_hash
	`,
		emp.ID, emp.Name, emp.Email, string(emp.Role), emp.PasswordHash,
		emp.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: save employee: %v", attendance.ErrPersistence, err)
	}
	return nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role, password_hash, created_at
		FROM employees ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query employees: %v", attendance.ErrPersistence, err)
	}
	defer rows.Close()

	var emps []attendance.Employee
	for rows.Next() {
		var emp attendance.Employee
		var role, createdAt string
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Email, &role, &emp.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan employee: %v", attendance.ErrPersistence, err)
		}
		emp.Role = attendance.Role(role)
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		emps = append(emps, emp)
	}
	return emps, rows.Err()
}

// DeleteEmployee removes an employee; days, events, and audit entries go
// with it via ON DELETE CASCADE.
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEmployee(ctx, s.db, id)
}

func deleteEmployee(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete employee: %v", attendance.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &attendance.NotFoundError{Kind: "employee", ID: id}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store attendance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", attendance.ErrPersistence, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", attendance.ErrPersistence, err)
	}
	return nil
}

// txStore routes every call through the open *sql.Tx so all reads and
// writes inside WithTx observe the same isolation.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetDay(ctx context.Context, employeeID string, date time.Time) (*attendance.AttendanceDay, error) {
	return getDay(ctx, ts.tx, employeeID, date)
}

func (ts *txStore) GetDayByID(ctx context.Context, id string) (*attendance.AttendanceDay, error) {
	return getDayByID(ctx, ts.tx, id)
}

func (ts *txStore) CreateDay(ctx context.Context, day *attendance.AttendanceDay) error {
	return createDay(ctx, ts.tx, day)
}

func (ts *txStore) UpdateDay(ctx context.Context, day *attendance.AttendanceDay) error {
	return updateDay(ctx, ts.tx, day)
}

func (ts *txStore) ListDays(ctx context.Context, employeeID string, from, to time.Time) ([]attendance.AttendanceDay, error) {
	return listDays(ctx, ts.tx, employeeID, from, to)
}

func (ts *txStore) AppendEvent(ctx context.Context, ev attendance.ClockEvent) error {
	return appendEvent(ctx, ts.tx, ev)
}

func (ts *txStore) Events(ctx context.Context, dayID string) ([]attendance.ClockEvent, error) {
	return loadEvents(ctx, ts.tx, dayID)
}

func (ts *txStore) AppendAudit(ctx context.Context, entry attendance.AuditEntry) error {
	return appendAudit(ctx, ts.tx, entry)
}

func (ts *txStore) AuditBySubject(ctx context.Context, subjectID string) ([]attendance.AuditEntry, error) {
	return auditBySubject(ctx, ts.tx, subjectID)
}

func (ts *txStore) GetEmployee(ctx context.Context, id string) (*attendance.Employee, error) {
	return scanEmployee(ts.tx.QueryRowContext(ctx, `
		SELECT id, name, email, role, password_hash, created_at
		FROM employees WHERE id = ?
	`, id))
}

func (ts *txStore) GetEmployeeByEmail(ctx context.Context, email string) (*attendance.Employee, error) {
	return scanEmployee(ts.tx.QueryRowContext(ctx, `
		SELECT id, name, email, role, password_hash, created_at
		FROM employees WHERE email = ?
	`, email))
}

func (ts *txStore) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	return saveEmployee(ctx, ts.tx, emp)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	rows, err := ts.tx.QueryContext(ctx, `
		SELECT id, name, email, role, password_hash, created_at
		FROM employees ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query employees: %v", attendance.ErrPersistence, err)
	}
	defer rows.Close()

	var emps []attendance.Employee
	for rows.Next() {
		var emp attendance.Employee
		var role, createdAt string
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Email, &role, &emp.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan employee: %v", attendance.ErrPersistence, err)
		}
		emp.Role = attendance.Role(role)
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		emps = append(emps, emp)
	}
	return emps, rows.Err()
}

func (ts *txStore) DeleteEmployee(ctx context.Context, id string) error {
	return deleteEmployee(ctx, ts.tx, id)
}

// Compile-time interface checks.
var (
	_ attendance.TxStore = (*Store)(nil)
	_ attendance.Store   = (*txStore)(nil)
)

// =============================================================================
// SCAN / FORMAT HELPERS
// =============================================================================

func dateStr(t time.Time) string {
	return attendance.DateOf(t).Format("2006-01-02")
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDay(row rowScanner) (*attendance.AttendanceDay, error) {
	var day attendance.AttendanceDay
	var date, status, createdAt string
	var clockIn, clockOut sql.NullString

	err := row.Scan(&day.ID, &day.EmployeeID, &date, &status, &clockIn, &clockOut,
		&day.TotalWorkMinutes, &day.TotalBreakMinutes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan day: %v", attendance.ErrPersistence, err)
	}

	day.Date, _ = time.Parse("2006-01-02", date)
	day.Status = attendance.Status(status)
	day.ClockInAt = parseNullTime(clockIn)
	day.ClockOutAt = parseNullTime(clockOut)
	day.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &day, nil
}

// scanDayRows is scanDay for *sql.Rows, where ErrNoRows never occurs.
func scanDayRows(rows *sql.Rows) (*attendance.AttendanceDay, error) {
	return scanDay(rows)
}

func scanEmployee(row *sql.Row) (*attendance.Employee, error) {
	var emp attendance.Employee
	var role, createdAt string
	err := row.Scan(&emp.ID, &emp.Name, &emp.Email, &role, &emp.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan employee: %v", attendance.ErrPersistence, err)
	}
	emp.Role = attendance.Role(role)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
