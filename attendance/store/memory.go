// Package store provides attendance.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	days      map[string]*attendance.AttendanceDay // by day ID
	dayByDate map[dateKey]string                   // (employee, date) -> day ID
	events    map[string][]attendance.ClockEvent   // by day ID, chronological
	audits    []attendance.AuditEntry
	employees map[string]attendance.Employee
}

type dateKey struct {
	EmployeeID string
	Date       string // "2006-01-02"
}

func NewMemory() *Memory {
	return &Memory{
		days:      make(map[string]*attendance.AttendanceDay),
		dayByDate: make(map[dateKey]string),
		events:    make(map[string][]attendance.ClockEvent),
		employees: make(map[string]attendance.Employee),
	}
}

func keyOf(employeeID string, date time.Time) dateKey {
	return dateKey{EmployeeID: employeeID, Date: attendance.DateOf(date).Format("2006-01-02")}
}

func (m *Memory) GetDay(_ context.Context, employeeID string, date time.Time) (*attendance.AttendanceDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDayLocked(employeeID, date), nil
}

func (m *Memory) getDayLocked(employeeID string, date time.Time) *attendance.AttendanceDay {
	id, ok := m.dayByDate[keyOf(employeeID, date)]
	if !ok {
		return nil
	}
	d := *m.days[id]
	return &d
}

func (m *Memory) GetDayByID(_ context.Context, id string) (*attendance.AttendanceDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	day, ok := m.days[id]
	if !ok {
		return nil, nil
	}
	d := *day
	return &d, nil
}

// CreateDay inserts a day, enforcing (employee, date) uniqueness.
func (m *Memory) CreateDay(_ context.Context, day *attendance.AttendanceDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createDayLocked(day)
}

func (m *Memory) createDayLocked(day *attendance.AttendanceDay) error {
	k := keyOf(day.EmployeeID, day.Date)
	if _, exists := m.dayByDate[k]; exists {
		return attendance.ErrDuplicateDay
	}
	d := *day
	m.days[day.ID] = &d
	m.dayByDate[k] = day.ID
	return nil
}

func (m *Memory) UpdateDay(_ context.Context, day *attendance.AttendanceDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateDayLocked(day)
}

func (m *Memory) updateDayLocked(day *attendance.AttendanceDay) error {
	if _, ok := m.days[day.ID]; !ok {
		return &attendance.NotFoundError{Kind: "attendance_day", ID: day.ID}
	}
	d := *day
	m.days[day.ID] = &d
	return nil
}

func (m *Memory) ListDays(_ context.Context, employeeID string, from, to time.Time) ([]attendance.AttendanceDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from, to = attendance.DateOf(from), attendance.DateOf(to)
	var result []attendance.AttendanceDay
	for _, d := range m.days {
		if d.EmployeeID != employeeID {
			continue
		}
		if d.Date.Before(from) || d.Date.After(to) {
			continue
		}
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) AppendEvent(_ context.Context, ev attendance.ClockEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEventLocked(ev)
	return nil
}

func (m *Memory) appendEventLocked(ev attendance.ClockEvent) {
	m.events[ev.DayID] = append(m.events[ev.DayID], ev)
}

func (m *Memory) Events(_ context.Context, dayID string) ([]attendance.ClockEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]attendance.ClockEvent, len(m.events[dayID]))
	copy(result, m.events[dayID])
	return result, nil
}

func (m *Memory) AppendAudit(_ context.Context, entry attendance.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, entry)
	return nil
}

func (m *Memory) AuditBySubject(_ context.Context, subjectID string) ([]attendance.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []attendance.AuditEntry
	for i := len(m.audits) - 1; i >= 0; i-- {
		if m.audits[i].SubjectID == subjectID {
			result = append(result, m.audits[i])
		}
	}
	return result, nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (*attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (m *Memory) GetEmployeeByEmail(_ context.Context, email string) (*attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, emp := range m.employees {
		if emp.Email == email {
			e := emp
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveEmployee(_ context.Context, emp attendance.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]attendance.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// DeleteEmployee removes the employee and cascades to days, events, and
// audit entries.
func (m *Memory) DeleteEmployee(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.employees, id)
	for dayID, d := range m.days {
		if d.EmployeeID != id {
			continue
		}
		delete(m.dayByDate, keyOf(d.EmployeeID, d.Date))
		delete(m.days, dayID)
		delete(m.events, dayID)
	}
	kept := m.audits[:0]
	for _, a := range m.audits {
		if a.SubjectID != id {
			kept = append(kept, a)
		}
	}
	m.audits = kept
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot restored on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	days      map[string]*attendance.AttendanceDay
	dayByDate map[dateKey]string
	events    map[string][]attendance.ClockEvent
	audits    []attendance.AuditEntry
	employees map[string]attendance.Employee
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		days:      make(map[string]*attendance.AttendanceDay, len(tm.days)),
		dayByDate: make(map[dateKey]string, len(tm.dayByDate)),
		events:    make(map[string][]attendance.ClockEvent, len(tm.events)),
		audits:    append([]attendance.AuditEntry{}, tm.audits...),
		employees: make(map[string]attendance.Employee, len(tm.employees)),
	}
	for k, v := range tm.days {
		d := *v
		s.days[k] = &d
	}
	for k, v := range tm.dayByDate {
		s.dayByDate[k] = v
	}
	for k, v := range tm.events {
		s.events[k] = append([]attendance.ClockEvent{}, v...)
	}
	for k, v := range tm.employees {
		s.employees[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.days = s.days
	tm.dayByDate = s.dayByDate
	tm.events = s.events
	tm.audits = s.audits
	tm.employees = s.employees
}

// txMemoryView operates on the already-locked parent; it must not re-lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetDay(_ context.Context, employeeID string, date time.Time) (*attendance.AttendanceDay, error) {
	return tv.parent.getDayLocked(employeeID, date), nil
}

func (tv *txMemoryView) GetDayByID(_ context.Context, id string) (*attendance.AttendanceDay, error) {
	day, ok := tv.parent.days[id]
	if !ok {
		return nil, nil
	}
	d := *day
	return &d, nil
}

func (tv *txMemoryView) CreateDay(_ context.Context, day *attendance.AttendanceDay) error {
	return tv.parent.createDayLocked(day)
}

func (tv *txMemoryView) UpdateDay(_ context.Context, day *attendance.AttendanceDay) error {
	return tv.parent.updateDayLocked(day)
}

func (tv *txMemoryView) ListDays(_ context.Context, employeeID string, from, to time.Time) ([]attendance.AttendanceDay, error) {
	from, to = attendance.DateOf(from), attendance.DateOf(to)
	var result []attendance.AttendanceDay
	for _, d := range tv.parent.days {
		if d.EmployeeID == employeeID && !d.Date.Before(from) && !d.Date.After(to) {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (tv *txMemoryView) AppendEvent(_ context.Context, ev attendance.ClockEvent) error {
	tv.parent.appendEventLocked(ev)
	return nil
}

func (tv *txMemoryView) Events(_ context.Context, dayID string) ([]attendance.ClockEvent, error) {
	result := make([]attendance.ClockEvent, len(tv.parent.events[dayID]))
	copy(result, tv.parent.events[dayID])
	return result, nil
}

func (tv *txMemoryView) AppendAudit(_ context.Context, entry attendance.AuditEntry) error {
	tv.parent.audits = append(tv.parent.audits, entry)
	return nil
}

func (tv *txMemoryView) AuditBySubject(_ context.Context, subjectID string) ([]attendance.AuditEntry, error) {
	var result []attendance.AuditEntry
	for i := len(tv.parent.audits) - 1; i >= 0; i-- {
		if tv.parent.audits[i].SubjectID == subjectID {
			result = append(result, tv.parent.audits[i])
		}
	}
	return result, nil
}

func (tv *txMemoryView) GetEmployee(_ context.Context, id string) (*attendance.Employee, error) {
	emp, ok := tv.parent.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (tv *txMemoryView) GetEmployeeByEmail(_ context.Context, email string) (*attendance.Employee, error) {
	for _, emp := range tv.parent.employees {
		if emp.Email == email {
			e := emp
			return &e, nil
		}
	}
	return nil, nil
}

func (tv *txMemoryView) SaveEmployee(_ context.Context, emp attendance.Employee) error {
	tv.parent.employees[emp.ID] = emp
	return nil
}

func (tv *txMemoryView) ListEmployees(_ context.Context) ([]attendance.Employee, error) {
	result := make([]attendance.Employee, 0, len(tv.parent.employees))
	for _, emp := range tv.parent.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txMemoryView) DeleteEmployee(ctx context.Context, id string) error {
	m := tv.parent.Memory
	delete(m.employees, id)
	for dayID, d := range m.days {
		if d.EmployeeID != id {
			continue
		}
		delete(m.dayByDate, keyOf(d.EmployeeID, d.Date))
		delete(m.days, dayID)
		delete(m.events, dayID)
	}
	kept := m.audits[:0]
	for _, a := range m.audits {
		if a.SubjectID != id {
			kept = append(kept, a)
		}
	}
	m.audits = kept
	return nil
}

// Compile-time interface checks.
var (
	_ attendance.Store   = (*Memory)(nil)
	_ attendance.TxStore = (*TxMemory)(nil)
	_ attendance.Store   = (*txMemoryView)(nil)
)
