/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through Handler.validate before touching the engine.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// ATTENDANCE DTOs
// =============================================================================

// ClockEventDTO is one punch record.
type ClockEventDTO struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// DayDTO is the stable representation of one attendance day returned by
// every read and action endpoint.
type DayDTO struct {
	ID                       string          `json:"id"`
	Date                     string          `json:"date"`
	Status                   string          `json:"status"`
	ClockInTime              *string         `json:"clockInTime"`
	ClockOutTime             *string         `json:"clockOutTime"`
	TotalWorkMinutes         int             `json:"totalWorkMinutes"`
	TotalBreakMinutes        int             `json:"totalBreakMinutes"`
	FormattedWorkTime        string          `json:"formattedWorkTime"`
	FormattedBreakTime       string          `json:"formattedBreakTime"`
	FormattedTotalOfficeTime string          `json:"formattedTotalOfficeTime"`
	Complete                 bool            `json:"complete"`
	InProgress               bool            `json:"inProgress"`
	CanClockIn               bool            `json:"canClockIn"`
	CanClockOut              bool            `json:"canClockOut"`
	CanStartBreak            bool            `json:"canStartBreak"`
	CanEndBreak              bool            `json:"canEndBreak"`
	Events                   []ClockEventDTO `json:"events"`
}

// StatisticsDTO carries monthly or range statistics.
type StatisticsDTO struct {
	WorkingDays              int    `json:"workingDays"`
	TotalWorkMinutes         int    `json:"totalWorkMinutes"`
	TotalBreakMinutes        int    `json:"totalBreakMinutes"`
	AverageWorkMinutesPerDay int    `json:"averageWorkMinutesPerDay"`
	FormattedTotalWorkTime   string `json:"formattedTotalWorkTime"`
	TotalDays                int    `json:"totalDays,omitempty"` // range queries only
}

// AuditEntryDTO is one administrative correction record.
type AuditEntryDTO struct {
	ID           string                            `json:"id"`
	ActorID      string                            `json:"actorId"`
	SubjectID    string                            `json:"subjectId"`
	DayID        string                            `json:"dayId"`
	Action       string                            `json:"action"`
	FieldChanges map[string]attendance.FieldChange `json:"fieldChanges"`
	Reason       string                            `json:"reason"`
	CreatedAt    string                            `json:"createdAt"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token    string      `json:"token"`
	Employee EmployeeDTO `json:"employee"`
}

// CreateEmployeeRequest is the admin request to create an employee.
type CreateEmployeeRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"omitempty,oneof=employee admin"`
	Password string `json:"password" validate:"required,min=8"`
}

// OverrideRequest is the admin request to correct an attendance day.
// Omitted fields are left untouched; reason is mandatory.
type OverrideRequest struct {
	Status            *string `json:"status" validate:"omitempty,oneof=not_started clocked_in on_break clocked_out"`
	ClockInTime       *string `json:"clockInTime"`  // RFC3339
	ClockOutTime      *string `json:"clockOutTime"` // RFC3339
	TotalBreakMinutes *int    `json:"totalBreakMinutes" validate:"omitempty,gte=0"`
	Reason            string  `json:"reason" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDayDTO(d *attendance.DayWithEvents, now time.Time) DayDTO {
	day := d.Day
	work := day.CurrentWorkMinutes(now)
	brk := day.CurrentBreakMinutes()

	events := make([]ClockEventDTO, len(d.Events))
	for i, ev := range d.Events {
		events[i] = ClockEventDTO{
			Type:      string(ev.Type),
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		}
	}

	return DayDTO{
		ID:                       day.ID,
		Date:                     day.Date.Format("2006-01-02"),
		Status:                   string(day.Status),
		ClockInTime:              formatOptTime(day.ClockInAt),
		ClockOutTime:             formatOptTime(day.ClockOutAt),
		TotalWorkMinutes:         work,
		TotalBreakMinutes:        brk,
		FormattedWorkTime:        attendance.FormatMinutes(work),
		FormattedBreakTime:       attendance.FormatMinutes(brk),
		FormattedTotalOfficeTime: attendance.FormatMinutes(work + brk),
		Complete:                 day.Complete(),
		InProgress:               day.InProgress(),
		CanClockIn:               day.Status.CanClockIn(),
		CanClockOut:              day.Status.CanClockOut(),
		CanStartBreak:            day.Status.CanStartBreak(),
		CanEndBreak:              day.Status.CanEndBreak(),
		Events:                   events,
	}
}

func toEmployeeDTO(emp attendance.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:        emp.ID,
		Name:      emp.Name,
		Email:     emp.Email,
		Role:      string(emp.Role),
		CreatedAt: emp.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAuditEntryDTO(entry attendance.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:           entry.ID,
		ActorID:      entry.ActorID,
		SubjectID:    entry.SubjectID,
		DayID:        entry.DayID,
		Action:       entry.Action,
		FieldChanges: entry.FieldChanges,
		Reason:       entry.Reason,
		CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatOptTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
