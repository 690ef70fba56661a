/*
handlers.go - HTTP API handlers for the attendance system

PURPOSE:
  Exposes the attendance engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                  Exchange credentials for a token

  Attendance (authenticated employee):
    GET    /api/attendance/today            Today's day (created lazily)
    POST   /api/attendance/clock-in         Start the work day
    POST   /api/attendance/clock-out        End the work day
    POST   /api/attendance/break-start      Start a break
    POST   /api/attendance/break-end        End a break
    GET    /api/attendance/history          Days in ?from&to
    GET    /api/attendance/statistics       ?year&month or ?from&to
    GET    /api/attendance/export           Monthly CSV report

  Admin (token role=admin):
    GET    /api/admin/employees             List employees
    POST   /api/admin/employees             Create employee
    DELETE /api/admin/employees/{id}        Delete employee (cascades)
    GET    /api/admin/attendance            ?employee_id&from&to
    PUT    /api/admin/attendance/{id}       Override day (audited)
    GET    /api/admin/audit                 ?subject_id

ERROR HANDLING:
  Engine errors map to HTTP status by category:
  - InvalidState -> 409
  - Validation   -> 400 (field-level details preserved)
  - NotFound     -> 404
  - anything else -> 500

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/auth"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *attendance.Engine
	Store    attendance.TxStore
	Auth     *auth.Service
	validate *validator.Validate
}

// NewHandler creates a new handler around the given engine and auth service.
func NewHandler(engine *attendance.Engine, authSvc *auth.Service) *Handler {
	return &Handler{
		Engine:   engine,
		Store:    engine.Store,
		Auth:     authSvc,
		validate: validator.New(),
	}
}

func (h *Handler) now() time.Time {
	if h.Engine.Clock != nil {
		return h.Engine.Clock()
	}
	return time.Now()
}

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges email+password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	emp, err := h.Store.GetEmployeeByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up employee", err)
		return
	}
	if emp == nil || !auth.CheckPassword(emp.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.Auth.Issue(emp.ID, string(emp.Role))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Employee: toEmployeeDTO(*emp)})
}

// =============================================================================
// ATTENDANCE ACTIONS
// =============================================================================

// Today returns (lazily creating) the authenticated employee's day.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	day, err := h.Engine.GetOrCreateToday(r.Context(), claims.EmployeeID, h.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayDTO(day, h.now()))
}

func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request)    { h.action(w, r, h.Engine.ClockIn) }
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request)   { h.action(w, r, h.Engine.ClockOut) }
func (h *Handler) BreakStart(w http.ResponseWriter, r *http.Request) { h.action(w, r, h.Engine.StartBreak) }
func (h *Handler) BreakEnd(w http.ResponseWriter, r *http.Request)   { h.action(w, r, h.Engine.EndBreak) }

// action runs one lifecycle transition for the authenticated employee's
// current day.
func (h *Handler) action(w http.ResponseWriter, r *http.Request, do func(ctx context.Context, employeeID string, date time.Time) (*attendance.DayWithEvents, error)) {
	claims, _ := auth.FromContext(r.Context())
	day, err := do(r.Context(), claims.EmployeeID, h.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayDTO(day, h.now()))
}

// History lists the authenticated employee's days in [from, to].
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	days, err := h.Store.ListDays(r.Context(), claims.EmployeeID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list days", err)
		return
	}

	dtos := make([]DayDTO, 0, len(days))
	for i := range days {
		events, err := h.Store.Events(r.Context(), days[i].ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load events", err)
			return
		}
		dtos = append(dtos, toDayDTO(&attendance.DayWithEvents{Day: days[i], Events: events}, h.now()))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Statistics aggregates the authenticated employee's completed days, either
// month-scoped (?year&month) or range-scoped (?from&to).
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	h.writeStatistics(w, r, claims.EmployeeID)
}

func (h *Handler) writeStatistics(w http.ResponseWriter, r *http.Request, employeeID string) {
	q := r.URL.Query()
	if q.Get("year") != "" || q.Get("month") != "" {
		year, month, err := parseYearMonth(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		summary, err := h.Engine.MonthlyStatistics(r.Context(), employeeID, year, month)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StatisticsDTO{
			WorkingDays:              summary.WorkingDays,
			TotalWorkMinutes:         summary.TotalWorkMinutes,
			TotalBreakMinutes:        summary.TotalBreakMinutes,
			AverageWorkMinutesPerDay: summary.AverageWorkMinutesPerDay,
			FormattedTotalWorkTime:   attendance.FormatMinutes(summary.TotalWorkMinutes),
		})
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	summary, err := h.Engine.RangeStatistics(r.Context(), employeeID, from, to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatisticsDTO{
		WorkingDays:              summary.WorkingDays,
		TotalWorkMinutes:         summary.TotalWorkMinutes,
		TotalBreakMinutes:        summary.TotalBreakMinutes,
		AverageWorkMinutesPerDay: summary.AverageWorkMinutesPerDay,
		FormattedTotalWorkTime:   attendance.FormatMinutes(summary.TotalWorkMinutes),
		TotalDays:                summary.TotalDays,
	})
}

// =============================================================================
// ADMIN
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(emps))
	for i, emp := range emps {
		dtos[i] = toEmployeeDTO(emp)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates a new employee with a hashed password.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	existing, err := h.Store.GetEmployeeByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up employee", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Email already registered", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}
	role := attendance.Role(req.Role)
	if role == "" {
		role = attendance.RoleEmployee
	}
	emp := attendance.Employee{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    h.now(),
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// DeleteEmployee removes an employee and cascades to their attendance data.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteEmployee(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminListAttendance lists any employee's days.
func (h *Handler) AdminListAttendance(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employee_id")
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	days, err := h.Store.ListDays(r.Context(), employeeID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list days", err)
		return
	}
	dtos := make([]DayDTO, 0, len(days))
	for i := range days {
		events, err := h.Store.Events(r.Context(), days[i].ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load events", err)
			return
		}
		dtos = append(dtos, toDayDTO(&attendance.DayWithEvents{Day: days[i], Events: events}, h.now()))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// OverrideAttendance rewrites fields of one day, producing an audit entry.
// PUT /api/admin/attendance/{id}
func (h *Handler) OverrideAttendance(w http.ResponseWriter, r *http.Request) {
	dayID := chi.URLParam(r, "id")
	claims, _ := auth.FromContext(r.Context())

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	fields := attendance.OverrideFields{TotalBreakMinutes: req.TotalBreakMinutes}
	if req.Status != nil {
		st := attendance.Status(*req.Status)
		fields.Status = &st
	}
	if req.ClockInTime != nil {
		t, err := time.Parse(time.RFC3339, *req.ClockInTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid clockInTime (use RFC3339)", err)
			return
		}
		fields.ClockInAt = &t
	}
	if req.ClockOutTime != nil {
		t, err := time.Parse(time.RFC3339, *req.ClockOutTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid clockOutTime (use RFC3339)", err)
			return
		}
		fields.ClockOutAt = &t
	}

	day, err := h.Engine.Override(r.Context(), attendance.OverrideInput{
		DayID:   dayID,
		ActorID: claims.EmployeeID,
		Fields:  fields,
		Reason:  req.Reason,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayDTO(day, h.now()))
}

// AuditTrail lists corrections applied to one employee's records.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "subject_id is required", nil)
		return
	}
	entries, err := h.Store.AuditBySubject(r.Context(), subjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load audit trail", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, entry := range entries {
		dtos[i] = toAuditEntryDTO(entry)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AdminStatistics aggregates any employee's completed days.
func (h *Handler) AdminStatistics(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employee_id")
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}
	h.writeStatistics(w, r, employeeID)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	fromStr, toStr := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	return from, to, nil
}

func parseYearMonth(r *http.Request) (int, int, error) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0, 0, errInvalidYearMonth
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		return 0, 0, errInvalidYearMonth
	}
	return year, month, nil
}

var (
	errInvalidRange     = errors.New("from and to are required as YYYY-MM-DD")
	errInvalidYearMonth = errors.New("year and month are required as integers")
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeValidationError renders validator.ValidationErrors with per-field
// details so callers learn which field was invalid.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation",
			Details: details,
		})
		return
	}
	writeError(w, http.StatusBadRequest, "Validation failed", err)
}

// writeEngineError maps engine error categories to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case attendance.IsInvalidState(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "invalid_state"})
	case attendance.IsValidation(err):
		resp := ErrorResponse{Error: err.Error(), Code: "validation"}
		var verr *attendance.ValidationError
		if errors.As(err, &verr) && verr.Field != "" {
			resp.Details = map[string]string{verr.Field: verr.Message}
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case attendance.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error", Code: "internal", Details: err.Error()})
	}
}
