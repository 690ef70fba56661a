/*
export.go - Monthly attendance report as CSV

PURPOSE:
  Streams one employee's month as a CSV download: one row per recorded
  day, HH:MM display columns plus a decimal-hours column for payroll
  spreadsheets (two fixed places, e.g. 450 minutes -> "7.50").
*/
package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/auth"
)

var sixty = decimal.NewFromInt(60)

// decimalHours renders a minute count as fractional hours, e.g. 450 -> "7.50".
func decimalHours(minutes int) string {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).StringFixed(2)
}

// ExportMonth writes the authenticated employee's month as CSV.
// GET /api/attendance/export?year&month
func (h *Handler) ExportMonth(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	from, to, err := attendance.MonthBounds(year, month)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	days, err := h.Store.ListDays(r.Context(), claims.EmployeeID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list days", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="attendance-%04d-%02d.csv"`, year, month))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Date", "Status", "Clock In", "Clock Out", "Work (HH:MM)", "Break (HH:MM)", "Work Hours"})
	for i := range days {
		d := &days[i]
		_ = cw.Write([]string{
			d.Date.Format("2006-01-02"),
			string(d.Status),
			clockStr(d.ClockInAt),
			clockStr(d.ClockOutAt),
			attendance.FormatMinutes(d.TotalWorkMinutes),
			attendance.FormatMinutes(d.TotalBreakMinutes),
			decimalHours(d.TotalWorkMinutes),
		})
	}
	cw.Flush()
}

func clockStr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("15:04")
}
