/*
stats.go - Folding attendance days into summary statistics

PURPOSE:
  Read-only aggregation over a set of AttendanceDay records, either for a
  calendar month or an arbitrary inclusive date range. Only completed
  (ClockedOut) days enter the working-day count and the minute totals;
  open or never-started days may appear in raw listings but never in the
  denominators here.

SEE ALSO:
  - engine.go: MonthlyStatistics / RangeStatistics entry points
*/
package attendance

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// SUMMARY
// =============================================================================

// Summary aggregates completed days. All fields are zero for an empty input.
type Summary struct {
	WorkingDays              int
	TotalWorkMinutes         int
	TotalBreakMinutes        int
	AverageWorkMinutesPerDay int
}

// Summarize folds a collection of days into a Summary. Days that have not
// reached ClockedOut are excluded from every figure. The average is floored
// integer division and zero when there are no working days.
func Summarize(days []AttendanceDay) Summary {
	var s Summary
	for _, d := range days {
		if !d.Complete() {
			continue
		}
		s.WorkingDays++
		s.TotalWorkMinutes += d.TotalWorkMinutes
		s.TotalBreakMinutes += d.TotalBreakMinutes
	}
	if s.WorkingDays > 0 {
		s.AverageWorkMinutesPerDay = s.TotalWorkMinutes / s.WorkingDays
	}
	return s
}

// MonthlySummary is a Summary scoped to one calendar month.
type MonthlySummary struct {
	Summary
	Year  int
	Month time.Month
}

// RangeSummary is a Summary scoped to an inclusive date range.
type RangeSummary struct {
	Summary
	From      time.Time
	To        time.Time
	TotalDays int // inclusive day count; a single-day range yields 1
}

// =============================================================================
// BOUNDS
// =============================================================================

// MonthBounds returns the first and last day of a calendar month.
// Rejects year <= 0 and months outside 1-12 before any query runs.
func MonthBounds(year, month int) (from, to time.Time, err error) {
	if year <= 0 {
		return time.Time{}, time.Time{}, &ValidationError{Field: "year", Message: "must be positive"}
	}
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, &ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}
	from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to = from.AddDate(0, 1, -1)
	return from, to, nil
}

// =============================================================================
// ENGINE ENTRY POINTS (read-only)
// =============================================================================

// MonthlyStatistics aggregates one employee's completed days in a month.
func (e *Engine) MonthlyStatistics(ctx context.Context, employeeID string, year, month int) (*MonthlySummary, error) {
	from, to, err := MonthBounds(year, month)
	if err != nil {
		return nil, err
	}
	days, err := e.Store.ListDays(ctx, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	return &MonthlySummary{Summary: Summarize(days), Year: year, Month: time.Month(month)}, nil
}

// RangeStatistics aggregates one employee's completed days in [from, to].
func (e *Engine) RangeStatistics(ctx context.Context, employeeID string, from, to time.Time) (*RangeSummary, error) {
	from, to = DateOf(from), DateOf(to)
	if to.Before(from) {
		return nil, &ValidationError{Field: "to", Message: "must not be before from"}
	}
	days, err := e.Store.ListDays(ctx, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	return &RangeSummary{
		Summary:   Summarize(days),
		From:      from,
		To:        to,
		TotalDays: DaysBetween(from, to),
	}, nil
}
