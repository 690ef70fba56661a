package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(t *testing.T) (*attendance.Engine, *store.TxMemory, *fakeClock) {
	t.Helper()
	mem := store.NewTxMemory()
	eng := attendance.NewEngine(mem)
	clk := &fakeClock{t: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)}
	eng.Clock = clk.Now
	return eng, mem, clk
}

func eventTypes(events []attendance.ClockEvent) []attendance.EventType {
	types := make([]attendance.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

// =============================================================================
// STATE MACHINE TESTS
// =============================================================================

func TestClockIn_FromNotStarted_Succeeds(t *testing.T) {
	// GIVEN: A fresh day
	// WHEN: Clocking in
	// THEN: Status is ClockedIn, ClockInAt set, one clock_in event recorded

	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	day, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusClockedIn, day.Day.Status)
	require.NotNil(t, day.Day.ClockInAt)
	assert.True(t, day.Day.ClockInAt.Equal(clk.Now()))
	assert.Equal(t, []attendance.EventType{attendance.EventClockIn}, eventTypes(day.Events))
}

func TestClockIn_Twice_Fails(t *testing.T) {
	// GIVEN: An employee already clocked in today
	// WHEN: Clocking in again
	// THEN: InvalidState with the stable message, state unchanged

	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	_, err = eng.ClockIn(ctx, "emp-1", clk.Now())
	require.Error(t, err)
	assert.True(t, attendance.IsInvalidState(err))
	assert.EqualError(t, err, "Already clocked in today")

	day, err := eng.GetOrCreateToday(ctx, "emp-1", clk.Now())
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusClockedIn, day.Day.Status)
	assert.Len(t, day.Events, 1, "failed attempt must not append an event")
}

func TestClockOut_WithoutClockIn_Fails(t *testing.T) {
	eng, _, clk := newTestEngine(t)

	_, err := eng.ClockOut(context.Background(), "emp-1", clk.Now())
	require.Error(t, err)
	assert.True(t, attendance.IsInvalidState(err))
	assert.EqualError(t, err, "Cannot clock out. Must be clocked in first")
}

func TestClockOut_Twice_Fails(t *testing.T) {
	// GIVEN: A completed day
	// WHEN: Attempting any further transition
	// THEN: Every action is rejected (ClockedOut is terminal)

	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)
	clk.Advance(8 * time.Hour)
	_, err = eng.ClockOut(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	_, err = eng.ClockOut(ctx, "emp-1", clk.Now())
	assert.True(t, attendance.IsInvalidState(err))
	_, err = eng.ClockIn(ctx, "emp-1", clk.Now())
	assert.True(t, attendance.IsInvalidState(err))
	_, err = eng.StartBreak(ctx, "emp-1", clk.Now())
	assert.True(t, attendance.IsInvalidState(err))
	_, err = eng.EndBreak(ctx, "emp-1", clk.Now())
	assert.True(t, attendance.IsInvalidState(err))
}

func TestStartBreak_NotClockedIn_Fails(t *testing.T) {
	eng, _, clk := newTestEngine(t)

	_, err := eng.StartBreak(context.Background(), "emp-1", clk.Now())
	require.Error(t, err)
	assert.True(t, attendance.IsInvalidState(err))
	assert.EqualError(t, err, "Cannot start break. Must be clocked in first")
}

func TestStartBreak_WhileOnBreak_Fails(t *testing.T) {
	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)
	_, err = eng.StartBreak(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	_, err = eng.StartBreak(ctx, "emp-1", clk.Now())
	assert.True(t, attendance.IsInvalidState(err))
}

func TestEndBreak_NotOnBreak_Fails(t *testing.T) {
	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	_, err = eng.EndBreak(ctx, "emp-1", clk.Now())
	require.Error(t, err)
	assert.True(t, attendance.IsInvalidState(err))
	assert.EqualError(t, err, "Cannot end break. Must be on break first")
}

// =============================================================================
// TOTALS
// =============================================================================

func TestFullDay_RoundTrip_Totals(t *testing.T) {
	// GIVEN: clock in at t0, break t0+60m..t0+90m, clock out at t0+480m
	// THEN: 30 break minutes, 450 work minutes, status ClockedOut

	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	clk.Advance(60 * time.Minute)
	_, err = eng.StartBreak(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	clk.Advance(30 * time.Minute)
	day, err := eng.EndBreak(ctx, "emp-1", clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 30, day.Day.TotalBreakMinutes)
	assert.Equal(t, attendance.StatusClockedIn, day.Day.Status)

	clk.Advance(390 * time.Minute) // t0+480m
	day, err = eng.ClockOut(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusClockedOut, day.Day.Status)
	assert.Equal(t, 30, day.Day.TotalBreakMinutes)
	assert.Equal(t, 450, day.Day.TotalWorkMinutes)
	assert.Equal(t, []attendance.EventType{
		attendance.EventClockIn,
		attendance.EventBreakStart,
		attendance.EventBreakEnd,
		attendance.EventClockOut,
	}, eventTypes(day.Events))
}

func TestClockOut_FromOnBreak_ClosesBreakFirst(t *testing.T) {
	// GIVEN: An employee on break
	// WHEN: Clocking out directly
	// THEN: The open break is ended first (break minutes counted, break_end
	//       event appended before clock_out)

	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	clk.Advance(4 * time.Hour)
	_, err = eng.StartBreak(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	clk.Advance(45 * time.Minute)
	day, err := eng.ClockOut(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusClockedOut, day.Day.Status)
	assert.Equal(t, 45, day.Day.TotalBreakMinutes)
	assert.Equal(t, 240, day.Day.TotalWorkMinutes) // 285 elapsed - 45 break
	assert.Equal(t, []attendance.EventType{
		attendance.EventClockIn,
		attendance.EventBreakStart,
		attendance.EventBreakEnd,
		attendance.EventClockOut,
	}, eventTypes(day.Events))
}

func TestClockOut_WorkMinutes_FlooredAtZero(t *testing.T) {
	// GIVEN: A break counter larger than the elapsed span (stale admin data)
	// WHEN: Clocking out
	// THEN: Work minutes floor at 0, never negative

	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)
	clk.Advance(10 * time.Minute)
	_, err = eng.StartBreak(ctx, "emp-1", clk.Now())
	require.NoError(t, err)
	clk.Advance(30 * time.Minute)
	day, err := eng.ClockOut(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	assert.Equal(t, 30, day.Day.TotalBreakMinutes)
	assert.Equal(t, 10, day.Day.TotalWorkMinutes)
	assert.GreaterOrEqual(t, day.Day.TotalWorkMinutes, 0)
}

func TestEndBreak_MultipleBreaks_Accumulate(t *testing.T) {
	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	for _, mins := range []int{15, 20} {
		clk.Advance(time.Hour)
		_, err = eng.StartBreak(ctx, "emp-1", clk.Now())
		require.NoError(t, err)
		clk.Advance(time.Duration(mins) * time.Minute)
		_, err = eng.EndBreak(ctx, "emp-1", clk.Now())
		require.NoError(t, err)
	}

	day, err := eng.GetOrCreateToday(ctx, "emp-1", clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 35, day.Day.TotalBreakMinutes)
}

func TestEndBreak_NoOpenBreakStart_ZeroDeltaTolerated(t *testing.T) {
	// GIVEN: A day forced OnBreak by an admin override, with no break_start
	//        event on record
	// WHEN: Ending the break
	// THEN: Zero minutes are added and the state still flips to ClockedIn

	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	start, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	onBreak := attendance.StatusOnBreak
	_, err = eng.Override(ctx, attendance.OverrideInput{
		DayID:   start.Day.ID,
		ActorID: "admin-1",
		Fields:  attendance.OverrideFields{Status: &onBreak},
		Reason:  "forgot to start break",
	})
	require.NoError(t, err)

	clk.Advance(20 * time.Minute)
	day, err := eng.EndBreak(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusClockedIn, day.Day.Status)
	assert.Equal(t, 0, day.Day.TotalBreakMinutes)
}

// =============================================================================
// FIND-OR-CREATE
// =============================================================================

func TestGetOrCreateToday_CreatesLazily(t *testing.T) {
	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	day, err := eng.GetOrCreateToday(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusNotStarted, day.Day.Status)
	assert.Equal(t, 0, day.Day.TotalWorkMinutes)
	assert.Equal(t, 0, day.Day.TotalBreakMinutes)
	assert.Nil(t, day.Day.ClockInAt)
	assert.Empty(t, day.Events)
	assert.True(t, day.Day.Date.Equal(attendance.DateOf(clk.Now())))
}

func TestGetOrCreateToday_SameDay_ReturnsExisting(t *testing.T) {
	// GIVEN: A day already exists for (employee, date)
	// WHEN: Touching it again
	// THEN: The same record comes back; no duplicate is created

	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.GetOrCreateToday(ctx, "emp-1", clk.Now())
	require.NoError(t, err)
	second, err := eng.GetOrCreateToday(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	assert.Equal(t, first.Day.ID, second.Day.ID)
}

func TestGetOrCreateToday_FutureDate_Rejected(t *testing.T) {
	eng, _, clk := newTestEngine(t)

	_, err := eng.GetOrCreateToday(context.Background(), "emp-1", clk.Now().AddDate(0, 0, 1))
	require.Error(t, err)
	assert.True(t, attendance.IsValidation(err))
}

func TestCreateDay_Duplicate_Rejected(t *testing.T) {
	// Direct store-level uniqueness: a second insert for (employee, date)
	// fails with ErrDuplicateDay.

	_, mem, clk := newTestEngine(t)
	ctx := context.Background()

	day := &attendance.AttendanceDay{
		ID:         "day-1",
		EmployeeID: "emp-1",
		Date:       attendance.DateOf(clk.Now()),
		Status:     attendance.StatusNotStarted,
	}
	require.NoError(t, mem.CreateDay(ctx, day))

	dup := *day
	dup.ID = "day-2"
	err := mem.CreateDay(ctx, &dup)
	assert.True(t, attendance.IsDuplicateDay(err))
}

// =============================================================================
// CAPABILITY FLAGS
// =============================================================================

func TestCapabilityFlags_FollowStatus(t *testing.T) {
	cases := []struct {
		status                                       attendance.Status
		clockIn, clockOut, startBreak, endBreak bool
	}{
		{attendance.StatusNotStarted, true, false, false, false},
		{attendance.StatusClockedIn, false, true, true, false},
		{attendance.StatusOnBreak, false, true, false, true},
		{attendance.StatusClockedOut, false, false, false, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.clockIn, tc.status.CanClockIn(), "%s CanClockIn", tc.status)
		assert.Equal(t, tc.clockOut, tc.status.CanClockOut(), "%s CanClockOut", tc.status)
		assert.Equal(t, tc.startBreak, tc.status.CanStartBreak(), "%s CanStartBreak", tc.status)
		assert.Equal(t, tc.endBreak, tc.status.CanEndBreak(), "%s CanEndBreak", tc.status)
	}
}

// =============================================================================
// ADMINISTRATIVE OVERRIDE
// =============================================================================

func TestOverride_BlankReason_NoSideEffects(t *testing.T) {
	// GIVEN: An existing day
	// WHEN: Overriding with a blank reason
	// THEN: Rejected before any field mutation or audit entry

	eng, mem, clk := newTestEngine(t)
	ctx := context.Background()

	day, err := eng.ClockIn(ctx, "emp-1", clk.Now())
	require.NoError(t, err)

	out := attendance.StatusClockedOut
	_, err = eng.Override(ctx, attendance.OverrideInput{
		DayID:   day.Day.ID,
		ActorID: "admin-1",
		Fields:  attendance.OverrideFields{Status: &out},
		Reason:  "   ",
	})
	require.Error(t, err)
	assert.True(t, attendance.IsValidation(err))

	reloaded, err := mem.GetDayByID(ctx, day.Day.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusClockedIn, reloaded.Status, "field must not have changed")

	entries, err := mem.AuditBySubject(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, entries, "no audit entry without a successful mutation")
}

func TestOverride_TimestampChange_RecomputesTotals(t *testing.T) {
	// GIVEN: A completed day with 480 elapsed minutes and no breaks
	// WHEN: An admin moves clock-out an hour later
	// THEN: Work minutes recompute and the diff lands in one audit entry

	eng, mem, clk := newTestEngine(t)
	ctx := context.Background()

	t0 := clk.Now()
	_, err := eng.ClockIn(ctx, "emp-1", t0)
	require.NoError(t, err)
	clk.Advance(8 * time.Hour)
	day, err := eng.ClockOut(ctx, "emp-1", clk.Now())
	require.NoError(t, err)
	require.Equal(t, 480, day.Day.TotalWorkMinutes)

	newOut := t0.Add(9 * time.Hour)
	updated, err := eng.Override(ctx, attendance.OverrideInput{
		DayID:   day.Day.ID,
		ActorID: "admin-1",
		Fields:  attendance.OverrideFields{ClockOutAt: &newOut},
		Reason:  "forgot to clock out",
	})
	require.NoError(t, err)
	assert.Equal(t, 540, updated.Day.TotalWorkMinutes)

	entries, err := mem.AuditBySubject(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "admin-1", entry.ActorID)
	assert.Equal(t, "emp-1", entry.SubjectID)
	assert.Equal(t, attendance.ActionOverride, entry.Action)
	assert.Equal(t, "forgot to clock out", entry.Reason)
	assert.Contains(t, entry.FieldChanges, "clock_out_at")
	assert.Contains(t, entry.FieldChanges, "total_work_minutes")
	assert.Equal(t, "480", entry.FieldChanges["total_work_minutes"].From)
	assert.Equal(t, "540", entry.FieldChanges["total_work_minutes"].To)
	assert.NotContains(t, entry.FieldChanges, "status", "unchanged fields stay out of the diff")
}

func TestOverride_ClockOutBeforeClockIn_Rejected(t *testing.T) {
	eng, _, clk := newTestEngine(t)
	ctx := context.Background()

	t0 := clk.Now()
	day, err := eng.ClockIn(ctx, "emp-1", t0)
	require.NoError(t, err)

	bad := t0.Add(-time.Hour)
	_, err = eng.Override(ctx, attendance.OverrideInput{
		DayID:   day.Day.ID,
		ActorID: "admin-1",
		Fields:  attendance.OverrideFields{ClockOutAt: &bad},
		Reason:  "typo",
	})
	require.Error(t, err)
	assert.True(t, attendance.IsValidation(err))
}

func TestOverride_UnknownDay_NotFound(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	out := attendance.StatusClockedOut
	_, err := eng.Override(context.Background(), attendance.OverrideInput{
		DayID:   "nope",
		ActorID: "admin-1",
		Fields:  attendance.OverrideFields{Status: &out},
		Reason:  "fixing",
	})
	require.Error(t, err)
	assert.True(t, attendance.IsNotFound(err))
}
