package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/compliance-engine/engine"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

func TestEntryStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		from, to engine.EntryStatus
		ok       bool
	}{
		{engine.StatusUpcoming, engine.StatusDueSoon, true},
		{engine.StatusUpcoming, engine.StatusOverdue, true},
		{engine.StatusUpcoming, engine.StatusCompleted, true},
		{engine.StatusDueSoon, engine.StatusDueToday, true},
		{engine.StatusDueSoon, engine.StatusUpcoming, false},
		{engine.StatusDueToday, engine.StatusOverdue, true},
		{engine.StatusOverdue, engine.StatusCompleted, true},
		{engine.StatusOverdue, engine.StatusDueSoon, false},
		{engine.StatusCompleted, engine.StatusOverdue, false},
		{engine.StatusExempted, engine.StatusUpcoming, false},
		{engine.StatusUpcoming, engine.StatusSuperseded, true},
		{engine.StatusOverdue, engine.StatusSuperseded, true},
		{engine.StatusSuperseded, engine.StatusUpcoming, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestEntryStatus_IsTerminal(t *testing.T) {
	assert.True(t, engine.StatusCompleted.IsTerminal())
	assert.True(t, engine.StatusExempted.IsTerminal())
	assert.True(t, engine.StatusNotApplicable.IsTerminal())
	assert.True(t, engine.StatusSuperseded.IsTerminal())
	assert.False(t, engine.StatusOverdue.IsTerminal())
	assert.False(t, engine.StatusUpcoming.IsTerminal())
}

// =============================================================================
// STATUS EVALUATION
// =============================================================================

func dueEntry(due engine.TimePoint) engine.CalendarEntry {
	return engine.CalendarEntry{
		ID:              "entry-1",
		Status:          engine.StatusUpcoming,
		AdjustedDueDate: due,
	}
}

func TestNextStatus_DueTodayNotOverdueBeforeMidnight(t *testing.T) {
	// GIVEN: An entry due today
	// WHEN: Evaluated at 18:00 on the due date
	// THEN: Status is DUE_TODAY, not OVERDUE

	cfg := engine.DefaultStatusConfig()
	due := engine.NewTimePoint(2025, time.March, 10)
	entry := dueEntry(due)

	now := engine.NewTimePointWithHour(2025, time.March, 10, 18)
	assert.Equal(t, engine.StatusDueToday, engine.NextStatus(cfg, entry, now))
}

func TestNextStatus_OverdueAfterEndOfDay(t *testing.T) {
	cfg := engine.DefaultStatusConfig()
	due := engine.NewTimePoint(2025, time.March, 10)
	entry := dueEntry(due)

	now := engine.NewTimePointWithHour(2025, time.March, 11, 0)
	assert.Equal(t, engine.StatusOverdue, engine.NextStatus(cfg, entry, now))
}

func TestNextStatus_DueSoonWithin24Hours(t *testing.T) {
	cfg := engine.DefaultStatusConfig()
	due := engine.NewTimePoint(2025, time.March, 10)
	entry := dueEntry(due)

	// 14 hours before the due date starts
	now := engine.NewTimePointWithHour(2025, time.March, 9, 10)
	assert.Equal(t, engine.StatusDueSoon, engine.NextStatus(cfg, entry, now))

	// 38 hours out is still upcoming
	now = engine.NewTimePointWithHour(2025, time.March, 8, 10)
	assert.Equal(t, engine.StatusUpcoming, engine.NextStatus(cfg, entry, now))
}

func TestNextStatus_TerminalUnchanged(t *testing.T) {
	// The clock never moves an entry out of a terminal state.

	cfg := engine.DefaultStatusConfig()
	entry := dueEntry(engine.NewTimePoint(2025, time.March, 10))
	entry.Status = engine.StatusCompleted

	now := engine.NewTimePointWithHour(2025, time.June, 1, 12)
	assert.Equal(t, engine.StatusCompleted, engine.NextStatus(cfg, entry, now))
}

func TestNextStatus_UsesExtendedDueDate(t *testing.T) {
	// GIVEN: An entry with a statutory extension past the adjusted date
	// WHEN: Evaluated between the two dates
	// THEN: The extension governs and the entry is not overdue

	cfg := engine.DefaultStatusConfig()
	entry := dueEntry(engine.NewTimePoint(2025, time.March, 10))
	extended := engine.NewTimePoint(2025, time.March, 20)
	entry.ExtendedDueDate = &extended

	now := engine.NewTimePointWithHour(2025, time.March, 15, 9)
	assert.Equal(t, engine.StatusUpcoming, engine.NextStatus(cfg, entry, now))
	assert.True(t, entry.EffectiveDueDate().Equal(extended))
}

// =============================================================================
// DAYS OVERDUE
// =============================================================================

func TestDaysOverdueAt(t *testing.T) {
	entry := dueEntry(engine.NewTimePoint(2025, time.March, 10))

	assert.Equal(t, 5, engine.DaysOverdueAt(entry, engine.NewTimePoint(2025, time.March, 15)))
	assert.Equal(t, 0, engine.DaysOverdueAt(entry, engine.NewTimePoint(2025, time.March, 10)))

	// Never negative before the due date
	assert.Equal(t, 0, engine.DaysOverdueAt(entry, engine.NewTimePoint(2025, time.March, 1)))
}

func TestReminderSent(t *testing.T) {
	entry := dueEntry(engine.NewTimePoint(2025, time.March, 10))
	entry.RemindersSent = []int{14, 7}

	assert.True(t, entry.ReminderSent(7))
	assert.False(t, entry.ReminderSent(1))
}
