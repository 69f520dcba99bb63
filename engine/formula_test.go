package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compliance-engine/engine"
	"github.com/warp/compliance-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestFormulaResolver(t *testing.T) *engine.FormulaResolver {
	t.Helper()
	mem := store.NewMemory()
	mem.PutJurisdiction(engine.Jurisdiction{
		ID: "in", Code: "IN", Name: "India", Level: engine.LevelCountry, Path: "IN",
	})
	for year := 2024; year <= 2026; year++ {
		mem.PutCalendar(engine.HolidayCalendar{JurisdictionID: "in", Year: year})
	}
	return &engine.FormulaResolver{Calendar: engine.NewCalendarResolver(mem, mem, nil)}
}

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestResolve_OffsetFromPeriodEnd(t *testing.T) {
	// GIVEN: A return due 20 days after period end
	// WHEN: The period ends January 31, 2025
	// THEN: Due Thursday February 20, no adjustment needed

	resolver := newTestFormulaResolver(t)
	formula := engine.DeadlineFormula{
		BaseDateType:    engine.BasePeriodEnd,
		OffsetDays:      20,
		AdjustmentRule:  engine.AdjustmentNextWorkingDay,
		ExcludeWeekends: true,
		ExcludeHolidays: true,
	}

	due, err := resolver.Resolve(context.Background(), formula,
		engine.NewTimePoint(2025, time.January, 31), "in")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-20", due.Nominal.String())
	assert.Equal(t, "2025-02-20", due.Adjusted.String())
}

func TestResolve_WeekendPushedToMonday(t *testing.T) {
	resolver := newTestFormulaResolver(t)
	formula := engine.DeadlineFormula{
		BaseDateType:    engine.BasePeriodEnd,
		OffsetDays:      15,
		AdjustmentRule:  engine.AdjustmentNextWorkingDay,
		ExcludeWeekends: true,
		ExcludeHolidays: true,
	}

	// May 31 + 15 days = Sunday June 15
	due, err := resolver.Resolve(context.Background(), formula,
		engine.NewTimePoint(2025, time.May, 31), "in")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", due.Nominal.String())
	assert.Equal(t, "2025-06-16", due.Adjusted.String())
}

func TestResolve_PreviousWorkingDay(t *testing.T) {
	resolver := newTestFormulaResolver(t)
	formula := engine.DeadlineFormula{
		BaseDateType:    engine.BasePeriodEnd,
		OffsetDays:      15,
		AdjustmentRule:  engine.AdjustmentPrevWorkingDay,
		ExcludeWeekends: true,
	}

	due, err := resolver.Resolve(context.Background(), formula,
		engine.NewTimePoint(2025, time.May, 31), "in")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-13", due.Adjusted.String())
}

func TestResolve_FlagsGateAdjustment(t *testing.T) {
	// GIVEN: An adjustment rule set but both exclusion flags off
	// WHEN: The nominal date lands on a Sunday
	// THEN: The nominal date binds; the rule only selects direction

	resolver := newTestFormulaResolver(t)
	formula := engine.DeadlineFormula{
		BaseDateType:   engine.BasePeriodEnd,
		OffsetDays:     15,
		AdjustmentRule: engine.AdjustmentNextWorkingDay,
	}

	due, err := resolver.Resolve(context.Background(), formula,
		engine.NewTimePoint(2025, time.May, 31), "in")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", due.Adjusted.String())
}

func TestResolve_MonthOffsetClamps(t *testing.T) {
	resolver := newTestFormulaResolver(t)
	formula := engine.DeadlineFormula{
		BaseDateType: engine.BasePeriodEnd,
		OffsetMonths: 1,
	}

	due, err := resolver.Resolve(context.Background(), formula,
		engine.NewTimePoint(2025, time.January, 31), "in")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", due.Nominal.String())
}

// =============================================================================
// BASE DATE DERIVATION
// =============================================================================

func TestBaseDate_Types(t *testing.T) {
	period := engine.Period{
		Start: engine.NewTimePoint(2025, time.February, 1),
		End:   engine.NewTimePoint(2025, time.February, 28),
	}
	entity := engine.Entity{
		ID:               "ent-1",
		RegistrationDate: engine.NewTimePoint(2022, time.June, 15),
	}
	bctx := engine.BaseDateContext{Period: period, FiscalYearStart: 4, Entity: entity}

	got, err := engine.BaseDate(engine.DeadlineFormula{BaseDateType: engine.BasePeriodEnd}, bctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", got.String())

	got, err = engine.BaseDate(engine.DeadlineFormula{BaseDateType: engine.BaseQuarterEnd}, bctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", got.String())

	got, err = engine.BaseDate(engine.DeadlineFormula{BaseDateType: engine.BaseFiscalYearEnd}, bctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", got.String())

	got, err = engine.BaseDate(engine.DeadlineFormula{BaseDateType: engine.BaseRegistrationDate}, bctx)
	require.NoError(t, err)
	assert.Equal(t, "2022-06-15", got.String())
}

func TestBaseDate_TransactionDate(t *testing.T) {
	txDate := engine.NewTimePoint(2025, time.March, 3)
	bctx := engine.BaseDateContext{TransactionDate: &txDate}

	got, err := engine.BaseDate(engine.DeadlineFormula{BaseDateType: engine.BaseTransactionDate}, bctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-03", got.String())

	// Missing transaction date is a configuration error
	_, err = engine.BaseDate(engine.DeadlineFormula{BaseDateType: engine.BaseTransactionDate}, engine.BaseDateContext{})
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}

func TestBaseDate_MissingPredecessorDefers(t *testing.T) {
	// GIVEN: A formula anchored on the previous filing date
	// WHEN: The prior period's entry is absent or unfiled
	// THEN: Derivation fails with the deferrable predecessor error

	formula := engine.DeadlineFormula{BaseDateType: engine.BasePreviousFilingDate}
	bctx := engine.BaseDateContext{Entity: engine.Entity{ID: "ent-1"}}

	_, err := engine.BaseDate(formula, bctx)
	assert.ErrorIs(t, err, engine.ErrMissingPredecessor)
	assert.True(t, engine.IsDeferrable(err))

	// Present but unfiled predecessor defers too
	bctx.PreviousEntry = &engine.CalendarEntry{ID: "entry-prev"}
	_, err = engine.BaseDate(formula, bctx)
	assert.ErrorIs(t, err, engine.ErrMissingPredecessor)

	// Filed predecessor resolves to its filing date
	filed := engine.NewTimePoint(2025, time.January, 18)
	bctx.PreviousEntry.FiledDate = &filed
	got, err := engine.BaseDate(formula, bctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-18", got.String())
}

func TestBaseDate_UnknownType(t *testing.T) {
	_, err := engine.BaseDate(engine.DeadlineFormula{BaseDateType: "lunar_month_end"}, engine.BaseDateContext{})
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}

func TestFormulaAt_PicksVersionInEffect(t *testing.T) {
	// GIVEN: Two formula versions with adjoining effective windows
	// WHEN: Resolving at dates on either side of the changeover
	// THEN: Each date resolves to the version that applied then

	v1Until := engine.NewTimePoint(2024, time.December, 31)
	blueprint := engine.Blueprint{
		ID: "bp-test",
		Formulas: []engine.DeadlineFormula{
			{Version: 1, OffsetDays: 20, EffectiveFrom: engine.NewTimePoint(2020, time.January, 1), EffectiveUntil: &v1Until},
			{Version: 2, OffsetDays: 25, EffectiveFrom: engine.NewTimePoint(2025, time.January, 1)},
		},
		Penalties: []engine.PenaltyRule{
			{Version: 1, Type: engine.PenaltyFlat, EffectiveFrom: engine.NewTimePoint(2020, time.January, 1)},
		},
	}

	f, err := blueprint.FormulaAt(engine.NewTimePoint(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, f.Version)

	f, err = blueprint.FormulaAt(engine.NewTimePoint(2025, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, f.Version)

	_, err = blueprint.FormulaAt(engine.NewTimePoint(2019, time.June, 1))
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}
