package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compliance-engine/engine"
	"github.com/warp/compliance-engine/statutory"
	"github.com/warp/compliance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// JURISDICTIONS
// =============================================================================

func TestJurisdiction_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	j := engine.Jurisdiction{
		ID: "ae", ParentID: "", Code: "AE", Name: "Gulf Region",
		Level: engine.LevelCountry, Path: "AE", TaxCode: "TRN",
		Weekend: map[time.Weekday]bool{time.Friday: true, time.Saturday: true},
	}
	require.NoError(t, store.SaveJurisdiction(ctx, j))

	got, err := store.Jurisdiction(ctx, "ae")
	require.NoError(t, err)
	assert.Equal(t, j.Code, got.Code)
	assert.Equal(t, j.Level, got.Level)
	assert.True(t, got.IsWeekend(time.Friday))
	assert.False(t, got.IsWeekend(time.Sunday))

	_, err = store.Jurisdiction(ctx, "nowhere")
	assert.ErrorIs(t, err, engine.ErrJurisdictionNotFound)
}

// =============================================================================
// HOLIDAY CALENDARS
// =============================================================================

func TestCalendar_IngestionTracksPresence(t *testing.T) {
	// GIVEN: A calendar ingested with zero holidays
	// WHEN: Loading it back
	// THEN: It reads as present, distinct from a never-ingested year

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveJurisdiction(ctx, engine.Jurisdiction{
		ID: "in", Code: "IN", Level: engine.LevelCountry, Path: "IN",
	}))

	require.NoError(t, store.SaveCalendar(ctx, engine.HolidayCalendar{
		JurisdictionID: "in", Year: 2025,
	}))

	_, ok, err := store.CalendarFor(ctx, "in", 2025)
	require.NoError(t, err)
	assert.True(t, ok, "empty but ingested calendar counts as present")

	_, ok, err = store.CalendarFor(ctx, "in", 2026)
	require.NoError(t, err)
	assert.False(t, ok, "never-ingested year signals degraded mode")
}

func TestCalendar_ReingestionReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveJurisdiction(ctx, engine.Jurisdiction{
		ID: "in", Code: "IN", Level: engine.LevelCountry, Path: "IN",
	}))

	cal := engine.HolidayCalendar{
		JurisdictionID: "in", Year: 2025,
		Holidays: []engine.Holiday{{
			ID: "h1", JurisdictionID: "in",
			Date: engine.NewTimePoint(2025, time.August, 15),
			Name: "Independence Day", Type: engine.HolidayNational,
		}},
	}
	require.NoError(t, store.SaveCalendar(ctx, cal))

	cal.Holidays = append(cal.Holidays, engine.Holiday{
		ID: "h2", JurisdictionID: "in",
		Date: engine.NewTimePoint(2025, time.October, 2),
		Name: "Gandhi Jayanti", Type: engine.HolidayNational, Optional: false,
	})
	require.NoError(t, store.SaveCalendar(ctx, cal))

	got, ok, err := store.CalendarFor(ctx, "in", 2025)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Holidays, 2)
	assert.Equal(t, "2025-08-15", got.Holidays[0].Date.String())
}

// =============================================================================
// BLUEPRINTS
// =============================================================================

func TestBlueprint_PersistsThroughCodec(t *testing.T) {
	// The store serializes blueprints to config_json; every preset must
	// survive the round trip including slabs and interest rates.

	store := newTestStore(t)
	ctx := context.Background()

	for _, preset := range statutory.Catalog() {
		require.NoError(t, store.SaveBlueprint(ctx, preset), "save %s", preset.ID)
	}

	got, err := store.Blueprint(ctx, "bp-monthly-return")
	require.NoError(t, err)
	assert.Equal(t, engine.PeriodMonthly, got.PeriodConfig.Type)
	require.Len(t, got.Penalties, 1)
	require.Len(t, got.Penalties[0].Slabs, 3)
	assert.True(t, got.Penalties[0].Slabs[0].Amount.Equal(engine.NewMoneyFromInt(50)))

	all, err := store.ListBlueprints(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = store.Blueprint(ctx, "bp-ghost")
	assert.ErrorIs(t, err, engine.ErrBlueprintNotFound)
}

// =============================================================================
// OVERRIDES
// =============================================================================

func TestOverridesFor_FiltersByPathAndBlueprint(t *testing.T) {
	// GIVEN: Overrides at different jurisdictions and blueprints
	// WHEN: Querying with a jurisdiction path
	// THEN: Only rows on the path, for the blueprint or blueprint-wide, match

	store := newTestStore(t)
	ctx := context.Background()

	small := engine.NewMoneyFromInt(2_000_000)
	overrides := []engine.JurisdictionRule{
		{ID: "ovr-city", JurisdictionID: "in-ka-blr", BlueprintID: "bp-mr",
			Type: engine.OverrideDeadline, Priority: 10,
			EffectiveFrom:   engine.NewTimePoint(2022, time.January, 1),
			OffsetDaysDelta: 10},
		{ID: "ovr-any-bp", JurisdictionID: "in", BlueprintID: "",
			Type: engine.OverrideExemption, Priority: 20,
			EffectiveFrom: engine.NewTimePoint(2022, time.January, 1),
			AppliesWhen:   engine.RulePredicate{MaxTurnover: &small},
			Reason:        "Small business relief"},
		{ID: "ovr-elsewhere", JurisdictionID: "in-mh", BlueprintID: "bp-mr",
			Type: engine.OverrideDeadline, Priority: 10,
			EffectiveFrom: engine.NewTimePoint(2022, time.January, 1)},
		{ID: "ovr-other-bp", JurisdictionID: "in", BlueprintID: "bp-af",
			Type: engine.OverrideForm, Priority: 5,
			EffectiveFrom: engine.NewTimePoint(2022, time.January, 1)},
	}
	for _, r := range overrides {
		require.NoError(t, store.SaveOverride(ctx, r))
	}

	got, err := store.OverridesFor(ctx, []engine.JurisdictionID{"in-ka-blr", "in-ka", "in"}, "bp-mr")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Candidates come back in id order so precedence tie-breaking does not
	// depend on physical row order.
	assert.Equal(t, engine.RuleID("ovr-any-bp"), got[0].ID)
	assert.Equal(t, engine.RuleID("ovr-city"), got[1].ID)

	// Payloads round-trip through config_json
	assert.Equal(t, 10, got[1].OffsetDaysDelta)
	require.NotNil(t, got[0].AppliesWhen.MaxTurnover)
	assert.True(t, got[0].AppliesWhen.MaxTurnover.Equal(small))
	assert.Equal(t, "Small business relief", got[0].Reason)
}

func TestOverride_RatePayloadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	daily := engine.NewMoneyFromInt(250)
	require.NoError(t, store.SaveOverride(ctx, engine.JurisdictionRule{
		ID: "ovr-rate", JurisdictionID: "in", BlueprintID: "bp-wh",
		Type: engine.OverrideRate, Priority: 5,
		EffectiveFrom:      engine.NewTimePoint(2022, time.January, 1),
		InterestRateAnnual: decimal.NewFromFloat(0.24),
		DailyAmount:        &daily,
	}))

	got, err := store.OverridesFor(ctx, []engine.JurisdictionID{"in"}, "bp-wh")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].InterestRateAnnual.Equal(decimal.NewFromFloat(0.24)))
	require.NotNil(t, got[0].DailyAmount)
	assert.True(t, got[0].DailyAmount.Equal(daily))
}

// =============================================================================
// ENTITIES
// =============================================================================

func TestEntity_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := engine.Entity{
		ID: "ent-1", ClientID: "client-1", Name: "Acme Manufacturing Pvt Ltd",
		Type: engine.EntityCompany, JurisdictionID: "in-ka-blr",
		Turnover:         engine.NewMoneyFromInt(50_000_000),
		RegistrationDate: engine.NewTimePoint(2022, time.June, 15),
		Attributes:       map[string]string{"sector": "manufacturing"},
	}
	require.NoError(t, store.SaveEntity(ctx, e))

	got, err := store.Entity(ctx, "ent-1")
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)
	assert.True(t, got.Turnover.Equal(e.Turnover))
	assert.Equal(t, "2022-06-15", got.RegistrationDate.String())
	assert.Equal(t, "manufacturing", got.Attributes["sector"])

	_, err = store.Entity(ctx, "ent-ghost")
	assert.ErrorIs(t, err, engine.ErrEntityNotFound)
}

// =============================================================================
// CALENDAR ENTRIES
// =============================================================================

func testEntry(id engine.EntryID) engine.CalendarEntry {
	return engine.CalendarEntry{
		ID: id, ClientID: "client-1", EntityID: "ent-1", BlueprintID: "bp-mr",
		FormulaVersion: 1, PenaltyVersion: 1,
		PeriodType:  engine.PeriodMonthly,
		PeriodStart: engine.NewTimePoint(2025, time.March, 1),
		PeriodEnd:   engine.NewTimePoint(2025, time.March, 31),
		FiscalYear:  "2025",
		OriginalDueDate: engine.NewTimePoint(2025, time.April, 20),
		AdjustedDueDate: engine.NewTimePoint(2025, time.April, 21),
		Status:          engine.StatusUpcoming,
		FormCode:        "FORM-MR-1",
		PenaltyAmount:   engine.ZeroMoney(),
		InterestAmount:  engine.ZeroMoney(),
		TotalLiability:  engine.ZeroMoney(),
		PenaltyPaid:     engine.ZeroMoney(),
		TaxLiability:    engine.ZeroMoney(),
		TaxPaid:         engine.ZeroMoney(),
		Version:         1,
		CreatedAt:       engine.NewTimePoint(2025, time.March, 5),
		UpdatedAt:       engine.NewTimePoint(2025, time.March, 5),
	}
}

func TestEntry_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("entry-1")
	require.NoError(t, store.CreateEntry(ctx, entry))

	got, err := store.GetEntry(ctx, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, entry.Status, got.Status)
	assert.Equal(t, "2025-04-21", got.AdjustedDueDate.String())
	assert.Equal(t, 1, got.Version)
	assert.Nil(t, got.FiledDate)

	_, err = store.GetEntry(ctx, "entry-ghost")
	assert.ErrorIs(t, err, engine.ErrEntryNotFound)
}

func TestEntry_UpdateVersionCheck(t *testing.T) {
	// GIVEN: An entry at version 1
	// WHEN: Two writers race with the same expected version
	// THEN: The second write fails with a concurrency conflict

	store := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("entry-1")
	require.NoError(t, store.CreateEntry(ctx, entry))

	entry.Status = engine.StatusDueSoon
	require.NoError(t, store.UpdateEntry(ctx, entry, 1))

	entry.Status = engine.StatusOverdue
	err := store.UpdateEntry(ctx, entry, 1)
	assert.ErrorIs(t, err, engine.ErrConcurrencyConflict)

	// Reload shows the first write at version 2
	got, err := store.GetEntry(ctx, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusDueSoon, got.Status)
	assert.Equal(t, 2, got.Version)

	// Updating a missing entry is not a conflict
	ghost := testEntry("entry-ghost")
	assert.ErrorIs(t, store.UpdateEntry(ctx, ghost, 1), engine.ErrEntryNotFound)
}

func TestEntry_FiledFieldsPersist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("entry-1")
	require.NoError(t, store.CreateEntry(ctx, entry))

	filed := engine.NewTimePoint(2025, time.May, 1)
	entry.Status = engine.StatusCompleted
	entry.FiledDate = &filed
	entry.FilingReference = "ACK-42"
	entry.DaysOverdue = 10
	entry.PenaltyAmount = engine.NewMoneyFromInt(500)
	entry.TotalLiability = engine.NewMoneyFromInt(500)
	entry.RemindersSent = []int{14, 7, 3, 1, 0}
	require.NoError(t, store.UpdateEntry(ctx, entry, 1))

	got, err := store.GetEntry(ctx, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCompleted, got.Status)
	require.NotNil(t, got.FiledDate)
	assert.Equal(t, "2025-05-01", got.FiledDate.String())
	assert.Equal(t, "ACK-42", got.FilingReference)
	assert.Equal(t, 10, got.DaysOverdue)
	assert.True(t, got.TotalLiability.Equal(engine.NewMoneyFromInt(500)))
	assert.Equal(t, []int{14, 7, 3, 1, 0}, got.RemindersSent)
}

func TestFindByPeriod_ReturnsLatestEntryVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v0 := testEntry("entry-v0")
	require.NoError(t, store.CreateEntry(ctx, v0))

	v1 := testEntry("entry-v1")
	v1.EntryVersion = 1
	v1.FormulaVersion = 2
	require.NoError(t, store.CreateEntry(ctx, v1))

	got, found, err := store.FindByPeriod(ctx, "ent-1", "bp-mr", v0.PeriodStart)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, engine.EntryID("entry-v1"), got.ID)

	_, found, err = store.FindByPeriod(ctx, "ent-1", "bp-mr", engine.NewTimePoint(2025, time.April, 1))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListEntries_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testEntry("entry-a")
	require.NoError(t, store.CreateEntry(ctx, a))

	b := testEntry("entry-b")
	b.EntityID = "ent-2"
	b.Status = engine.StatusOverdue
	b.PeriodStart = engine.NewTimePoint(2025, time.February, 1)
	b.PeriodEnd = engine.NewTimePoint(2025, time.February, 28)
	require.NoError(t, store.CreateEntry(ctx, b))

	byEntity, err := store.ListEntries(ctx, engine.EntryFilter{EntityID: "ent-2"})
	require.NoError(t, err)
	require.Len(t, byEntity, 1)
	assert.Equal(t, engine.EntryID("entry-b"), byEntity[0].ID)

	byStatus, err := store.ListEntries(ctx, engine.EntryFilter{Status: engine.StatusOverdue})
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	from := engine.NewTimePoint(2025, time.March, 1)
	byRange, err := store.ListEntries(ctx, engine.EntryFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	assert.Equal(t, engine.EntryID("entry-a"), byRange[0].ID)

	nonTerminal, err := store.ListNonTerminal(ctx)
	require.NoError(t, err)
	assert.Len(t, nonTerminal, 2)
}

// =============================================================================
// PASS RUNS
// =============================================================================

func TestPassRun_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC)
	run := sqlite.PassRun{ID: "pass-1", StartedAt: started, Status: "running"}
	require.NoError(t, store.SavePassRun(ctx, run))

	completed := started.Add(2 * time.Second)
	run.CompletedAt = &completed
	run.Status = "completed"
	run.Generated = 3
	run.Reevaluated = 7
	run.Changed = 2
	require.NoError(t, store.SavePassRun(ctx, run))

	runs, err := store.ListPassRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1, "saving twice upserts the same run")
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 3, runs[0].Generated)
	require.NotNil(t, runs[0].CompletedAt)
}

// =============================================================================
// RESET
// =============================================================================

func TestReset_ClearsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveJurisdiction(ctx, engine.Jurisdiction{
		ID: "in", Code: "IN", Level: engine.LevelCountry, Path: "IN",
	}))
	require.NoError(t, store.CreateEntry(ctx, testEntry("entry-1")))

	require.NoError(t, store.Reset(ctx))

	nodes, err := store.ListJurisdictions(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	_, err = store.GetEntry(ctx, "entry-1")
	assert.ErrorIs(t, err, engine.ErrEntryNotFound)
}
