package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compliance-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func intPtr(n int) *int                     { return &n }
func moneyPtr(m engine.Money) *engine.Money { return &m }

func assertMoney(t *testing.T, want string, got engine.Money) {
	t.Helper()
	assert.True(t, got.Equal(engine.MustParseMoney(want)), "want %s, got %s", want, got)
}

var penaltyEpoch = engine.NewTimePoint(2020, time.January, 1)

// progressiveSlabs is the standard late-return schedule: 50/day for the
// first 15 days, 100/day for days 16-30, 200/day beyond.
func progressiveSlabs() []engine.Slab {
	return []engine.Slab{
		{FromDay: 1, ToDay: intPtr(15), Amount: engine.NewMoneyFromInt(50), Mode: engine.SlabPerDay},
		{FromDay: 16, ToDay: intPtr(30), Amount: engine.NewMoneyFromInt(100), Mode: engine.SlabPerDay},
		{FromDay: 31, Amount: engine.NewMoneyFromInt(200), Mode: engine.SlabPerDay},
	}
}

// =============================================================================
// BASIC PENALTY TYPES
// =============================================================================

func TestComputeLiability_NotOverdue(t *testing.T) {
	// GIVEN: Any penalty rule
	// WHEN: The entry is not overdue
	// THEN: Liability is zero across the board

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{Type: engine.PenaltyDaily, DailyAmount: engine.NewMoneyFromInt(200)}

	for _, days := range []int{0, -5} {
		liability, err := calc.ComputeLiability(rule, days, engine.ZeroMoney())
		require.NoError(t, err)
		assertMoney(t, "0", liability.Total)
	}
}

func TestComputeLiability_Flat(t *testing.T) {
	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{Type: engine.PenaltyFlat, FlatAmount: engine.NewMoneyFromInt(2000)}

	one, err := calc.ComputeLiability(rule, 1, engine.ZeroMoney())
	require.NoError(t, err)
	ninety, err := calc.ComputeLiability(rule, 90, engine.ZeroMoney())
	require.NoError(t, err)

	// Flat penalty does not grow with time
	assertMoney(t, "2000", one.Total)
	assertMoney(t, "2000", ninety.Total)
}

func TestComputeLiability_DailyCapped(t *testing.T) {
	// GIVEN: 200/day with a 10,000 cap
	// WHEN: 60 days overdue (raw penalty would be 12,000)
	// THEN: Liability caps at 10,000

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:        engine.PenaltyDaily,
		DailyAmount: engine.NewMoneyFromInt(200),
		MaxPenalty:  moneyPtr(engine.NewMoneyFromInt(10000)),
	}

	liability, err := calc.ComputeLiability(rule, 60, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "10000", liability.Penalty)
	assertMoney(t, "10000", liability.Total)
}

func TestComputeLiability_DailyMaxDays(t *testing.T) {
	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:           engine.PenaltyDaily,
		DailyAmount:    engine.NewMoneyFromInt(100),
		MaxPenaltyDays: intPtr(270),
	}

	liability, err := calc.ComputeLiability(rule, 400, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "27000", liability.Total)
}

func TestComputeLiability_MinPenaltyFloor(t *testing.T) {
	// GIVEN: A small accrued penalty with a 500 statutory minimum
	// WHEN: Only 3 days overdue (raw penalty 30)
	// THEN: The itemized penalty stays 30, the total floors at 500

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:        engine.PenaltyDaily,
		DailyAmount: engine.NewMoneyFromInt(10),
		MinPenalty:  moneyPtr(engine.NewMoneyFromInt(500)),
	}

	liability, err := calc.ComputeLiability(rule, 3, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "30", liability.Penalty)
	assertMoney(t, "500", liability.Total)
}

// =============================================================================
// SLAB PENALTIES
// =============================================================================

func TestComputeLiability_SlabCumulative(t *testing.T) {
	// GIVEN: The progressive per-day schedule
	// WHEN: 40 days overdue
	// THEN: Bands accumulate: 15x50 + 15x100 + 10x200 = 4250

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{Type: engine.PenaltySlab, Slabs: progressiveSlabs()}

	liability, err := calc.ComputeLiability(rule, 40, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "4250", liability.Total)
}

func TestComputeLiability_SlabWithinFirstBand(t *testing.T) {
	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{Type: engine.PenaltySlab, Slabs: progressiveSlabs()}

	liability, err := calc.ComputeLiability(rule, 10, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "500", liability.Total)

	// Exactly on a band boundary
	liability, err = calc.ComputeLiability(rule, 15, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "750", liability.Total)

	liability, err = calc.ComputeLiability(rule, 16, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "850", liability.Total)
}

func TestComputeLiability_SlabFixedLookup(t *testing.T) {
	// GIVEN: Fixed-mode slabs
	// WHEN: Days overdue falls in the second band
	// THEN: Liability is that band's amount alone, no accumulation

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type: engine.PenaltySlab,
		Slabs: []engine.Slab{
			{FromDay: 1, ToDay: intPtr(30), Amount: engine.NewMoneyFromInt(5000), Mode: engine.SlabFixed},
			{FromDay: 31, Amount: engine.NewMoneyFromInt(10000), Mode: engine.SlabFixed},
		},
	}

	liability, err := calc.ComputeLiability(rule, 45, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "10000", liability.Total)
}

func TestComputeLiability_SlabCapped(t *testing.T) {
	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:       engine.PenaltySlab,
		Slabs:      progressiveSlabs(),
		MaxPenalty: moneyPtr(engine.NewMoneyFromInt(10000)),
	}

	// 15x50 + 15x100 + 70x200 = 16250, capped
	liability, err := calc.ComputeLiability(rule, 100, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "10000", liability.Total)
}

func TestValidateSlabs(t *testing.T) {
	valid := engine.PenaltyRule{Slabs: progressiveSlabs()}
	assert.NoError(t, valid.ValidateSlabs())

	gap := engine.PenaltyRule{Slabs: []engine.Slab{
		{FromDay: 1, ToDay: intPtr(10), Amount: engine.NewMoneyFromInt(50), Mode: engine.SlabPerDay},
		{FromDay: 12, Amount: engine.NewMoneyFromInt(100), Mode: engine.SlabPerDay},
	}}
	assert.ErrorIs(t, gap.ValidateSlabs(), engine.ErrConfiguration)

	openNotLast := engine.PenaltyRule{Slabs: []engine.Slab{
		{FromDay: 1, Amount: engine.NewMoneyFromInt(50), Mode: engine.SlabPerDay},
		{FromDay: 16, Amount: engine.NewMoneyFromInt(100), Mode: engine.SlabPerDay},
	}}
	assert.ErrorIs(t, openNotLast.ValidateSlabs(), engine.ErrConfiguration)

	inverted := engine.PenaltyRule{Slabs: []engine.Slab{
		{FromDay: 10, ToDay: intPtr(5), Amount: engine.NewMoneyFromInt(50), Mode: engine.SlabPerDay},
	}}
	assert.ErrorIs(t, inverted.ValidateSlabs(), engine.ErrConfiguration)
}

// =============================================================================
// INTEREST
// =============================================================================

func TestComputeLiability_SimpleInterest(t *testing.T) {
	// GIVEN: 12% p.a. simple interest on 100,000 unpaid tax
	// WHEN: 73 days overdue (exactly one fifth of a year)
	// THEN: Interest is 2,400

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:               engine.PenaltyInterest,
		InterestRateAnnual: decimal.NewFromFloat(0.12),
		SimpleInterest:     true,
	}

	liability, err := calc.ComputeLiability(rule, 73, engine.NewMoneyFromInt(100000))
	require.NoError(t, err)
	assertMoney(t, "2400", liability.Interest)
	assertMoney(t, "0", liability.Penalty)
	assertMoney(t, "2400", liability.Total)
}

func TestComputeLiability_InterestNoBase(t *testing.T) {
	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:               engine.PenaltyInterest,
		InterestRateAnnual: decimal.NewFromFloat(0.18),
		SimpleInterest:     true,
	}

	liability, err := calc.ComputeLiability(rule, 30, engine.ZeroMoney())
	require.NoError(t, err)
	assertMoney(t, "0", liability.Total)
}

func TestComputeLiability_MonthlyCompound(t *testing.T) {
	// GIVEN: 18% p.a. compounded monthly (1.5% per 30-day month)
	// WHEN: 60 days overdue on 100,000
	// THEN: Two whole months compound: 100000 * 1.015^2 - 100000 = 3022.50

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:                 engine.PenaltyInterest,
		InterestRateAnnual:   decimal.NewFromFloat(0.18),
		CompoundingFrequency: engine.CompoundMonthly,
	}

	liability, err := calc.ComputeLiability(rule, 60, engine.NewMoneyFromInt(100000))
	require.NoError(t, err)
	assertMoney(t, "3022.50", liability.Interest)
}

func TestComputeLiability_MonthlyCompoundRemainderDays(t *testing.T) {
	// Remainder days accrue simple interest on the compounded principal,
	// so 75 days is strictly more than 60 but less than 90.

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:                 engine.PenaltyInterest,
		InterestRateAnnual:   decimal.NewFromFloat(0.18),
		CompoundingFrequency: engine.CompoundMonthly,
	}
	base := engine.NewMoneyFromInt(100000)

	at60, err := calc.ComputeLiability(rule, 60, base)
	require.NoError(t, err)
	at75, err := calc.ComputeLiability(rule, 75, base)
	require.NoError(t, err)
	at90, err := calc.ComputeLiability(rule, 90, base)
	require.NoError(t, err)

	assert.True(t, at75.Interest.GreaterThan(at60.Interest), "75 days > 60 days: %s vs %s", at75.Interest, at60.Interest)
	assert.True(t, at90.Interest.GreaterThan(at75.Interest), "90 days > 75 days: %s vs %s", at90.Interest, at75.Interest)
}

func TestComputeLiability_QuarterlyCompound(t *testing.T) {
	// 12% p.a. quarterly = 3% per 90-day quarter; two quarters on 100,000
	// compound to 6,090.

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:                 engine.PenaltyCompound,
		InterestRateAnnual:   decimal.NewFromFloat(0.12),
		CompoundingFrequency: engine.CompoundQuarterly,
	}

	liability, err := calc.ComputeLiability(rule, 180, engine.NewMoneyFromInt(100000))
	require.NoError(t, err)
	assertMoney(t, "6090", liability.Interest)
}

func TestComputeLiability_DailyCompoundExceedsSimple(t *testing.T) {
	calc := &engine.PenaltyCalculator{}
	base := engine.NewMoneyFromInt(100000)

	compound := engine.PenaltyRule{
		Type:                 engine.PenaltyInterest,
		InterestRateAnnual:   decimal.NewFromFloat(0.18),
		CompoundingFrequency: engine.CompoundDaily,
	}
	simple := engine.PenaltyRule{
		Type:               engine.PenaltyInterest,
		InterestRateAnnual: decimal.NewFromFloat(0.18),
		SimpleInterest:     true,
	}

	c, err := calc.ComputeLiability(compound, 365, base)
	require.NoError(t, err)
	s, err := calc.ComputeLiability(simple, 365, base)
	require.NoError(t, err)

	assertMoney(t, "18000", s.Interest)
	assert.True(t, c.Interest.GreaterThan(s.Interest),
		"daily compounding must exceed simple interest: %s vs %s", c.Interest, s.Interest)
}

// =============================================================================
// MIXED
// =============================================================================

func TestComputeLiability_Mixed(t *testing.T) {
	// GIVEN: Flat penalty plus simple interest
	// WHEN: 73 days overdue on 100,000
	// THEN: Components are itemized and summed

	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{
		Type:               engine.PenaltyMixed,
		FlatAmount:         engine.NewMoneyFromInt(1000),
		InterestRateAnnual: decimal.NewFromFloat(0.12),
		SimpleInterest:     true,
	}

	liability, err := calc.ComputeLiability(rule, 73, engine.NewMoneyFromInt(100000))
	require.NoError(t, err)
	assertMoney(t, "1000", liability.Penalty)
	assertMoney(t, "2400", liability.Interest)
	assertMoney(t, "3400", liability.Total)
}

func TestComputeLiability_UnknownType(t *testing.T) {
	calc := &engine.PenaltyCalculator{}
	rule := engine.PenaltyRule{Type: "percentage"}

	_, err := calc.ComputeLiability(rule, 10, engine.ZeroMoney())
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}

func TestPenaltyRule_InEffect(t *testing.T) {
	until := engine.NewTimePoint(2024, time.December, 31)
	rule := engine.PenaltyRule{EffectiveFrom: penaltyEpoch, EffectiveUntil: &until}

	assert.False(t, rule.InEffect(engine.NewTimePoint(2019, time.June, 1)))
	assert.True(t, rule.InEffect(penaltyEpoch))
	assert.True(t, rule.InEffect(until))
	assert.False(t, rule.InEffect(until.AddDays(1)))
}
