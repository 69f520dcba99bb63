package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/compliance-engine/engine"
)

func TestPeriodFor_Monthly(t *testing.T) {
	cfg := engine.PeriodConfig{Type: engine.PeriodMonthly}

	p := cfg.PeriodFor(engine.NewTimePoint(2025, time.February, 14))
	assert.Equal(t, "2025-02-01", p.Start.String())
	assert.Equal(t, "2025-02-28", p.End.String())
}

func TestPeriodFor_Quarterly(t *testing.T) {
	cfg := engine.PeriodConfig{Type: engine.PeriodQuarterly}

	p := cfg.PeriodFor(engine.NewTimePoint(2025, time.May, 20))
	assert.Equal(t, "2025-04-01", p.Start.String())
	assert.Equal(t, "2025-06-30", p.End.String())

	p = cfg.PeriodFor(engine.NewTimePoint(2025, time.December, 31))
	assert.Equal(t, "2025-10-01", p.Start.String())
	assert.Equal(t, "2025-12-31", p.End.String())
}

func TestPeriodFor_FiscalYear(t *testing.T) {
	// GIVEN: An April-start fiscal year
	// WHEN: The date falls before April
	// THEN: The period is the fiscal year that started the previous April

	cfg := engine.PeriodConfig{Type: engine.PeriodFiscalYear, FiscalYearStartMonth: time.April}

	p := cfg.PeriodFor(engine.NewTimePoint(2025, time.February, 10))
	assert.Equal(t, "2024-04-01", p.Start.String())
	assert.Equal(t, "2025-03-31", p.End.String())

	p = cfg.PeriodFor(engine.NewTimePoint(2025, time.April, 1))
	assert.Equal(t, "2025-04-01", p.Start.String())
	assert.Equal(t, "2026-03-31", p.End.String())
}

func TestPeriodFor_AnnualAndOneTime(t *testing.T) {
	annual := engine.PeriodConfig{Type: engine.PeriodAnnual}
	p := annual.PeriodFor(engine.NewTimePoint(2025, time.July, 4))
	assert.Equal(t, "2025-01-01", p.Start.String())
	assert.Equal(t, "2025-12-31", p.End.String())

	oneTime := engine.PeriodConfig{Type: engine.PeriodOneTime}
	event := engine.NewTimePoint(2025, time.July, 4)
	p = oneTime.PeriodFor(event)
	assert.True(t, p.Start.Equal(event))
	assert.True(t, p.End.Equal(event))
}

func TestNextAndPreviousPeriod(t *testing.T) {
	cfg := engine.PeriodConfig{Type: engine.PeriodMonthly}
	march := cfg.PeriodFor(engine.NewTimePoint(2025, time.March, 15))

	next := cfg.NextPeriod(march)
	assert.Equal(t, "2025-04-01", next.Start.String())

	prev := cfg.PreviousPeriod(march)
	assert.Equal(t, "2025-02-01", prev.Start.String())
	assert.Equal(t, "2025-02-28", prev.End.String())
}

func TestFiscalYearLabel(t *testing.T) {
	cfg := engine.PeriodConfig{Type: engine.PeriodFiscalYear, FiscalYearStartMonth: time.April}
	p := cfg.PeriodFor(engine.NewTimePoint(2025, time.June, 1))
	assert.Equal(t, "2025-26", cfg.FiscalYearLabel(p))

	monthly := engine.PeriodConfig{Type: engine.PeriodMonthly}
	p = monthly.PeriodFor(engine.NewTimePoint(2025, time.June, 1))
	assert.Equal(t, "2025", monthly.FiscalYearLabel(p))
}

func TestPeriodContains(t *testing.T) {
	cfg := engine.PeriodConfig{Type: engine.PeriodMonthly}
	p := cfg.PeriodFor(engine.NewTimePoint(2025, time.March, 1))

	assert.True(t, p.Contains(engine.NewTimePoint(2025, time.March, 1)))
	assert.True(t, p.Contains(engine.NewTimePoint(2025, time.March, 31)))
	assert.False(t, p.Contains(engine.NewTimePoint(2025, time.April, 1)))
}
