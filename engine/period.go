package engine

import "time"

// =============================================================================
// COMPLIANCE PERIOD - The reporting window an obligation covers
// =============================================================================

// Period is one compliance reporting window [Start, End].
// A calendar entry is always materialized for exactly one period.
type Period struct {
	Start TimePoint
	End   TimePoint
}

func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// Key identifies a period for idempotent generation lookups.
func (p Period) Key() string { return p.Start.String() + "_" + p.End.String() }

// PeriodType defines how reporting windows are laid out.
type PeriodType string

const (
	PeriodMonthly    PeriodType = "monthly"
	PeriodQuarterly  PeriodType = "quarterly"
	PeriodHalfYearly PeriodType = "half_yearly"
	PeriodAnnual     PeriodType = "annual"      // calendar year
	PeriodFiscalYear PeriodType = "fiscal_year" // custom start month
	PeriodOneTime    PeriodType = "one_time"    // event-driven, no recurrence
)

// PeriodConfig defines how to calculate periods for a compliance rule.
type PeriodConfig struct {
	Type PeriodType

	// For fiscal year: which month starts the fiscal year (1-12).
	FiscalYearStartMonth time.Month
}

// =============================================================================
// PERIOD CALCULATOR
// =============================================================================

// PeriodFor returns the period that contains the given date.
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	switch pc.Type {
	case PeriodMonthly:
		return Period{
			Start: StartOfMonth(date.Year(), date.Month()),
			End:   EndOfMonth(date.Year(), date.Month()),
		}

	case PeriodQuarterly:
		q := (int(date.Month()) - 1) / 3
		startMonth := time.Month(q*3 + 1)
		return Period{
			Start: NewTimePoint(date.Year(), startMonth, 1),
			End:   EndOfMonth(date.Year(), startMonth+2),
		}

	case PeriodHalfYearly:
		if int(date.Month()) <= 6 {
			return Period{Start: NewTimePoint(date.Year(), time.January, 1), End: EndOfMonth(date.Year(), time.June)}
		}
		return Period{Start: NewTimePoint(date.Year(), time.July, 1), End: EndOfYear(date.Year())}

	case PeriodFiscalYear:
		start := NewTimePoint(date.Year(), pc.FiscalYearStartMonth, 1)
		if date.Before(start) {
			start = NewTimePoint(date.Year()-1, pc.FiscalYearStartMonth, 1)
		}
		return Period{Start: start, End: start.AddMonthsClamped(12).AddDays(-1)}

	case PeriodOneTime:
		return Period{Start: date.Date(), End: date.Date()}

	default: // PeriodAnnual
		return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}
	}
}

// NextPeriod returns the period after the one containing date.
func (pc PeriodConfig) NextPeriod(p Period) Period {
	return pc.PeriodFor(p.End.AddDays(1))
}

// PreviousPeriod returns the period before the one containing date.
func (pc PeriodConfig) PreviousPeriod(p Period) Period {
	return pc.PeriodFor(p.Start.AddDays(-1))
}

// FiscalYearLabel returns the fiscal year label for a period, e.g. "2025-26"
// for Apr 2025 - Mar 2026, or "2025" for calendar-year periods.
func (pc PeriodConfig) FiscalYearLabel(p Period) string {
	if p.Start.Year() == p.End.Year() {
		return p.Start.Time.Format("2006")
	}
	return p.Start.Time.Format("2006") + "-" + p.End.Time.Format("06")
}
