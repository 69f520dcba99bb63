/*
formula.go - Deadline formula resolver

PURPOSE:
  Given a base date type, offsets, and an adjustment rule, computes the
  nominal and adjusted due date for one compliance period. This is a pure
  function of (formula, base date, jurisdiction); all state lives in the
  calendar resolver it delegates to.

TWO-LEVEL ADJUSTMENT CONTROL:
  AdjustmentRule selects the direction (next/previous working day), but the
  ExcludeWeekends/ExcludeHolidays flags gate whether adjustment happens at
  all. If both flags are false the formula explicitly opts out of adjustment
  even when a rule is set. Real filing rules include forms that must be
  filed by the nominal date regardless of holidays.

VERSIONING:
  Formulas are immutable once versioned. Changes create a new formula
  record; regulatory history must remain reproducible.

SEE ALSO:
  - calendar.go: Working-day adjustment
  - generator.go: Base-date derivation from entry context
*/
package engine

import (
	"context"
	"fmt"
	"time"
)

func monthOf(m int) time.Month { return time.Month(m) }

// =============================================================================
// DEADLINE FORMULA
// =============================================================================

type BaseDateType string

const (
	BasePeriodEnd          BaseDateType = "period_end"
	BaseQuarterEnd         BaseDateType = "quarter_end"
	BaseFiscalYearEnd      BaseDateType = "fiscal_year_end"
	BaseTransactionDate    BaseDateType = "transaction_date"
	BaseRegistrationDate   BaseDateType = "registration_date"
	BasePreviousFilingDate BaseDateType = "previous_filing_date"
)

type AdjustmentRule string

const (
	AdjustmentNone            AdjustmentRule = "none"
	AdjustmentNextWorkingDay  AdjustmentRule = "next_working_day"
	AdjustmentPrevWorkingDay  AdjustmentRule = "previous_working_day"
)

// DeadlineFormula derives a due date from a base date.
// Immutable once versioned; changes create a new record.
type DeadlineFormula struct {
	ID           RuleID
	BaseDateType BaseDateType
	OffsetDays   int
	OffsetMonths int
	OffsetYears  int

	AdjustmentRule  AdjustmentRule
	ExcludeWeekends bool
	ExcludeHolidays bool

	Version        int
	EffectiveFrom  TimePoint
	EffectiveUntil *TimePoint // nil = open-ended
}

// InEffect reports whether this formula version applies at asOf.
func (f DeadlineFormula) InEffect(asOf TimePoint) bool {
	if asOf.Before(f.EffectiveFrom) {
		return false
	}
	return f.EffectiveUntil == nil || asOf.BeforeOrEqual(*f.EffectiveUntil)
}

// DueDates is the resolver output: the raw formula result and the
// holiday-adjusted result.
type DueDates struct {
	Nominal  TimePoint
	Adjusted TimePoint
}

// =============================================================================
// FORMULA RESOLVER
// =============================================================================

// FormulaResolver computes due dates from formulas.
type FormulaResolver struct {
	Calendar *CalendarResolver
}

// Resolve computes the nominal and adjusted due dates.
//
// Algorithm:
//  1. nominal = baseDate + offsetYears + offsetMonths + offsetDays, with
//     calendar month-end clamping.
//  2. AdjustmentRule none -> adjusted = nominal.
//  3. Otherwise adjust in the rule's direction, but only if
//     ExcludeWeekends || ExcludeHolidays.
func (fr *FormulaResolver) Resolve(ctx context.Context, formula DeadlineFormula, baseDate TimePoint, jurisdictionID JurisdictionID) (DueDates, error) {
	nominal := baseDate.
		AddYearsClamped(formula.OffsetYears).
		AddMonthsClamped(formula.OffsetMonths).
		AddDays(formula.OffsetDays).
		Date()

	result := DueDates{Nominal: nominal, Adjusted: nominal}

	if formula.AdjustmentRule == AdjustmentNone || formula.AdjustmentRule == "" {
		return result, nil
	}
	if !formula.ExcludeWeekends && !formula.ExcludeHolidays {
		// Flags gate the adjustment; the rule only selects direction.
		return result, nil
	}

	direction := AdjustNext
	if formula.AdjustmentRule == AdjustmentPrevWorkingDay {
		direction = AdjustPrevious
	}

	adjusted, err := fr.Calendar.Adjust(ctx, nominal, jurisdictionID, direction)
	if err != nil {
		return DueDates{}, err
	}
	result.Adjusted = adjusted
	return result, nil
}

// =============================================================================
// BASE DATE DERIVATION
// =============================================================================

// BaseDateContext carries everything a base date can be derived from.
type BaseDateContext struct {
	Period          Period
	FiscalYearStart int // month (1-12); 0 = calendar year
	Entity          Entity

	// PreviousEntry is the prior period's calendar entry, if it exists.
	PreviousEntry *CalendarEntry

	// TransactionDate for event-driven obligations.
	TransactionDate *TimePoint
}

// BaseDate derives the formula's base date from the entry context.
// BasePreviousFilingDate requires the prior period's entry to already be
// filed; if absent the caller defers generation rather than guessing.
func BaseDate(formula DeadlineFormula, bctx BaseDateContext) (TimePoint, error) {
	switch formula.BaseDateType {
	case BasePeriodEnd:
		return bctx.Period.End, nil

	case BaseQuarterEnd:
		return EndOfQuarter(bctx.Period.End), nil

	case BaseFiscalYearEnd:
		startMonth := bctx.FiscalYearStart
		if startMonth == 0 {
			startMonth = 1
		}
		return EndOfFiscalYear(bctx.Period.End, monthOf(startMonth)), nil

	case BaseTransactionDate:
		if bctx.TransactionDate == nil {
			return TimePoint{}, &ConfigurationError{Subject: "formula", Detail: "transaction_date base with no transaction date"}
		}
		return *bctx.TransactionDate, nil

	case BaseRegistrationDate:
		return bctx.Entity.RegistrationDate, nil

	case BasePreviousFilingDate:
		if bctx.PreviousEntry == nil || bctx.PreviousEntry.FiledDate == nil {
			return TimePoint{}, &MissingPredecessorError{
				EntityID:    bctx.Entity.ID,
				BlueprintID: "",
				PeriodStart: bctx.Period.Start,
			}
		}
		return *bctx.PreviousEntry.FiledDate, nil

	default:
		return TimePoint{}, &ConfigurationError{
			Subject: "formula",
			Detail:  fmt.Sprintf("unknown base date type %q", formula.BaseDateType),
		}
	}
}
