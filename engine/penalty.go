/*
penalty.go - Penalty and interest calculation

PURPOSE:
  Computes accrued penalty and interest liability for an overdue obligation.
  All monetary arithmetic uses decimal.Decimal; binary floating point never
  touches statutory liability.

PENALTY TYPES:
  Flat:     one amount once overdue
  Daily:    per-day amount, capped by max days and max penalty
  Slab:     day-range bands; PerDay bands are CUMULATIVE (sum every band
            overlapped by [1, daysOverdue]), Fixed bands are a single lookup
  Interest: simple/compound interest on the unpaid tax liability
  Compound: interest with compounding (alias kept for rule data that splits
            simple vs compound explicitly)
  Mixed:    penalty component + interest component, caps applied
            independently, then summed

CAPS AND FLOORS:
  total = max(minPenalty, penalty + interest), then hard-capped at
  maxPenalty if set. The result is always an itemized breakdown, never a
  scalar, for auditability.

SEE ALSO:
  - generator.go: Recomputes liability on every tick while OVERDUE
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PENALTY RULE
// =============================================================================

type PenaltyType string

const (
	PenaltyFlat     PenaltyType = "flat"
	PenaltyDaily    PenaltyType = "daily"
	PenaltySlab     PenaltyType = "slab"
	PenaltyInterest PenaltyType = "interest"
	PenaltyCompound PenaltyType = "compound"
	PenaltyMixed    PenaltyType = "mixed"
)

type CompoundingFrequency string

const (
	CompoundDaily     CompoundingFrequency = "daily"
	CompoundMonthly   CompoundingFrequency = "monthly"
	CompoundQuarterly CompoundingFrequency = "quarterly"
)

type SlabMode string

const (
	SlabFixed  SlabMode = "fixed"
	SlabPerDay SlabMode = "per_day"
)

// Slab is one day-range band of a progressive penalty schedule.
// The last slab may be open-ended (ToDay == nil).
type Slab struct {
	FromDay int
	ToDay   *int
	Amount  Money
	Mode    SlabMode
}

// PenaltyRule is a versioned, append-only penalty configuration.
type PenaltyRule struct {
	ID   RuleID
	Type PenaltyType

	FlatAmount  Money
	DailyAmount Money

	// Annual interest rate as a fraction (0.18 = 18% p.a.).
	InterestRateAnnual   decimal.Decimal
	CompoundingFrequency CompoundingFrequency
	SimpleInterest       bool // true = no compounding

	Slabs []Slab

	MaxPenalty     *Money
	MaxPenaltyDays *int
	MinPenalty     *Money

	Version        int
	EffectiveFrom  TimePoint
	EffectiveUntil *TimePoint
}

// InEffect reports whether this rule version applies at asOf.
func (r PenaltyRule) InEffect(asOf TimePoint) bool {
	if asOf.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveUntil == nil || asOf.BeforeOrEqual(*r.EffectiveUntil)
}

// ValidateSlabs checks the slab invariant: sorted ascending by FromDay,
// contiguous, non-overlapping, only the last slab open-ended.
func (r PenaltyRule) ValidateSlabs() error {
	for i, s := range r.Slabs {
		if s.FromDay < 1 {
			return &ConfigurationError{Subject: "penalty slabs", Detail: fmt.Sprintf("slab %d starts before day 1", i)}
		}
		if s.ToDay != nil && *s.ToDay < s.FromDay {
			return &ConfigurationError{Subject: "penalty slabs", Detail: fmt.Sprintf("slab %d ends before it starts", i)}
		}
		if s.ToDay == nil && i != len(r.Slabs)-1 {
			return &ConfigurationError{Subject: "penalty slabs", Detail: fmt.Sprintf("slab %d is open-ended but not last", i)}
		}
		if i > 0 {
			prev := r.Slabs[i-1]
			if prev.ToDay == nil || s.FromDay != *prev.ToDay+1 {
				return &ConfigurationError{Subject: "penalty slabs", Detail: fmt.Sprintf("slab %d is not contiguous with slab %d", i, i-1)}
			}
		}
	}
	return nil
}

// =============================================================================
// LIABILITY - Itemized calculation result
// =============================================================================

type Liability struct {
	Penalty  Money
	Interest Money
	Total    Money
}

func ZeroLiability() Liability {
	return Liability{Penalty: ZeroMoney(), Interest: ZeroMoney(), Total: ZeroMoney()}
}

// =============================================================================
// PENALTY CALCULATOR
// =============================================================================

// PenaltyCalculator computes liability from a rule and days overdue.
type PenaltyCalculator struct{}

// ComputeLiability computes the accrued liability for daysOverdue days.
// baseTaxLiability feeds the interest types; pass ZeroMoney() when the
// obligation carries no tax amount.
func (pc *PenaltyCalculator) ComputeLiability(rule PenaltyRule, daysOverdue int, baseTaxLiability Money) (Liability, error) {
	if daysOverdue <= 0 {
		return ZeroLiability(), nil
	}

	var penalty, interest Money
	var err error

	switch rule.Type {
	case PenaltyFlat:
		penalty = rule.FlatAmount

	case PenaltyDaily:
		penalty = pc.daily(rule, daysOverdue)

	case PenaltySlab:
		penalty, err = pc.slab(rule, daysOverdue)
		if err != nil {
			return ZeroLiability(), err
		}

	case PenaltyInterest, PenaltyCompound:
		interest = pc.interest(rule, daysOverdue, baseTaxLiability)

	case PenaltyMixed:
		// Penalty component: slab if configured, flat otherwise.
		if len(rule.Slabs) > 0 {
			penalty, err = pc.slab(rule, daysOverdue)
			if err != nil {
				return ZeroLiability(), err
			}
		} else {
			penalty = rule.FlatAmount
		}
		penalty = penalty.Cap(rule.MaxPenalty)
		interest = pc.interest(rule, daysOverdue, baseTaxLiability)

	default:
		return ZeroLiability(), &ConfigurationError{
			Subject: "penalty rule",
			Detail:  fmt.Sprintf("unknown penalty type %q", rule.Type),
		}
	}

	penalty = penalty.Cap(rule.MaxPenalty)

	total := penalty.Add(interest).Floor(rule.MinPenalty).Cap(rule.MaxPenalty)
	return Liability{Penalty: penalty, Interest: interest, Total: total}, nil
}

// daily: dailyAmount * min(daysOverdue, maxPenaltyDays), capped at maxPenalty.
func (pc *PenaltyCalculator) daily(rule PenaltyRule, daysOverdue int) Money {
	days := daysOverdue
	if rule.MaxPenaltyDays != nil && days > *rule.MaxPenaltyDays {
		days = *rule.MaxPenaltyDays
	}
	return rule.DailyAmount.Mul(decimal.NewFromInt(int64(days)))
}

// slab: cumulative banding for PerDay slabs, single lookup for Fixed slabs.
//
// The band containing daysOverdue decides the mode. Fixed: liability is that
// slab's amount. PerDay: liability accumulates across every band overlapped
// by [1, daysOverdue] (per-day rate x days-in-band; earlier Fixed bands
// contribute their amount once).
func (pc *PenaltyCalculator) slab(rule PenaltyRule, daysOverdue int) (Money, error) {
	if err := rule.ValidateSlabs(); err != nil {
		return ZeroMoney(), err
	}
	if len(rule.Slabs) == 0 {
		return ZeroMoney(), &ConfigurationError{Subject: "penalty slabs", Detail: "slab penalty with no slabs"}
	}

	days := daysOverdue
	if rule.MaxPenaltyDays != nil && days > *rule.MaxPenaltyDays {
		days = *rule.MaxPenaltyDays
	}

	containing := rule.Slabs[len(rule.Slabs)-1]
	for _, s := range rule.Slabs {
		if days >= s.FromDay && (s.ToDay == nil || days <= *s.ToDay) {
			containing = s
			break
		}
	}
	if containing.Mode == SlabFixed {
		return containing.Amount, nil
	}

	total := ZeroMoney()
	for _, s := range rule.Slabs {
		if s.FromDay > days {
			break
		}
		bandEnd := days
		if s.ToDay != nil && *s.ToDay < bandEnd {
			bandEnd = *s.ToDay
		}
		if s.Mode == SlabFixed {
			total = total.Add(s.Amount)
			continue
		}
		daysInBand := bandEnd - s.FromDay + 1
		total = total.Add(s.Amount.Mul(decimal.NewFromInt(int64(daysInBand))))
	}
	return total, nil
}

// interest: simple or compound interest on the base liability for
// daysOverdue days at the annual rate.
//
//	simple:            P * r * days/365
//	compound daily:    P * (1 + r/365)^days - P
//	compound monthly:  compound per elapsed whole 30-day month, plus simple
//	                   interest for the remainder days
//	compound quarterly: same with 90-day quarters
func (pc *PenaltyCalculator) interest(rule PenaltyRule, daysOverdue int, base Money) Money {
	if base.IsZero() || rule.InterestRateAnnual.IsZero() {
		return ZeroMoney()
	}

	r := rule.InterestRateAnnual
	days := decimal.NewFromInt(int64(daysOverdue))
	yearDays := decimal.NewFromInt(365)

	if rule.SimpleInterest || rule.CompoundingFrequency == "" {
		return base.Mul(r).Mul(days.Div(yearDays))
	}

	switch rule.CompoundingFrequency {
	case CompoundDaily:
		factor := decimal.NewFromInt(1).Add(r.Div(yearDays)).Pow(days)
		return base.Mul(factor).Sub(base)

	case CompoundMonthly:
		return pc.compoundWithRemainder(base, r, daysOverdue, 30, 12)

	case CompoundQuarterly:
		return pc.compoundWithRemainder(base, r, daysOverdue, 90, 4)

	default:
		return base.Mul(r).Mul(days.Div(yearDays))
	}
}

// compoundWithRemainder compounds per whole period of periodDays days
// (periodsPerYear periods in a year), then adds simple interest on the
// compounded principal for the leftover days.
func (pc *PenaltyCalculator) compoundWithRemainder(base Money, r decimal.Decimal, daysOverdue, periodDays, periodsPerYear int) Money {
	whole := daysOverdue / periodDays
	remainder := daysOverdue % periodDays

	periodRate := r.Div(decimal.NewFromInt(int64(periodsPerYear)))
	factor := decimal.NewFromInt(1).Add(periodRate).Pow(decimal.NewFromInt(int64(whole)))
	principal := base.Mul(factor)

	interest := principal.Sub(base)
	if remainder > 0 {
		simple := principal.Mul(r).Mul(decimal.NewFromInt(int64(remainder)).Div(decimal.NewFromInt(365)))
		interest = interest.Add(simple)
	}
	return interest
}
