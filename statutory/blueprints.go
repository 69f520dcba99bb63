/*
blueprints.go - Preset obligation blueprints

PURPOSE:
  Go-based blueprint configurations for common statutory obligations.
  These are the defaults a deployment starts from; jurisdiction overrides
  then specialize them per region. Each preset carries a versioned formula
  and penalty history starting at version 1.

PRESETS:
  MonthlyReturn:         period-end + 20 days, next working day, slab penalty
  WithholdingRemittance: period-end + 7 days, monthly-compounded interest
  QuarterlyEstimate:     quarter-end + 15 days, simple interest
  AnnualFiling:          fiscal-year-end + 7 months, daily penalty with floor
  LicenseRenewal:        registration anniversary, flat penalty

SEE ALSO:
  - engine/blueprint.go: Blueprint type and version resolution
  - api/scenarios.go: Demo data built from these presets
*/
package statutory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/compliance-engine/engine"
)

func intPtr(n int) *int             { return &n }
func moneyPtr(m engine.Money) *engine.Money { return &m }

// ruleEpoch is the EffectiveFrom for all version-1 presets.
var ruleEpoch = engine.NewTimePoint(2020, time.January, 1)

// =============================================================================
// PRESET BLUEPRINTS
// =============================================================================

// MonthlyReturn is a periodic tax return due 20 days after period end,
// pushed to the next working day, with a progressive per-day slab penalty.
func MonthlyReturn(id engine.BlueprintID, formCode string) engine.Blueprint {
	return engine.Blueprint{
		ID:           id,
		Code:         string(KindTaxReturn),
		Name:         "Monthly Tax Return",
		FormCode:     formCode,
		PeriodConfig: engine.PeriodConfig{Type: engine.PeriodMonthly},
		Formulas: []engine.DeadlineFormula{{
			ID:              engine.RuleID(string(id) + "-formula-v1"),
			BaseDateType:    engine.BasePeriodEnd,
			OffsetDays:      20,
			AdjustmentRule:  engine.AdjustmentNextWorkingDay,
			ExcludeWeekends: true,
			ExcludeHolidays: true,
			Version:         1,
			EffectiveFrom:   ruleEpoch,
		}},
		Penalties: []engine.PenaltyRule{{
			ID:   engine.RuleID(string(id) + "-penalty-v1"),
			Type: engine.PenaltySlab,
			Slabs: []engine.Slab{
				{FromDay: 1, ToDay: intPtr(15), Amount: engine.NewMoneyFromInt(50), Mode: engine.SlabPerDay},
				{FromDay: 16, ToDay: intPtr(30), Amount: engine.NewMoneyFromInt(100), Mode: engine.SlabPerDay},
				{FromDay: 31, Amount: engine.NewMoneyFromInt(200), Mode: engine.SlabPerDay},
			},
			MaxPenalty:    moneyPtr(engine.NewMoneyFromInt(10000)),
			Version:       1,
			EffectiveFrom: ruleEpoch,
		}},
		ReminderOffsets: []int{14, 7, 3, 1, 0},
	}
}

// WithholdingRemittance is a monthly deposit of withheld tax due 7 days
// after period end. No working-day relief: the nominal date binds even on
// holidays. Late remittance accrues monthly-compounded interest.
func WithholdingRemittance(id engine.BlueprintID, formCode string) engine.Blueprint {
	return engine.Blueprint{
		ID:           id,
		Code:         string(KindWithholding),
		Name:         "Withholding Tax Remittance",
		FormCode:     formCode,
		PeriodConfig: engine.PeriodConfig{Type: engine.PeriodMonthly},
		Formulas: []engine.DeadlineFormula{{
			ID:           engine.RuleID(string(id) + "-formula-v1"),
			BaseDateType: engine.BasePeriodEnd,
			OffsetDays:   7,
			// Rule set but flags off: filing is due on the nominal
			// date regardless of weekends or holidays.
			AdjustmentRule: engine.AdjustmentNextWorkingDay,
			Version:        1,
			EffectiveFrom:  ruleEpoch,
		}},
		Penalties: []engine.PenaltyRule{{
			ID:                   engine.RuleID(string(id) + "-penalty-v1"),
			Type:                 engine.PenaltyInterest,
			InterestRateAnnual:   decimal.NewFromFloat(0.18),
			CompoundingFrequency: engine.CompoundMonthly,
			Version:              1,
			EffectiveFrom:        ruleEpoch,
		}},
		ReminderOffsets: []int{7, 3, 1, 0},
	}
}

// QuarterlyEstimate is an advance-tax installment due 15 days after
// quarter end, moved to the previous working day, with simple interest.
func QuarterlyEstimate(id engine.BlueprintID, formCode string) engine.Blueprint {
	return engine.Blueprint{
		ID:           id,
		Code:         string(KindAdvanceTax),
		Name:         "Quarterly Advance Tax Estimate",
		FormCode:     formCode,
		PeriodConfig: engine.PeriodConfig{Type: engine.PeriodQuarterly},
		Formulas: []engine.DeadlineFormula{{
			ID:              engine.RuleID(string(id) + "-formula-v1"),
			BaseDateType:    engine.BaseQuarterEnd,
			OffsetDays:      15,
			AdjustmentRule:  engine.AdjustmentPrevWorkingDay,
			ExcludeWeekends: true,
			Version:         1,
			EffectiveFrom:   ruleEpoch,
		}},
		Penalties: []engine.PenaltyRule{{
			ID:                 engine.RuleID(string(id) + "-penalty-v1"),
			Type:               engine.PenaltyInterest,
			InterestRateAnnual: decimal.NewFromFloat(0.12),
			SimpleInterest:     true,
			Version:            1,
			EffectiveFrom:      ruleEpoch,
		}},
		ReminderOffsets: []int{14, 7, 1},
	}
}

// AnnualFiling is a yearly statement due 7 months after fiscal year end
// (April-start fiscal year), with a per-day penalty, a floor, and a cap.
func AnnualFiling(id engine.BlueprintID, formCode string) engine.Blueprint {
	return engine.Blueprint{
		ID:       id,
		Code:     string(KindAnnualFiling),
		Name:     "Annual Statement Filing",
		FormCode: formCode,
		PeriodConfig: engine.PeriodConfig{
			Type:                 engine.PeriodFiscalYear,
			FiscalYearStartMonth: time.April,
		},
		ApplicableEntityTypes: []engine.EntityType{engine.EntityCompany, engine.EntityLLP},
		Formulas: []engine.DeadlineFormula{{
			ID:              engine.RuleID(string(id) + "-formula-v1"),
			BaseDateType:    engine.BaseFiscalYearEnd,
			OffsetMonths:    7,
			AdjustmentRule:  engine.AdjustmentNextWorkingDay,
			ExcludeWeekends: true,
			ExcludeHolidays: true,
			Version:         1,
			EffectiveFrom:   ruleEpoch,
		}},
		Penalties: []engine.PenaltyRule{{
			ID:             engine.RuleID(string(id) + "-penalty-v1"),
			Type:           engine.PenaltyDaily,
			DailyAmount:    engine.NewMoneyFromInt(100),
			MaxPenaltyDays: intPtr(270),
			MaxPenalty:     moneyPtr(engine.NewMoneyFromInt(25000)),
			MinPenalty:     moneyPtr(engine.NewMoneyFromInt(500)),
			Version:        1,
			EffectiveFrom:  ruleEpoch,
		}},
		ReminderOffsets: []int{30, 14, 7, 1, 0},
	}
}

// LicenseRenewal is an annual renewal anchored on the entity's
// registration date, with a flat late fee.
func LicenseRenewal(id engine.BlueprintID, formCode string) engine.Blueprint {
	return engine.Blueprint{
		ID:           id,
		Code:         string(KindLicenseRenewal),
		Name:         "Trade License Renewal",
		FormCode:     formCode,
		PeriodConfig: engine.PeriodConfig{Type: engine.PeriodAnnual},
		Formulas: []engine.DeadlineFormula{{
			ID:              engine.RuleID(string(id) + "-formula-v1"),
			BaseDateType:    engine.BaseRegistrationDate,
			OffsetYears:     1,
			AdjustmentRule:  engine.AdjustmentNextWorkingDay,
			ExcludeWeekends: true,
			ExcludeHolidays: true,
			Version:         1,
			EffectiveFrom:   ruleEpoch,
		}},
		Penalties: []engine.PenaltyRule{{
			ID:            engine.RuleID(string(id) + "-penalty-v1"),
			Type:          engine.PenaltyFlat,
			FlatAmount:    engine.NewMoneyFromInt(2000),
			Version:       1,
			EffectiveFrom: ruleEpoch,
		}},
		ReminderOffsets: []int{30, 7, 0},
	}
}

// Catalog returns every preset, keyed the way a fresh deployment seeds them.
func Catalog() []engine.Blueprint {
	return []engine.Blueprint{
		MonthlyReturn("bp-monthly-return", "FORM-MR-1"),
		WithholdingRemittance("bp-withholding", "FORM-WH-7"),
		QuarterlyEstimate("bp-advance-tax", "FORM-AT-Q"),
		AnnualFiling("bp-annual-filing", "FORM-AF-20"),
		LicenseRenewal("bp-license-renewal", "FORM-LR-2"),
	}
}
