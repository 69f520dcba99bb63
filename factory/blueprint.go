/*
Package factory provides JSON to Go blueprint conversion.

PURPOSE:
  Converts JSON blueprint definitions into engine.Blueprint values. This
  enables rule configuration without code changes - compliance admins can
  define obligations in JSON, and the factory creates the proper Go
  structs. The sqlite store persists blueprints through this codec.

JSON SCHEMA:
  {
    "id": "bp-monthly-return",
    "code": "tax_return",
    "name": "Monthly Tax Return",
    "form_code": "FORM-MR-1",
    "period_type": "monthly",
    "applicable_entity_types": ["company", "llp"],
    "reminder_offsets": [14, 7, 1, 0],
    "formulas": [{
      "base_date_type": "period_end",
      "offset_days": 20,
      "adjustment_rule": "next_working_day",
      "exclude_weekends": true,
      "exclude_holidays": true,
      "version": 1,
      "effective_from": "2020-01-01"
    }],
    "penalties": [{
      "type": "slab",
      "slabs": [{"from_day": 1, "to_day": 15, "amount": "50", "mode": "per_day"}],
      "max_penalty": "10000",
      "version": 1,
      "effective_from": "2020-01-01"
    }]
  }

SEE ALSO:
  - engine/blueprint.go: Blueprint type definition
  - statutory/blueprints.go: Go-based preset configurations
  - store/sqlite: Persists blueprints as config_json
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/compliance-engine/engine"
)

const dateLayout = "2006-01-02"

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type BlueprintJSON struct {
	ID                    string        `json:"id"`
	Code                  string        `json:"code"`
	Name                  string        `json:"name"`
	FormCode              string        `json:"form_code,omitempty"`
	PeriodType            string        `json:"period_type"`
	FiscalYearStart       int           `json:"fiscal_year_start,omitempty"` // month 1-12
	ApplicableEntityTypes []string      `json:"applicable_entity_types,omitempty"`
	ReminderOffsets       []int         `json:"reminder_offsets,omitempty"`
	Formulas              []FormulaJSON `json:"formulas"`
	Penalties             []PenaltyJSON `json:"penalties"`
}

type FormulaJSON struct {
	ID              string `json:"id,omitempty"`
	BaseDateType    string `json:"base_date_type"`
	OffsetDays      int    `json:"offset_days,omitempty"`
	OffsetMonths    int    `json:"offset_months,omitempty"`
	OffsetYears     int    `json:"offset_years,omitempty"`
	AdjustmentRule  string `json:"adjustment_rule,omitempty"`
	ExcludeWeekends bool   `json:"exclude_weekends,omitempty"`
	ExcludeHolidays bool   `json:"exclude_holidays,omitempty"`
	Version         int    `json:"version"`
	EffectiveFrom   string `json:"effective_from"`
	EffectiveUntil  string `json:"effective_until,omitempty"`
}

type PenaltyJSON struct {
	ID                   string     `json:"id,omitempty"`
	Type                 string     `json:"type"`
	FlatAmount           string     `json:"flat_amount,omitempty"`
	DailyAmount          string     `json:"daily_amount,omitempty"`
	InterestRateAnnual   string     `json:"interest_rate_annual,omitempty"`
	CompoundingFrequency string     `json:"compounding_frequency,omitempty"`
	SimpleInterest       bool       `json:"simple_interest,omitempty"`
	Slabs                []SlabJSON `json:"slabs,omitempty"`
	MaxPenalty           string     `json:"max_penalty,omitempty"`
	MaxPenaltyDays       *int       `json:"max_penalty_days,omitempty"`
	MinPenalty           string     `json:"min_penalty,omitempty"`
	Version              int        `json:"version"`
	EffectiveFrom        string     `json:"effective_from"`
	EffectiveUntil       string     `json:"effective_until,omitempty"`
}

type SlabJSON struct {
	FromDay int    `json:"from_day"`
	ToDay   *int   `json:"to_day,omitempty"`
	Amount  string `json:"amount"`
	Mode    string `json:"mode"`
}

// =============================================================================
// FACTORY
// =============================================================================

type BlueprintFactory struct{}

func NewBlueprintFactory() *BlueprintFactory { return &BlueprintFactory{} }

// ParseBlueprint converts a JSON config into an engine.Blueprint.
func (f *BlueprintFactory) ParseBlueprint(configJSON string) (engine.Blueprint, error) {
	var cfg BlueprintJSON
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return engine.Blueprint{}, fmt.Errorf("invalid blueprint JSON: %w", err)
	}
	if cfg.ID == "" {
		return engine.Blueprint{}, fmt.Errorf("blueprint id is required")
	}
	if len(cfg.Formulas) == 0 {
		return engine.Blueprint{}, fmt.Errorf("blueprint %s has no formulas", cfg.ID)
	}
	if len(cfg.Penalties) == 0 {
		return engine.Blueprint{}, fmt.Errorf("blueprint %s has no penalties", cfg.ID)
	}

	b := engine.Blueprint{
		ID:       engine.BlueprintID(cfg.ID),
		Code:     cfg.Code,
		Name:     cfg.Name,
		FormCode: cfg.FormCode,
		PeriodConfig: engine.PeriodConfig{
			Type:                 engine.PeriodType(cfg.PeriodType),
			FiscalYearStartMonth: time.Month(cfg.FiscalYearStart),
		},
		ReminderOffsets: cfg.ReminderOffsets,
	}
	for _, t := range cfg.ApplicableEntityTypes {
		b.ApplicableEntityTypes = append(b.ApplicableEntityTypes, engine.EntityType(t))
	}

	for i, fj := range cfg.Formulas {
		formula, err := f.parseFormula(fj)
		if err != nil {
			return engine.Blueprint{}, fmt.Errorf("blueprint %s formula %d: %w", cfg.ID, i, err)
		}
		b.Formulas = append(b.Formulas, formula)
	}
	for i, pj := range cfg.Penalties {
		penalty, err := f.parsePenalty(pj)
		if err != nil {
			return engine.Blueprint{}, fmt.Errorf("blueprint %s penalty %d: %w", cfg.ID, i, err)
		}
		if err := penalty.ValidateSlabs(); err != nil {
			return engine.Blueprint{}, fmt.Errorf("blueprint %s penalty %d: %w", cfg.ID, i, err)
		}
		b.Penalties = append(b.Penalties, penalty)
	}
	return b, nil
}

// EncodeBlueprint converts a Blueprint back to its JSON config.
func (f *BlueprintFactory) EncodeBlueprint(b engine.Blueprint) (string, error) {
	cfg := BlueprintJSON{
		ID:              string(b.ID),
		Code:            b.Code,
		Name:            b.Name,
		FormCode:        b.FormCode,
		PeriodType:      string(b.PeriodConfig.Type),
		FiscalYearStart: int(b.PeriodConfig.FiscalYearStartMonth),
		ReminderOffsets: b.ReminderOffsets,
	}
	for _, t := range b.ApplicableEntityTypes {
		cfg.ApplicableEntityTypes = append(cfg.ApplicableEntityTypes, string(t))
	}
	for _, formula := range b.Formulas {
		fj := FormulaJSON{
			ID:              string(formula.ID),
			BaseDateType:    string(formula.BaseDateType),
			OffsetDays:      formula.OffsetDays,
			OffsetMonths:    formula.OffsetMonths,
			OffsetYears:     formula.OffsetYears,
			AdjustmentRule:  string(formula.AdjustmentRule),
			ExcludeWeekends: formula.ExcludeWeekends,
			ExcludeHolidays: formula.ExcludeHolidays,
			Version:         formula.Version,
			EffectiveFrom:   formula.EffectiveFrom.Time.Format(dateLayout),
		}
		if formula.EffectiveUntil != nil {
			fj.EffectiveUntil = formula.EffectiveUntil.Time.Format(dateLayout)
		}
		cfg.Formulas = append(cfg.Formulas, fj)
	}
	for _, penalty := range b.Penalties {
		pj := PenaltyJSON{
			ID:                   string(penalty.ID),
			Type:                 string(penalty.Type),
			CompoundingFrequency: string(penalty.CompoundingFrequency),
			SimpleInterest:       penalty.SimpleInterest,
			MaxPenaltyDays:       penalty.MaxPenaltyDays,
			Version:              penalty.Version,
			EffectiveFrom:        penalty.EffectiveFrom.Time.Format(dateLayout),
		}
		if !penalty.FlatAmount.IsZero() {
			pj.FlatAmount = penalty.FlatAmount.Value.String()
		}
		if !penalty.DailyAmount.IsZero() {
			pj.DailyAmount = penalty.DailyAmount.Value.String()
		}
		if !penalty.InterestRateAnnual.IsZero() {
			pj.InterestRateAnnual = penalty.InterestRateAnnual.String()
		}
		if penalty.MaxPenalty != nil {
			pj.MaxPenalty = penalty.MaxPenalty.Value.String()
		}
		if penalty.MinPenalty != nil {
			pj.MinPenalty = penalty.MinPenalty.Value.String()
		}
		if penalty.EffectiveUntil != nil {
			pj.EffectiveUntil = penalty.EffectiveUntil.Time.Format(dateLayout)
		}
		for _, s := range penalty.Slabs {
			pj.Slabs = append(pj.Slabs, SlabJSON{
				FromDay: s.FromDay,
				ToDay:   s.ToDay,
				Amount:  s.Amount.Value.String(),
				Mode:    string(s.Mode),
			})
		}
		cfg.Penalties = append(cfg.Penalties, pj)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *BlueprintFactory) parseFormula(fj FormulaJSON) (engine.DeadlineFormula, error) {
	from, err := parseDate(fj.EffectiveFrom)
	if err != nil {
		return engine.DeadlineFormula{}, fmt.Errorf("effective_from: %w", err)
	}

	formula := engine.DeadlineFormula{
		ID:              engine.RuleID(fj.ID),
		BaseDateType:    engine.BaseDateType(fj.BaseDateType),
		OffsetDays:      fj.OffsetDays,
		OffsetMonths:    fj.OffsetMonths,
		OffsetYears:     fj.OffsetYears,
		AdjustmentRule:  engine.AdjustmentRule(fj.AdjustmentRule),
		ExcludeWeekends: fj.ExcludeWeekends,
		ExcludeHolidays: fj.ExcludeHolidays,
		Version:         fj.Version,
		EffectiveFrom:   from,
	}
	if formula.AdjustmentRule == "" {
		formula.AdjustmentRule = engine.AdjustmentNone
	}
	if fj.EffectiveUntil != "" {
		until, err := parseDate(fj.EffectiveUntil)
		if err != nil {
			return engine.DeadlineFormula{}, fmt.Errorf("effective_until: %w", err)
		}
		formula.EffectiveUntil = &until
	}
	return formula, nil
}

func (f *BlueprintFactory) parsePenalty(pj PenaltyJSON) (engine.PenaltyRule, error) {
	from, err := parseDate(pj.EffectiveFrom)
	if err != nil {
		return engine.PenaltyRule{}, fmt.Errorf("effective_from: %w", err)
	}

	penalty := engine.PenaltyRule{
		ID:                   engine.RuleID(pj.ID),
		Type:                 engine.PenaltyType(pj.Type),
		CompoundingFrequency: engine.CompoundingFrequency(pj.CompoundingFrequency),
		SimpleInterest:       pj.SimpleInterest,
		MaxPenaltyDays:       pj.MaxPenaltyDays,
		Version:              pj.Version,
		EffectiveFrom:        from,
	}
	if pj.FlatAmount != "" {
		penalty.FlatAmount = engine.MustParseMoney(pj.FlatAmount)
	}
	if pj.DailyAmount != "" {
		penalty.DailyAmount = engine.MustParseMoney(pj.DailyAmount)
	}
	if pj.InterestRateAnnual != "" {
		rate, err := decimal.NewFromString(pj.InterestRateAnnual)
		if err != nil {
			return engine.PenaltyRule{}, fmt.Errorf("interest_rate_annual: %w", err)
		}
		penalty.InterestRateAnnual = rate
	}
	if pj.MaxPenalty != "" {
		m := engine.MustParseMoney(pj.MaxPenalty)
		penalty.MaxPenalty = &m
	}
	if pj.MinPenalty != "" {
		m := engine.MustParseMoney(pj.MinPenalty)
		penalty.MinPenalty = &m
	}
	if pj.EffectiveUntil != "" {
		until, err := parseDate(pj.EffectiveUntil)
		if err != nil {
			return engine.PenaltyRule{}, fmt.Errorf("effective_until: %w", err)
		}
		penalty.EffectiveUntil = &until
	}
	for _, sj := range pj.Slabs {
		penalty.Slabs = append(penalty.Slabs, engine.Slab{
			FromDay: sj.FromDay,
			ToDay:   sj.ToDay,
			Amount:  engine.MustParseMoney(sj.Amount),
			Mode:    engine.SlabMode(sj.Mode),
		})
	}
	return penalty, nil
}

func parseDate(s string) (engine.TimePoint, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return engine.TimePoint{}, err
	}
	return engine.NewTimePoint(t.Year(), t.Month(), t.Day()), nil
}
