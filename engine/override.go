/*
override.go - Jurisdiction rule resolution

PURPOSE:
  Applies jurisdiction-specific overrides to a blueprint's base rule to
  produce the effective rule for one entity. Overrides are legally
  significant, so precedence is a single explicit comparator, unit-tested
  in isolation, never inlined sort logic.

PRECEDENCE (documented contract):
  priority desc, then jurisdiction level desc (city beats state beats
  country), then effectiveFrom desc. A full tie between applicable
  overrides is a data-integrity bug and resolution fails loudly with
  AmbiguousOverrideError rather than guessing.

EXEMPTIONS:
  Exactly one Exemption wins if several apply: the highest-priority one
  under the same comparator. An exemption short-circuits resolution; the
  generator then marks the entry EXEMPTED and skips deadline and penalty
  computation entirely.

SEE ALSO:
  - blueprint.go: The base rule being overridden
  - generator.go: Consumes EffectiveRule at generation time
*/
package engine

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// JURISDICTION RULE - One override row
// =============================================================================

type OverrideType string

const (
	OverrideDeadline              OverrideType = "deadline_override"
	OverrideExemption             OverrideType = "exemption"
	OverrideAdditionalRequirement OverrideType = "additional_requirement"
	OverrideRate                  OverrideType = "rate_override"
	OverrideForm                  OverrideType = "form_override"
)

// RulePredicate matches entity attributes. Zero-value matches everything.
type RulePredicate struct {
	EntityTypes []EntityType
	MinTurnover *Money
	MaxTurnover *Money
	Attributes  map[string]string // all listed pairs must match
}

// Matches reports whether the entity satisfies the predicate.
func (p RulePredicate) Matches(e Entity) bool {
	if len(p.EntityTypes) > 0 {
		ok := false
		for _, t := range p.EntityTypes {
			if t == e.Type {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if p.MinTurnover != nil && e.Turnover.LessThan(*p.MinTurnover) {
		return false
	}
	if p.MaxTurnover != nil && e.Turnover.GreaterThan(*p.MaxTurnover) {
		return false
	}
	for k, v := range p.Attributes {
		if e.Attributes[k] != v {
			return false
		}
	}
	return true
}

// JurisdictionRule is one override. Multiple overrides may apply to the
// same (jurisdiction, blueprint); the comparator decides.
type JurisdictionRule struct {
	ID             RuleID
	JurisdictionID JurisdictionID
	BlueprintID    BlueprintID // empty = applies to every blueprint
	Type           OverrideType

	AppliesWhen RulePredicate
	Priority    int

	EffectiveFrom  TimePoint
	EffectiveUntil *TimePoint

	// Payloads, by Type:
	OffsetDaysDelta    int             // deadline_override: added to formula OffsetDays
	InterestRateAnnual decimal.Decimal // rate_override: replaces penalty rule rate
	DailyAmount        *Money          // rate_override: replaces daily amount if set
	FormCode           string          // form_override
	Requirement        string          // additional_requirement
	Reason             string          // exemption rationale, carried into the entry
}

// InEffect reports whether the override applies at asOf.
func (r JurisdictionRule) InEffect(asOf TimePoint) bool {
	if asOf.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveUntil == nil || asOf.BeforeOrEqual(*r.EffectiveUntil)
}

// =============================================================================
// PRECEDENCE COMPARATOR
// =============================================================================

// CompareOverrides is THE precedence function: negative means a wins over b.
// Order: priority desc, jurisdiction level desc, effectiveFrom desc.
// Returns 0 only on a full tie, which callers must treat as ambiguity.
func CompareOverrides(a, b JurisdictionRule, levelOf func(JurisdictionID) JurisdictionLevel) int {
	if a.Priority != b.Priority {
		if a.Priority > b.Priority {
			return -1
		}
		return 1
	}
	la, lb := levelOf(a.JurisdictionID), levelOf(b.JurisdictionID)
	if la != lb {
		if la > lb {
			return -1
		}
		return 1
	}
	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		if a.EffectiveFrom.After(b.EffectiveFrom) {
			return -1
		}
		return 1
	}
	return 0
}

// =============================================================================
// EFFECTIVE RULE - Fully resolved configuration for one entity
// =============================================================================

type EffectiveRule struct {
	Formula  DeadlineFormula
	Penalty  PenaltyRule
	FormCode string

	Exempt          bool
	ExemptionRuleID RuleID
	ExemptionReason string

	AdditionalRequirements []string
	AppliedOverrides       []RuleID
}

// =============================================================================
// RULE RESOLVER
// =============================================================================

// OverrideProvider supplies the override rows for a set of jurisdictions.
type OverrideProvider interface {
	OverridesFor(ctx context.Context, jurisdictionIDs []JurisdictionID, blueprintID BlueprintID) ([]JurisdictionRule, error)
}

// RuleResolver produces effective rules by applying jurisdiction overrides.
type RuleResolver struct {
	Overrides     OverrideProvider
	Jurisdictions JurisdictionProvider
}

// EffectiveRule resolves the rule for one entity at asOfDate.
//
// Candidates: overrides on the entity's jurisdiction or any ancestor,
// whose effective window contains asOfDate, and whose predicate matches the
// entity. Winners apply cumulatively in precedence order; an exemption
// short-circuits.
func (rr *RuleResolver) EffectiveRule(ctx context.Context, blueprint Blueprint, entity Entity, asOf TimePoint) (EffectiveRule, error) {
	formula, err := blueprint.FormulaAt(asOf)
	if err != nil {
		return EffectiveRule{}, err
	}
	penalty, err := blueprint.PenaltyAt(asOf)
	if err != nil {
		return EffectiveRule{}, err
	}

	effective := EffectiveRule{
		Formula:  formula,
		Penalty:  penalty,
		FormCode: blueprint.FormCode,
	}

	entityJurisdiction, err := rr.Jurisdictions.Jurisdiction(ctx, entity.JurisdictionID)
	if err != nil {
		return EffectiveRule{}, err
	}

	levels := map[JurisdictionID]JurisdictionLevel{entityJurisdiction.ID: entityJurisdiction.Level}
	path := []JurisdictionID{entityJurisdiction.ID}
	current := entityJurisdiction
	for current.ParentID != "" {
		parent, err := rr.Jurisdictions.Jurisdiction(ctx, current.ParentID)
		if err != nil {
			return EffectiveRule{}, err
		}
		path = append(path, parent.ID)
		levels[parent.ID] = parent.Level
		current = parent
	}

	rows, err := rr.Overrides.OverridesFor(ctx, path, blueprint.ID)
	if err != nil {
		return EffectiveRule{}, err
	}

	var candidates []JurisdictionRule
	for _, r := range rows {
		if !r.InEffect(asOf) {
			continue
		}
		if !r.AppliesWhen.Matches(entity) {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return effective, nil
	}

	levelOf := func(id JurisdictionID) JurisdictionLevel { return levels[id] }
	sort.SliceStable(candidates, func(i, j int) bool {
		return CompareOverrides(candidates[i], candidates[j], levelOf) < 0
	})

	// Exemption check first: the highest-priority exemption wins and
	// short-circuits everything else.
	var exemptions []JurisdictionRule
	for _, c := range candidates {
		if c.Type == OverrideExemption {
			exemptions = append(exemptions, c)
		}
	}
	if len(exemptions) > 0 {
		if len(exemptions) > 1 && CompareOverrides(exemptions[0], exemptions[1], levelOf) == 0 {
			return EffectiveRule{}, &AmbiguousOverrideError{RuleA: exemptions[0].ID, RuleB: exemptions[1].ID}
		}
		effective.Exempt = true
		effective.ExemptionRuleID = exemptions[0].ID
		effective.ExemptionReason = exemptions[0].Reason
		effective.AppliedOverrides = []RuleID{exemptions[0].ID}
		return effective, nil
	}

	// Apply non-exemption overrides cumulatively, strongest last so the
	// strongest value lands. Per override type only the winner counts, so
	// walk weakest-to-strongest and let later writes overwrite.
	applied := make([]RuleID, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		switch c.Type {
		case OverrideDeadline:
			effective.Formula.OffsetDays = formula.OffsetDays + c.OffsetDaysDelta
		case OverrideRate:
			if !c.InterestRateAnnual.IsZero() {
				effective.Penalty.InterestRateAnnual = c.InterestRateAnnual
			}
			if c.DailyAmount != nil {
				effective.Penalty.DailyAmount = *c.DailyAmount
			}
		case OverrideForm:
			effective.FormCode = c.FormCode
		case OverrideAdditionalRequirement:
			effective.AdditionalRequirements = append(effective.AdditionalRequirements, c.Requirement)
		}
		applied = append(applied, c.ID)
	}
	effective.AppliedOverrides = applied
	return effective, nil
}
