package engine

// =============================================================================
// BLUEPRINT - Reusable obligation definition
// =============================================================================

// Blueprint defines what must be filed: the reporting cadence, the deadline
// formula, the penalty schedule, and which entity types it applies to.
// Formula and penalty versions are append-only; resolution picks the version
// in effect at the entry's generation time.
type Blueprint struct {
	ID   BlueprintID
	Code string // statutory form family, e.g. "VAT-R1"
	Name string

	PeriodConfig PeriodConfig
	FormCode     string

	// Versioned rule history, ordered by EffectiveFrom ascending.
	Formulas  []DeadlineFormula
	Penalties []PenaltyRule

	// ApplicableEntityTypes limits which entities get entries.
	// Empty = applies to all.
	ApplicableEntityTypes []EntityType

	// ReminderOffsets are days-before-due that trigger reminder events.
	ReminderOffsets []int
}

// AppliesTo reports whether the blueprint covers the entity's type.
func (b Blueprint) AppliesTo(e Entity) bool {
	if len(b.ApplicableEntityTypes) == 0 {
		return true
	}
	for _, t := range b.ApplicableEntityTypes {
		if t == e.Type {
			return true
		}
	}
	return false
}

// FormulaAt returns the formula version in effect at asOf.
// Historical entries resolve against the version that applied when they
// were generated, never the current one.
func (b Blueprint) FormulaAt(asOf TimePoint) (DeadlineFormula, error) {
	var found *DeadlineFormula
	for i := range b.Formulas {
		if b.Formulas[i].InEffect(asOf) {
			found = &b.Formulas[i]
		}
	}
	if found == nil {
		return DeadlineFormula{}, &ConfigurationError{
			Subject: "blueprint " + string(b.ID),
			Detail:  "no deadline formula in effect at " + asOf.String(),
		}
	}
	return *found, nil
}

// PenaltyAt returns the penalty rule version in effect at asOf.
func (b Blueprint) PenaltyAt(asOf TimePoint) (PenaltyRule, error) {
	var found *PenaltyRule
	for i := range b.Penalties {
		if b.Penalties[i].InEffect(asOf) {
			found = &b.Penalties[i]
		}
	}
	if found == nil {
		return PenaltyRule{}, &ConfigurationError{
			Subject: "blueprint " + string(b.ID),
			Detail:  "no penalty rule in effect at " + asOf.String(),
		}
	}
	return *found, nil
}
