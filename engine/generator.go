/*
generator.go - Compliance calendar generator and re-evaluation pass

PURPOSE:
  Orchestrates the engine: resolves the effective rule, derives the due
  date, materializes one calendar entry per (client, obligation, period),
  and advances entry status as time passes. The generator exclusively
  creates and transitions entries; external consumers only mark entries
  filed through FileCompliance, so penalty recomputation and the state
  machine stay internally consistent.

BATCH MODEL:
  RunPass is batch-oriented: (1) generate missing entries, (2) re-evaluate
  every non-terminal entry. Each entry's recomputation is a pure function
  of (entry, now, rules) with no cross-entry dependency, so re-evaluation
  parallelizes across a worker pool. Cancellation is cooperative (context
  checked between entries). Recomputation is idempotent, so the retry
  policy for a failed pass is "retry the batch", not "resume from a
  checkpoint".

ISOLATION:
  One entry's failure never aborts the batch. Deferred entries (missing
  predecessor) are retried on the next pass. Liability computation errors
  leave the last known value in place with a stale flag, never a silent
  zero.

SEE ALSO:
  - entry.go: Transition table and NextStatus
  - override.go: Effective rule resolution
  - penalty.go: Liability recomputation
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// =============================================================================
// GENERATOR
// =============================================================================

type Generator struct {
	Stores    RuleStores
	Rules     *RuleResolver
	Formulas  *FormulaResolver
	Penalties *PenaltyCalculator
	Reminders *ReminderHook
	Events    EventSink
	Status    StatusConfig

	// Clock is injectable for tests; defaults to Now.
	Clock func() TimePoint

	// Workers sizes the re-evaluation pool (default 4).
	Workers int

	Warn WarnFunc
}

func NewGenerator(stores RuleStores, events EventSink, warn WarnFunc) *Generator {
	calendar := NewCalendarResolver(stores.Holidays, stores.Jurisdictions, warn)
	return &Generator{
		Stores:    stores,
		Rules:     &RuleResolver{Overrides: stores.Overrides, Jurisdictions: stores.Jurisdictions},
		Formulas:  &FormulaResolver{Calendar: calendar},
		Penalties: &PenaltyCalculator{},
		Reminders: NewReminderHook(events),
		Events:    events,
		Status:    DefaultStatusConfig(),
		Clock:     Now,
		Workers:   4,
		Warn:      warn,
	}
}

func (g *Generator) now() TimePoint {
	if g.Clock != nil {
		return g.Clock()
	}
	return Now()
}

func (g *Generator) warnf(format string, args ...any) {
	if g.Warn != nil {
		g.Warn(format, args...)
	}
}

// =============================================================================
// GENERATION - One entry per (client, blueprint, period), idempotent
// =============================================================================

// GenerateEntry materializes the entry for (entity, blueprint, period).
// Regenerating an existing entry is a no-op unless the underlying rule
// version changed, in which case the stale version is marked SUPERSEDED
// and a new entry version is created; filed history is never mutated.
func (g *Generator) GenerateEntry(ctx context.Context, entity Entity, blueprint Blueprint, period Period) (CalendarEntry, bool, error) {
	now := g.now()

	existing, found, err := g.Stores.Entries.FindByPeriod(ctx, entity.ID, blueprint.ID, period.Start)
	if err != nil {
		return CalendarEntry{}, false, err
	}

	entry := CalendarEntry{
		ID:          EntryID(uuid.NewString()),
		ClientID:    entity.ClientID,
		EntityID:    entity.ID,
		BlueprintID: blueprint.ID,
		PeriodType:  blueprint.PeriodConfig.Type,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		FiscalYear:  blueprint.PeriodConfig.FiscalYearLabel(period),
		FormCode:    blueprint.FormCode,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if !blueprint.AppliesTo(entity) {
		if found {
			return existing, false, nil
		}
		entry.Status = StatusNotApplicable
		if err := g.Stores.Entries.CreateEntry(ctx, entry); err != nil {
			return CalendarEntry{}, false, err
		}
		return entry, true, nil
	}

	effective, err := g.Rules.EffectiveRule(ctx, blueprint, entity, now)
	if err != nil {
		return CalendarEntry{}, false, err
	}

	if found {
		if existing.FormulaVersion == effective.Formula.Version &&
			existing.PenaltyVersion == effective.Penalty.Version {
			return existing, false, nil // idempotent no-op
		}
		// Rule changed: retire the stale version, then create its
		// successor. Retiring first is self-healing: if the create
		// fails, the next pass finds the retired row and retries.
		entry.EntryVersion = existing.EntryVersion + 1
		if err := g.supersede(ctx, existing, now); err != nil {
			return CalendarEntry{}, false, err
		}
	}

	entry.FormulaVersion = effective.Formula.Version
	entry.PenaltyVersion = effective.Penalty.Version
	entry.FormCode = effective.FormCode
	entry.Requirements = effective.AdditionalRequirements

	if effective.Exempt {
		// Exemption skips deadline and penalty computation entirely.
		entry.Status = StatusExempted
		entry.ExemptionReason = effective.ExemptionReason
		if err := g.Stores.Entries.CreateEntry(ctx, entry); err != nil {
			return CalendarEntry{}, false, err
		}
		return entry, true, nil
	}

	baseDate, err := g.baseDateFor(ctx, effective.Formula, entity, blueprint, period)
	if err != nil {
		return CalendarEntry{}, false, err
	}

	due, err := g.Formulas.Resolve(ctx, effective.Formula, baseDate, entity.JurisdictionID)
	if err != nil {
		return CalendarEntry{}, false, err
	}

	entry.OriginalDueDate = due.Nominal
	entry.AdjustedDueDate = due.Adjusted
	entry.Status = StatusUpcoming
	entry.Status = NextStatus(g.Status, entry, now)
	entry.PenaltyAmount = ZeroMoney()
	entry.InterestAmount = ZeroMoney()
	entry.TotalLiability = ZeroMoney()

	if err := g.Stores.Entries.CreateEntry(ctx, entry); err != nil {
		return CalendarEntry{}, false, err
	}
	return entry, true, nil
}

// supersede retires a stale entry version from the active set. The row
// stays for retention; re-evaluation and reminders skip it from here on.
func (g *Generator) supersede(ctx context.Context, old CalendarEntry, now TimePoint) error {
	if old.Status.IsTerminal() {
		return nil
	}
	prev := old.Status
	old.Status = StatusSuperseded
	old.UpdatedAt = now
	if err := g.Stores.Entries.UpdateEntry(ctx, old, old.Version); err != nil {
		return err
	}
	old.Version++

	e := NewEvent(EventStatusChanged, old, now)
	e.OldStatus = prev
	return g.Events.Emit(ctx, e)
}

func (g *Generator) baseDateFor(ctx context.Context, formula DeadlineFormula, entity Entity, blueprint Blueprint, period Period) (TimePoint, error) {
	bctx := BaseDateContext{
		Period:          period,
		FiscalYearStart: int(blueprint.PeriodConfig.FiscalYearStartMonth),
		Entity:          entity,
	}

	if formula.BaseDateType == BasePreviousFilingDate {
		prevPeriod := blueprint.PeriodConfig.PreviousPeriod(period)
		prev, found, err := g.Stores.Entries.FindByPeriod(ctx, entity.ID, blueprint.ID, prevPeriod.Start)
		if err != nil {
			return TimePoint{}, err
		}
		if found {
			bctx.PreviousEntry = &prev
		}
	}

	base, err := BaseDate(formula, bctx)
	if err != nil {
		var mpe *MissingPredecessorError
		if errors.As(err, &mpe) {
			mpe.BlueprintID = blueprint.ID
		}
		return TimePoint{}, err
	}
	return base, nil
}

// =============================================================================
// RE-EVALUATION - Idempotent status and liability recomputation
// =============================================================================

// Reevaluate recomputes one entry's status and liability at 'now' and
// persists it under an optimistic version check. Pure recomputation: the
// same entry at the same time always produces the same result.
func (g *Generator) Reevaluate(ctx context.Context, entry CalendarEntry) (CalendarEntry, bool, error) {
	if entry.Status.IsTerminal() {
		return entry, false, nil
	}

	now := g.now()
	before := entry

	newStatus := NextStatus(g.Status, entry, now)
	statusChanged := newStatus != entry.Status
	if statusChanged && !entry.Status.CanTransition(newStatus) {
		return entry, false, &ConfigurationError{
			Subject: "state machine",
			Detail:  fmt.Sprintf("illegal transition %s -> %s for entry %s", entry.Status, newStatus, entry.ID),
		}
	}
	entry.Status = newStatus

	liabilityChanged := false
	if entry.Status == StatusOverdue {
		entry.DaysOverdue = DaysOverdueAt(entry, now)
		liability, err := g.recomputeLiability(ctx, &entry)
		if err != nil {
			// Keep last known liability, flag it, keep the pass going.
			entry.LiabilityStale = true
			g.warnf("[Pass] liability recompute failed for entry %s: %v", entry.ID, err)
		} else {
			entry.LiabilityStale = false
			liabilityChanged = !liability.Total.Equal(before.TotalLiability)
			entry.PenaltyAmount = liability.Penalty
			entry.InterestAmount = liability.Interest
			entry.TotalLiability = liability.Total
		}
	}

	blueprint, err := g.Stores.Blueprints.Blueprint(ctx, entry.BlueprintID)
	if err != nil {
		return entry, false, err
	}
	offsets := g.Reminders.DueOffsets(blueprint, entry, now)
	if len(offsets) > 0 {
		if err := g.Reminders.Emit(ctx, &entry, offsets, now); err != nil {
			return entry, false, err
		}
	}

	changed := statusChanged || liabilityChanged || len(offsets) > 0 ||
		entry.DaysOverdue != before.DaysOverdue || entry.LiabilityStale != before.LiabilityStale
	if !changed {
		return entry, false, nil
	}

	entry.UpdatedAt = now
	if err := g.Stores.Entries.UpdateEntry(ctx, entry, before.Version); err != nil {
		return entry, false, err
	}
	entry.Version = before.Version + 1

	if statusChanged {
		e := NewEvent(EventStatusChanged, entry, now)
		e.OldStatus = before.Status
		if err := g.Events.Emit(ctx, e); err != nil {
			return entry, false, err
		}
	}
	if liabilityChanged {
		e := NewEvent(EventPenaltyAccrued, entry, now)
		e.OldStatus = before.Status
		if err := g.Events.Emit(ctx, e); err != nil {
			return entry, false, err
		}
	}
	return entry, true, nil
}

// recomputeLiability resolves the rule versions that applied at the entry's
// generation time (regulatory history stays reproducible) and recomputes
// the full liability from scratch. Overwrite, not accumulate: correctness
// survives skipped or delayed ticks.
func (g *Generator) recomputeLiability(ctx context.Context, entry *CalendarEntry) (Liability, error) {
	blueprint, err := g.Stores.Blueprints.Blueprint(ctx, entry.BlueprintID)
	if err != nil {
		return Liability{}, err
	}
	entity, err := g.Stores.Entities.Entity(ctx, entry.EntityID)
	if err != nil {
		return Liability{}, err
	}

	effective, err := g.Rules.EffectiveRule(ctx, blueprint, entity, entry.CreatedAt)
	if err != nil {
		return Liability{}, err
	}

	unpaidTax := entry.TaxLiability.Sub(entry.TaxPaid).Max(ZeroMoney())
	return g.Penalties.ComputeLiability(effective.Penalty, entry.DaysOverdue, unpaidTax)
}

// =============================================================================
// FILING - The only externally callable mutator besides generation
// =============================================================================

// FileCompliance marks an entry filed. DaysOverdue and liability are frozen
// at the values computed at the filing moment and never recomputed after.
func (g *Generator) FileCompliance(ctx context.Context, entryID EntryID, filedDate TimePoint, reference string) (CalendarEntry, error) {
	entry, err := g.Stores.Entries.GetEntry(ctx, entryID)
	if err != nil {
		return CalendarEntry{}, err
	}
	if entry.Status == StatusCompleted {
		return CalendarEntry{}, ErrAlreadyFiled
	}
	if entry.Status.IsTerminal() {
		return CalendarEntry{}, fmt.Errorf("entry %s is %s: %w", entryID, entry.Status, ErrAlreadyFiled)
	}

	before := entry
	entry.DaysOverdue = DaysOverdueAt(entry, filedDate)
	liability, err := g.recomputeLiability(ctx, &entry)
	if err != nil {
		entry.LiabilityStale = true
		g.warnf("[File] liability freeze failed for entry %s: %v", entry.ID, err)
	} else {
		entry.PenaltyAmount = liability.Penalty
		entry.InterestAmount = liability.Interest
		entry.TotalLiability = liability.Total
	}

	filed := filedDate
	entry.FiledDate = &filed
	entry.FilingReference = reference
	entry.Status = StatusCompleted
	entry.UpdatedAt = g.now()

	if err := g.Stores.Entries.UpdateEntry(ctx, entry, before.Version); err != nil {
		return CalendarEntry{}, err
	}
	entry.Version = before.Version + 1

	e := NewEvent(EventEntryFiled, entry, g.now())
	e.OldStatus = before.Status
	if err := g.Events.Emit(ctx, e); err != nil {
		return CalendarEntry{}, err
	}
	return entry, nil
}

// GetCalendarEntries returns entries for dashboards.
func (g *Generator) GetCalendarEntries(ctx context.Context, filter EntryFilter) ([]CalendarEntry, error) {
	return g.Stores.Entries.ListEntries(ctx, filter)
}

// =============================================================================
// PASS - Batch generation + re-evaluation with a worker pool
// =============================================================================

// PassReport summarizes one pass.
type PassReport struct {
	Generated   int
	Reevaluated int
	Changed     int
	Deferred    int
	Failed      int
	Errors      []string
}

// RunPass generates missing entries for the current and immediately
// preceding period of every (entity, blueprint) pairing, then re-evaluates
// all non-terminal entries in parallel. Covering the previous period means
// a period that elapsed entirely between passes is still backfilled.
// Errors are isolated per entry; the pass always continues.
func (g *Generator) RunPass(ctx context.Context) (PassReport, error) {
	var report PassReport
	now := g.now()

	entities, err := g.Stores.Entities.ListEntities(ctx)
	if err != nil {
		return report, err
	}
	blueprints, err := g.Stores.Blueprints.ListBlueprints(ctx)
	if err != nil {
		return report, err
	}

	// Stage 1: generation (sequential; creation volume is small).
	for _, entity := range entities {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		for _, blueprint := range blueprints {
			for _, period := range g.periodsDue(blueprint, entity, now) {
				_, created, err := g.GenerateEntry(ctx, entity, blueprint, period)
				switch {
				case err == nil:
					if created {
						report.Generated++
					}
				case IsDeferrable(err):
					report.Deferred++
				default:
					report.Failed++
					report.Errors = append(report.Errors, fmt.Sprintf("generate %s/%s: %v", entity.ID, blueprint.ID, err))
				}
			}
		}
	}

	return g.reevaluatePending(ctx, report)
}

// periodsDue returns the periods generation covers at 'now': the current
// period plus the previous one, so an outage spanning a whole period still
// gets its entry on the next pass. Periods that predate the entity's
// registration are skipped.
func (g *Generator) periodsDue(blueprint Blueprint, entity Entity, now TimePoint) []Period {
	current := blueprint.PeriodConfig.PeriodFor(now.Date())
	if blueprint.PeriodConfig.Type == PeriodOneTime {
		return []Period{current}
	}
	previous := blueprint.PeriodConfig.PreviousPeriod(current)
	if previous.End.Before(entity.RegistrationDate) {
		return []Period{current}
	}
	return []Period{previous, current}
}

func (g *Generator) reevaluatePending(ctx context.Context, report PassReport) (PassReport, error) {
	// Stage 2: re-evaluation across the worker pool.
	pending, err := g.Stores.Entries.ListNonTerminal(ctx)
	if err != nil {
		return report, err
	}

	workers := g.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan CalendarEntry)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				_, changed, err := g.Reevaluate(ctx, entry)
				mu.Lock()
				report.Reevaluated++
				if err != nil {
					report.Failed++
					report.Errors = append(report.Errors, fmt.Sprintf("reevaluate %s: %v", entry.ID, err))
				} else if changed {
					report.Changed++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, entry := range pending {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- entry:
		}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}
