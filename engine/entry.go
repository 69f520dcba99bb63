/*
entry.go - Calendar entry and lifecycle state machine

PURPOSE:
  A CalendarEntry is the materialized obligation instance: one row per
  (client, blueprint, period). The state machine is an explicit enum plus
  transition table; transitions are pure functions of (state, now, entry),
  never scattered conditional mutation of a status string.

LIFECYCLE:
  UPCOMING -> DUE_SOON -> DUE_TODAY -> OVERDUE -> {COMPLETED}
  COMPLETED can be reached from any non-terminal state via filing.
  EXEMPTED and NOT_APPLICABLE are assigned only at generation time.
  SUPERSEDED is assigned when a rule change replaces an entry with a
  new entry version; exactly one version per period stays active.
  Terminal states never transition further.

RETENTION:
  Entries are never deleted, only marked COMPLETED / EXEMPTED /
  NOT_APPLICABLE / SUPERSEDED. Rule changes create a new entry version
  and retire the old one rather than mutating filed history.

SEE ALSO:
  - generator.go: The only component that creates and transitions entries
*/
package engine

// =============================================================================
// ENTRY STATUS - Explicit state machine
// =============================================================================

type EntryStatus string

const (
	StatusUpcoming      EntryStatus = "UPCOMING"
	StatusDueSoon       EntryStatus = "DUE_SOON"
	StatusDueToday      EntryStatus = "DUE_TODAY"
	StatusOverdue       EntryStatus = "OVERDUE"
	StatusCompleted     EntryStatus = "COMPLETED"
	StatusExempted      EntryStatus = "EXEMPTED"
	StatusNotApplicable EntryStatus = "NOT_APPLICABLE"
	StatusSuperseded    EntryStatus = "SUPERSEDED"
)

// validTransitions is the full transition table. Anything not listed here
// is rejected; terminal states have no outgoing edges.
var validTransitions = map[EntryStatus][]EntryStatus{
	StatusUpcoming: {StatusDueSoon, StatusDueToday, StatusOverdue, StatusCompleted, StatusSuperseded},
	StatusDueSoon:  {StatusDueToday, StatusOverdue, StatusCompleted, StatusSuperseded},
	StatusDueToday: {StatusOverdue, StatusCompleted, StatusSuperseded},
	StatusOverdue:  {StatusCompleted, StatusSuperseded},
}

// IsTerminal reports whether no further transitions are allowed.
func (s EntryStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusExempted, StatusNotApplicable, StatusSuperseded:
		return true
	}
	return false
}

// CanTransition checks the transition table.
func (s EntryStatus) CanTransition(to EntryStatus) bool {
	for _, t := range validTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// =============================================================================
// CALENDAR ENTRY
// =============================================================================

// CalendarEntry is one materialized obligation instance.
type CalendarEntry struct {
	ID          EntryID
	ClientID    ClientID
	EntityID    EntityID
	BlueprintID BlueprintID

	// Rule provenance: which versions produced this entry.
	FormulaVersion int
	PenaltyVersion int
	EntryVersion   int // bumped when a rule change supersedes this entry

	PeriodType  PeriodType
	PeriodStart TimePoint
	PeriodEnd   TimePoint
	FiscalYear  string

	OriginalDueDate TimePoint // nominal
	AdjustedDueDate TimePoint
	ExtendedDueDate *TimePoint // statutory extension, if granted

	Status          EntryStatus
	ExemptionReason string
	FormCode        string
	Requirements    []string

	FiledDate       *TimePoint
	FilingReference string

	DaysOverdue    int
	PenaltyAmount  Money
	InterestAmount Money
	TotalLiability Money
	PenaltyPaid    Money
	TaxLiability   Money
	TaxPaid        Money

	// LiabilityStale flags an entry whose liability could not be
	// recomputed (malformed rule data); the amounts shown are the last
	// known good values.
	LiabilityStale bool

	// RemindersSent tracks which days-before-due offsets already fired.
	RemindersSent []int

	// Version is the optimistic concurrency token; every store write
	// checks and bumps it.
	Version   int
	CreatedAt TimePoint
	UpdatedAt TimePoint
}

// EffectiveDueDate returns the extended due date when one is granted,
// otherwise the adjusted due date.
func (e CalendarEntry) EffectiveDueDate() TimePoint {
	if e.ExtendedDueDate != nil {
		return *e.ExtendedDueDate
	}
	return e.AdjustedDueDate
}

// ReminderSent reports whether the given offset already fired.
func (e CalendarEntry) ReminderSent(offset int) bool {
	for _, o := range e.RemindersSent {
		if o == offset {
			return true
		}
	}
	return false
}

// =============================================================================
// STATUS EVALUATION - Pure function of (state, now, entry)
// =============================================================================

// StatusConfig holds the tunable thresholds of the state machine.
type StatusConfig struct {
	// DueSoonHours is the hours-remaining threshold for UPCOMING -> DUE_SOON.
	DueSoonHours float64
}

func DefaultStatusConfig() StatusConfig { return StatusConfig{DueSoonHours: 24} }

// NextStatus computes the status the entry should hold at 'now'.
// It never returns a terminal state: COMPLETED/EXEMPTED/NOT_APPLICABLE are
// assigned by filing and generation, not by the clock.
func NextStatus(cfg StatusConfig, entry CalendarEntry, now TimePoint) EntryStatus {
	if entry.Status.IsTerminal() {
		return entry.Status
	}

	due := entry.EffectiveDueDate()

	// Past end-of-day on the due date: overdue.
	if now.After(due.EndOfDay()) {
		return StatusOverdue
	}
	if now.SameDay(due) {
		return StatusDueToday
	}
	if HoursUntil(now, due.Date()) <= cfg.DueSoonHours {
		return StatusDueSoon
	}
	return StatusUpcoming
}

// DaysOverdueAt returns whole days past the effective due date, never negative.
func DaysOverdueAt(entry CalendarEntry, now TimePoint) int {
	d := DaysBetween(entry.EffectiveDueDate(), now)
	if d < 0 {
		return 0
	}
	return d
}
