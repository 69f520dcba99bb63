/*
store.go - Persistence interfaces for the engine

PURPOSE:
  Defines the interface between the engine and the database. Entries are
  the only shared mutable resource; every write goes through an optimistic
  version check so a manual "mark filed" racing a scheduled pass cannot
  lose updates.

RETENTION CONTRACT:
  EntryStore has no Delete. Entries are only ever marked COMPLETED /
  EXEMPTED / NOT_APPLICABLE / SUPERSEDED (legal retention requirement).
  Rule data (formulas, penalty rules, overrides) is versioned and
  append-only.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - engine/store: In-memory for tests

SEE ALSO:
  - generator.go: The only writer of entries
*/
package engine

import "context"

// =============================================================================
// ENTRY STORE - Optimistically versioned entry persistence (no Delete)
// =============================================================================

// EntryFilter narrows ListEntries. Zero values mean "any".
type EntryFilter struct {
	ClientID    ClientID
	EntityID    EntityID
	BlueprintID BlueprintID
	Status      EntryStatus
	From        *TimePoint // period overlap range
	To          *TimePoint
}

type EntryStore interface {
	// CreateEntry persists a new entry at version 1.
	CreateEntry(ctx context.Context, entry CalendarEntry) error

	// GetEntry returns one entry or ErrEntryNotFound.
	GetEntry(ctx context.Context, id EntryID) (CalendarEntry, error)

	// UpdateEntry writes the entry iff the stored version equals
	// expectedVersion, then bumps it. Mismatch returns
	// ConcurrencyConflictError.
	UpdateEntry(ctx context.Context, entry CalendarEntry, expectedVersion int) error

	// FindByPeriod returns the latest entry version for
	// (entity, blueprint, period start), if any. Used for idempotent
	// generation and predecessor lookups.
	FindByPeriod(ctx context.Context, entityID EntityID, blueprintID BlueprintID, periodStart TimePoint) (CalendarEntry, bool, error)

	// ListEntries returns entries matching the filter, ordered by
	// adjusted due date ascending.
	ListEntries(ctx context.Context, filter EntryFilter) ([]CalendarEntry, error)

	// ListNonTerminal returns every entry still subject to re-evaluation.
	ListNonTerminal(ctx context.Context) ([]CalendarEntry, error)
}

// =============================================================================
// READ-ONLY LOOKUPS
// =============================================================================

// EntityProvider supplies business entities (read-only external data).
type EntityProvider interface {
	Entity(ctx context.Context, id EntityID) (Entity, error)
	ListEntities(ctx context.Context) ([]Entity, error)
}

// BlueprintProvider supplies obligation blueprints.
type BlueprintProvider interface {
	Blueprint(ctx context.Context, id BlueprintID) (Blueprint, error)
	ListBlueprints(ctx context.Context) ([]Blueprint, error)
}

// RuleStores bundles every lookup the generator needs.
// HolidayProvider, JurisdictionProvider and OverrideProvider are defined
// next to their consumers (calendar.go, override.go).
type RuleStores struct {
	Entries       EntryStore
	Entities      EntityProvider
	Blueprints    BlueprintProvider
	Holidays      HolidayProvider
	Jurisdictions JurisdictionProvider
	Overrides     OverrideProvider
}
