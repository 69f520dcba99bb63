// Package store provides in-memory implementations of the engine's
// persistence interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/compliance-engine/engine"
)

// =============================================================================
// MEMORY STORE - Implements every engine interface behind one mutex
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	jurisdictions map[engine.JurisdictionID]engine.Jurisdiction
	calendars     map[calendarKey]engine.HolidayCalendar
	blueprints    map[engine.BlueprintID]engine.Blueprint
	entities      map[engine.EntityID]engine.Entity
	overrides     []engine.JurisdictionRule
	entries       map[engine.EntryID]engine.CalendarEntry
}

type calendarKey struct {
	JurisdictionID engine.JurisdictionID
	Year           int
}

func NewMemory() *Memory {
	return &Memory{
		jurisdictions: make(map[engine.JurisdictionID]engine.Jurisdiction),
		calendars:     make(map[calendarKey]engine.HolidayCalendar),
		blueprints:    make(map[engine.BlueprintID]engine.Blueprint),
		entities:      make(map[engine.EntityID]engine.Entity),
		entries:       make(map[engine.EntryID]engine.CalendarEntry),
	}
}

// Stores bundles the memory store into the generator's dependency set.
func (m *Memory) Stores() engine.RuleStores {
	return engine.RuleStores{
		Entries:       m,
		Entities:      m,
		Blueprints:    m,
		Holidays:      m,
		Jurisdictions: m,
		Overrides:     m,
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) PutJurisdiction(j engine.Jurisdiction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jurisdictions[j.ID] = j
}

func (m *Memory) PutCalendar(c engine.HolidayCalendar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calendars[calendarKey{c.JurisdictionID, c.Year}] = c
}

func (m *Memory) PutBlueprint(b engine.Blueprint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blueprints[b.ID] = b
}

func (m *Memory) PutEntity(e engine.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.ID] = e
}

func (m *Memory) PutOverride(r engine.JurisdictionRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = append(m.overrides, r)
}

// =============================================================================
// PROVIDERS
// =============================================================================

func (m *Memory) Jurisdiction(_ context.Context, id engine.JurisdictionID) (engine.Jurisdiction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jurisdictions[id]
	if !ok {
		return engine.Jurisdiction{}, engine.ErrJurisdictionNotFound
	}
	return j, nil
}

func (m *Memory) CalendarFor(_ context.Context, id engine.JurisdictionID, year int) (engine.HolidayCalendar, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.calendars[calendarKey{id, year}]
	return c, ok, nil
}

func (m *Memory) Blueprint(_ context.Context, id engine.BlueprintID) (engine.Blueprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blueprints[id]
	if !ok {
		return engine.Blueprint{}, engine.ErrBlueprintNotFound
	}
	return b, nil
}

func (m *Memory) ListBlueprints(_ context.Context) ([]engine.Blueprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Blueprint, 0, len(m.blueprints))
	for _, b := range m.blueprints {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Entity(_ context.Context, id engine.EntityID) (engine.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return engine.Entity{}, engine.ErrEntityNotFound
	}
	return e, nil
}

func (m *Memory) ListEntities(_ context.Context) ([]engine.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) OverridesFor(_ context.Context, ids []engine.JurisdictionID, blueprintID engine.BlueprintID) ([]engine.JurisdictionRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inPath := make(map[engine.JurisdictionID]bool, len(ids))
	for _, id := range ids {
		inPath[id] = true
	}

	var out []engine.JurisdictionRule
	for _, r := range m.overrides {
		if !inPath[r.JurisdictionID] {
			continue
		}
		if r.BlueprintID != "" && r.BlueprintID != blueprintID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// =============================================================================
// ENTRY STORE - Optimistic versioning, no Delete
// =============================================================================

func (m *Memory) CreateEntry(_ context.Context, entry engine.CalendarEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.Version == 0 {
		entry.Version = 1
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id engine.EntryID) (engine.CalendarEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return engine.CalendarEntry{}, engine.ErrEntryNotFound
	}
	return e, nil
}

func (m *Memory) UpdateEntry(_ context.Context, entry engine.CalendarEntry, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.entries[entry.ID]
	if !ok {
		return engine.ErrEntryNotFound
	}
	if current.Version != expectedVersion {
		return &engine.ConcurrencyConflictError{EntryID: entry.ID, ExpectedVersion: expectedVersion}
	}
	entry.Version = expectedVersion + 1
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) FindByPeriod(_ context.Context, entityID engine.EntityID, blueprintID engine.BlueprintID, periodStart engine.TimePoint) (engine.CalendarEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest engine.CalendarEntry
	found := false
	for _, e := range m.entries {
		if e.EntityID != entityID || e.BlueprintID != blueprintID {
			continue
		}
		if !e.PeriodStart.SameDay(periodStart) {
			continue
		}
		if !found || e.EntryVersion > latest.EntryVersion {
			latest = e
			found = true
		}
	}
	return latest, found, nil
}

func (m *Memory) ListEntries(_ context.Context, filter engine.EntryFilter) ([]engine.CalendarEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.CalendarEntry
	for _, e := range m.entries {
		if filter.ClientID != "" && e.ClientID != filter.ClientID {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if filter.BlueprintID != "" && e.BlueprintID != filter.BlueprintID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.From != nil && e.PeriodEnd.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.PeriodStart.After(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AdjustedDueDate.Equal(out[j].AdjustedDueDate) {
			return out[i].AdjustedDueDate.Before(out[j].AdjustedDueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ListNonTerminal(_ context.Context) ([]engine.CalendarEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.CalendarEntry
	for _, e := range m.entries {
		if !e.Status.IsTerminal() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
