/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the engine needs (EntryStore,
  EntityProvider, BlueprintProvider, HolidayProvider, JurisdictionProvider,
  OverrideProvider) using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  jurisdictions:      Regulatory hierarchy nodes with weekend config
  holidays:           One row per (jurisdiction, date) holiday
  blueprints:         Obligation blueprints stored as versioned config_json
  jurisdiction_rules: Override rows, payload as config_json
  entities:           Business entities with predicate attributes
  calendar_entries:   Materialized obligations; optimistic version column
  pass_runs:          Audit trail of evaluation passes

RETENTION:
  calendar_entries has no DELETE path. Entries only move to terminal
  statuses; rule changes insert a superseding row with a higher
  entry_version and retire the old row as SUPERSEDED.

OPTIMISTIC CONCURRENCY:
  UpdateEntry issues UPDATE ... WHERE id = ? AND version = ?. Zero rows
  affected means another writer got there first; the caller receives
  ConcurrencyConflictError and re-reads.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/compliance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  gen := engine.NewGenerator(store.Stores(), sink, log.Printf)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
  - factory/blueprint.go: Blueprint config_json codec
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/compliance-engine/engine"
	"github.com/warp/compliance-engine/factory"
)

const (
	dayLayout = "2006-01-02"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.BlueprintFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, factory: factory.NewBlueprintFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stores bundles this store into the generator's dependency set.
func (s *Store) Stores() engine.RuleStores {
	return engine.RuleStores{
		Entries:       s,
		Entities:      s,
		Blueprints:    s,
		Holidays:      s,
		Jurisdictions: s,
		Overrides:     s,
	}
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Jurisdictions (regulatory hierarchy)
	CREATE TABLE IF NOT EXISTS jurisdictions (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		level INTEGER NOT NULL,
		path TEXT NOT NULL,
		tax_code TEXT,
		weekend_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jurisdictions_parent
		ON jurisdictions(parent_id);

	-- Holidays (one row per jurisdiction-date)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		jurisdiction_id TEXT NOT NULL,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		holiday_type TEXT NOT NULL DEFAULT 'national',
		optional BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_jurisdiction_date
		ON holidays(jurisdiction_id, date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(jurisdiction_id, date, name);

	-- Calendar ingestion bookkeeping: which (jurisdiction, year) pairs have
	-- been loaded. Missing rows trigger the resolver's degraded fallback.
	CREATE TABLE IF NOT EXISTS holiday_calendars (
		jurisdiction_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		ingested_at TEXT NOT NULL,
		PRIMARY KEY (jurisdiction_id, year)
	);

	-- Blueprints (versioned formula+penalty history in config_json)
	CREATE TABLE IF NOT EXISTS blueprints (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_blueprints_code
		ON blueprints(code);

	-- Jurisdiction rules (overrides); payload kept whole in config_json,
	-- filter columns duplicated for querying
	CREATE TABLE IF NOT EXISTS jurisdiction_rules (
		id TEXT PRIMARY KEY,
		jurisdiction_id TEXT NOT NULL,
		blueprint_id TEXT NOT NULL DEFAULT '',
		rule_type TEXT NOT NULL,
		priority INTEGER DEFAULT 0,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_jurisdiction
		ON jurisdiction_rules(jurisdiction_id);
	CREATE INDEX IF NOT EXISTS idx_rules_blueprint
		ON jurisdiction_rules(blueprint_id);

	-- Entities
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		jurisdiction_id TEXT NOT NULL,
		turnover TEXT NOT NULL DEFAULT '0',
		registration_date TEXT NOT NULL,
		attributes_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entities_client
		ON entities(client_id);
	CREATE INDEX IF NOT EXISTS idx_entities_jurisdiction
		ON entities(jurisdiction_id);

	-- Calendar entries (no DELETE path; terminal statuses only)
	CREATE TABLE IF NOT EXISTS calendar_entries (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		blueprint_id TEXT NOT NULL,
		formula_version INTEGER NOT NULL,
		penalty_version INTEGER NOT NULL,
		entry_version INTEGER NOT NULL DEFAULT 1,
		period_type TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		fiscal_year TEXT,
		original_due_date TEXT NOT NULL,
		adjusted_due_date TEXT NOT NULL,
		extended_due_date TEXT,
		status TEXT NOT NULL,
		exemption_reason TEXT,
		form_code TEXT,
		requirements_json TEXT,
		filed_date TEXT,
		filing_reference TEXT,
		days_overdue INTEGER DEFAULT 0,
		penalty_amount TEXT NOT NULL DEFAULT '0',
		interest_amount TEXT NOT NULL DEFAULT '0',
		total_liability TEXT NOT NULL DEFAULT '0',
		penalty_paid TEXT NOT NULL DEFAULT '0',
		tax_liability TEXT NOT NULL DEFAULT '0',
		tax_paid TEXT NOT NULL DEFAULT '0',
		liability_stale BOOLEAN DEFAULT FALSE,
		reminders_sent_json TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_client
		ON calendar_entries(client_id);
	CREATE INDEX IF NOT EXISTS idx_entries_status
		ON calendar_entries(status);
	CREATE INDEX IF NOT EXISTS idx_entries_due
		ON calendar_entries(adjusted_due_date);

	-- Composite index for the idempotent generation lookup (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_entity_blueprint_period
		ON calendar_entries(entity_id, blueprint_id, period_start, entry_version DESC);

	-- Pass runs (audit trail of evaluation passes)
	CREATE TABLE IF NOT EXISTS pass_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		generated INTEGER DEFAULT 0,
		reevaluated INTEGER DEFAULT 0,
		changed INTEGER DEFAULT 0,
		deferred INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		errors_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pass_runs_started
		ON pass_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// JURISDICTION STORE (engine.JurisdictionProvider)
// =============================================================================

// SaveJurisdiction upserts a jurisdiction node.
func (s *Store) SaveJurisdiction(ctx context.Context, j engine.Jurisdiction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	weekendJSON, _ := json.Marshal(j.Weekend)

	query := `
		INSERT INTO jurisdictions (id, parent_id, code, name, level, path, tax_code, weekend_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			code = excluded.code,
			name = excluded.name,
			level = excluded.level,
			path = excluded.path,
			tax_code = excluded.tax_code,
			weekend_json = excluded.weekend_json
	`

	_, err := s.db.ExecContext(ctx, query,
		j.ID, j.ParentID, j.Code, j.Name, int(j.Level), j.Path, j.TaxCode,
		string(weekendJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Jurisdiction retrieves one node by ID.
func (s *Store) Jurisdiction(ctx context.Context, id engine.JurisdictionID) (engine.Jurisdiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, parent_id, code, name, level, path, tax_code, weekend_json FROM jurisdictions WHERE id = ?",
		id,
	)
	j, err := scanJurisdiction(row)
	if err == sql.ErrNoRows {
		return engine.Jurisdiction{}, engine.ErrJurisdictionNotFound
	}
	return j, err
}

// ListJurisdictions returns every node, parents before children.
func (s *Store) ListJurisdictions(ctx context.Context) ([]engine.Jurisdiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, parent_id, code, name, level, path, tax_code, weekend_json FROM jurisdictions ORDER BY level, code",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Jurisdiction
	for rows.Next() {
		j, err := scanJurisdiction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJurisdiction(row rowScanner) (engine.Jurisdiction, error) {
	var j engine.Jurisdiction
	var level int
	var taxCode, weekendJSON sql.NullString

	err := row.Scan(&j.ID, &j.ParentID, &j.Code, &j.Name, &level, &j.Path, &taxCode, &weekendJSON)
	if err != nil {
		return j, err
	}
	j.Level = engine.JurisdictionLevel(level)
	j.TaxCode = taxCode.String
	if weekendJSON.Valid && weekendJSON.String != "" {
		json.Unmarshal([]byte(weekendJSON.String), &j.Weekend)
	}
	return j, nil
}

// =============================================================================
// HOLIDAY STORE (engine.HolidayProvider)
// =============================================================================

// SaveCalendar ingests a full (jurisdiction, year) holiday calendar. The
// ingestion record marks the pair as loaded so the resolver stops falling
// back to weekends-only.
func (s *Store) SaveCalendar(ctx context.Context, cal engine.HolidayCalendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, h := range cal.Holidays {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO holidays (id, jurisdiction_id, date, name, holiday_type, optional, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(jurisdiction_id, date, name) DO UPDATE SET
				holiday_type = excluded.holiday_type,
				optional = excluded.optional
		`, h.ID, cal.JurisdictionID, h.Date.Time.Format(dayLayout), h.Name, h.Type, h.Optional, now)
		if err != nil {
			return fmt.Errorf("failed to save holiday %s: %w", h.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO holiday_calendars (jurisdiction_id, year, ingested_at)
		VALUES (?, ?, ?)
		ON CONFLICT(jurisdiction_id, year) DO UPDATE SET ingested_at = excluded.ingested_at
	`, cal.JurisdictionID, cal.Year, now)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CalendarFor loads the holidays for one (jurisdiction, year). The second
// return reports whether a calendar was ever ingested for the pair.
func (s *Store) CalendarFor(ctx context.Context, id engine.JurisdictionID, year int) (engine.HolidayCalendar, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ingested int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM holiday_calendars WHERE jurisdiction_id = ? AND year = ?",
		id, year,
	).Scan(&ingested)
	if err != nil {
		return engine.HolidayCalendar{}, false, err
	}
	if ingested == 0 {
		return engine.HolidayCalendar{}, false, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, name, holiday_type, optional
		FROM holidays
		WHERE jurisdiction_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, id, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		return engine.HolidayCalendar{}, false, err
	}
	defer rows.Close()

	cal := engine.HolidayCalendar{JurisdictionID: id, Year: year}
	for rows.Next() {
		var h engine.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &dateStr, &h.Name, &h.Type, &h.Optional); err != nil {
			return engine.HolidayCalendar{}, false, err
		}
		h.JurisdictionID = id
		h.Date = parseDay(dateStr)
		cal.Holidays = append(cal.Holidays, h)
	}
	return cal, true, rows.Err()
}

// =============================================================================
// BLUEPRINT STORE (engine.BlueprintProvider)
// =============================================================================

// SaveBlueprint upserts a blueprint, serialized through the factory codec.
func (s *Store) SaveBlueprint(ctx context.Context, b engine.Blueprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := s.factory.EncodeBlueprint(b)
	if err != nil {
		return fmt.Errorf("failed to encode blueprint %s: %w", b.ID, err)
	}

	query := `
		INSERT INTO blueprints (id, code, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			config_json = excluded.config_json,
			version = blueprints.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, query, b.ID, b.Code, b.Name, configJSON, now, now)
	return err
}

// Blueprint retrieves and decodes one blueprint.
func (s *Store) Blueprint(ctx context.Context, id engine.BlueprintID) (engine.Blueprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM blueprints WHERE id = ?", id,
	).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return engine.Blueprint{}, engine.ErrBlueprintNotFound
	}
	if err != nil {
		return engine.Blueprint{}, err
	}
	return s.factory.ParseBlueprint(configJSON)
}

// ListBlueprints returns all blueprints.
func (s *Store) ListBlueprints(ctx context.Context) ([]engine.Blueprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT config_json FROM blueprints ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Blueprint
	for rows.Next() {
		var configJSON string
		if err := rows.Scan(&configJSON); err != nil {
			return nil, err
		}
		b, err := s.factory.ParseBlueprint(configJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// =============================================================================
// OVERRIDE STORE (engine.OverrideProvider)
// =============================================================================

// SaveOverride upserts a jurisdiction rule. The whole rule rides in
// config_json; the filter columns are duplicated for the query path.
func (s *Store) SaveOverride(ctx context.Context, r engine.JurisdictionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode rule %s: %w", r.ID, err)
	}

	query := `
		INSERT INTO jurisdiction_rules (id, jurisdiction_id, blueprint_id, rule_type, priority, config_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			jurisdiction_id = excluded.jurisdiction_id,
			blueprint_id = excluded.blueprint_id,
			rule_type = excluded.rule_type,
			priority = excluded.priority,
			config_json = excluded.config_json
	`

	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.JurisdictionID, r.BlueprintID, r.Type, r.Priority,
		string(configJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// OverridesFor returns the override rows for the given jurisdiction path,
// scoped to the blueprint (plus rules that apply to every blueprint).
func (s *Store) OverridesFor(ctx context.Context, ids []engine.JurisdictionID, blueprintID engine.BlueprintID) ([]engine.JurisdictionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, blueprintID)

	// Deterministic candidate order: precedence sorting downstream is
	// stable, so row order must not depend on rowid.
	query := fmt.Sprintf(`
		SELECT config_json FROM jurisdiction_rules
		WHERE jurisdiction_id IN (%s)
		  AND (blueprint_id = '' OR blueprint_id = ?)
		ORDER BY id ASC
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.JurisdictionRule
	for rows.Next() {
		var configJSON string
		if err := rows.Scan(&configJSON); err != nil {
			return nil, err
		}
		var r engine.JurisdictionRule
		if err := json.Unmarshal([]byte(configJSON), &r); err != nil {
			return nil, fmt.Errorf("failed to decode rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// ENTITY STORE (engine.EntityProvider)
// =============================================================================

// SaveEntity upserts an entity.
func (s *Store) SaveEntity(ctx context.Context, e engine.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attributesJSON, _ := json.Marshal(e.Attributes)

	query := `
		INSERT INTO entities (id, client_id, name, entity_type, jurisdiction_id, turnover, registration_date, attributes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			name = excluded.name,
			entity_type = excluded.entity_type,
			jurisdiction_id = excluded.jurisdiction_id,
			turnover = excluded.turnover,
			registration_date = excluded.registration_date,
			attributes_json = excluded.attributes_json
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.ClientID, e.Name, e.Type, e.JurisdictionID,
		e.Turnover.Value.String(),
		e.RegistrationDate.Time.Format(dayLayout),
		string(attributesJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Entity retrieves one entity by ID.
func (s *Store) Entity(ctx context.Context, id engine.EntityID) (engine.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, client_id, name, entity_type, jurisdiction_id, turnover, registration_date, attributes_json FROM entities WHERE id = ?",
		id,
	)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return engine.Entity{}, engine.ErrEntityNotFound
	}
	return e, err
}

// ListEntities returns all entities.
func (s *Store) ListEntities(ctx context.Context) ([]engine.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, client_id, name, entity_type, jurisdiction_id, turnover, registration_date, attributes_json FROM entities ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntity(row rowScanner) (engine.Entity, error) {
	var e engine.Entity
	var turnover, registrationDate string
	var attributesJSON sql.NullString

	err := row.Scan(&e.ID, &e.ClientID, &e.Name, &e.Type, &e.JurisdictionID,
		&turnover, &registrationDate, &attributesJSON)
	if err != nil {
		return e, err
	}
	e.Turnover = engine.MustParseMoney(turnover)
	e.RegistrationDate = parseDay(registrationDate)
	if attributesJSON.Valid && attributesJSON.String != "" {
		json.Unmarshal([]byte(attributesJSON.String), &e.Attributes)
	}
	return e, nil
}

// =============================================================================
// ENTRY STORE (engine.EntryStore) - Optimistic versioning, no Delete
// =============================================================================

const entryColumns = `id, client_id, entity_id, blueprint_id,
	formula_version, penalty_version, entry_version,
	period_type, period_start, period_end, fiscal_year,
	original_due_date, adjusted_due_date, extended_due_date,
	status, exemption_reason, form_code, requirements_json,
	filed_date, filing_reference, days_overdue,
	penalty_amount, interest_amount, total_liability, penalty_paid,
	tax_liability, tax_paid, liability_stale, reminders_sent_json,
	version, created_at, updated_at`

// CreateEntry inserts a new calendar entry at version 1.
func (s *Store) CreateEntry(ctx context.Context, entry engine.CalendarEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Version == 0 {
		entry.Version = 1
	}

	query := `
		INSERT INTO calendar_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, entryArgs(entry)...)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", entry.ID, err)
	}
	return nil
}

// GetEntry retrieves an entry by ID.
func (s *Store) GetEntry(ctx context.Context, id engine.EntryID) (engine.CalendarEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM calendar_entries WHERE id = ?", id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return engine.CalendarEntry{}, engine.ErrEntryNotFound
	}
	return entry, err
}

// UpdateEntry writes the entry only if the stored version matches
// expectedVersion. The stored version is bumped on success.
func (s *Store) UpdateEntry(ctx context.Context, entry engine.CalendarEntry, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Version = expectedVersion + 1

	query := `
		UPDATE calendar_entries SET
			formula_version = ?, penalty_version = ?, entry_version = ?,
			original_due_date = ?, adjusted_due_date = ?, extended_due_date = ?,
			status = ?, exemption_reason = ?, form_code = ?, requirements_json = ?,
			filed_date = ?, filing_reference = ?, days_overdue = ?,
			penalty_amount = ?, interest_amount = ?, total_liability = ?, penalty_paid = ?,
			tax_liability = ?, tax_paid = ?, liability_stale = ?, reminders_sent_json = ?,
			version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	requirementsJSON, _ := json.Marshal(entry.Requirements)
	remindersJSON, _ := json.Marshal(entry.RemindersSent)

	res, err := s.db.ExecContext(ctx, query,
		entry.FormulaVersion, entry.PenaltyVersion, entry.EntryVersion,
		entry.OriginalDueDate.Time.Format(dayLayout),
		entry.AdjustedDueDate.Time.Format(dayLayout),
		nullDay(entry.ExtendedDueDate),
		entry.Status, entry.ExemptionReason, entry.FormCode, string(requirementsJSON),
		nullDay(entry.FiledDate), entry.FilingReference, entry.DaysOverdue,
		entry.PenaltyAmount.Value.String(),
		entry.InterestAmount.Value.String(),
		entry.TotalLiability.Value.String(),
		entry.PenaltyPaid.Value.String(),
		entry.TaxLiability.Value.String(),
		entry.TaxPaid.Value.String(),
		entry.LiabilityStale, string(remindersJSON),
		entry.Version,
		entry.UpdatedAt.Time.Format(time.RFC3339),
		entry.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry %s: %w", entry.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the entry is gone or another writer bumped the version.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM calendar_entries WHERE id = ?", entry.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return engine.ErrEntryNotFound
		}
		return &engine.ConcurrencyConflictError{EntryID: entry.ID, ExpectedVersion: expectedVersion}
	}
	return nil
}

// FindByPeriod returns the latest entry version for one
// (entity, blueprint, period start), if any.
func (s *Store) FindByPeriod(ctx context.Context, entityID engine.EntityID, blueprintID engine.BlueprintID, periodStart engine.TimePoint) (engine.CalendarEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM calendar_entries
		WHERE entity_id = ? AND blueprint_id = ? AND period_start = ?
		ORDER BY entry_version DESC
		LIMIT 1
	`, entityID, blueprintID, periodStart.Time.Format(dayLayout))

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return engine.CalendarEntry{}, false, nil
	}
	if err != nil {
		return engine.CalendarEntry{}, false, err
	}
	return entry, true, nil
}

// ListEntries returns entries matching the filter, ordered by due date.
func (s *Store) ListEntries(ctx context.Context, filter engine.EntryFilter) ([]engine.CalendarEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + entryColumns + " FROM calendar_entries WHERE 1=1"
	var args []any

	if filter.ClientID != "" {
		query += " AND client_id = ?"
		args = append(args, filter.ClientID)
	}
	if filter.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filter.EntityID)
	}
	if filter.BlueprintID != "" {
		query += " AND blueprint_id = ?"
		args = append(args, filter.BlueprintID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		query += " AND period_end >= ?"
		args = append(args, filter.From.Time.Format(dayLayout))
	}
	if filter.To != nil {
		query += " AND period_start <= ?"
		args = append(args, filter.To.Time.Format(dayLayout))
	}
	query += " ORDER BY adjusted_due_date ASC, id ASC"

	return s.queryEntries(ctx, query, args...)
}

// ListNonTerminal returns every entry still subject to evaluation.
func (s *Store) ListNonTerminal(ctx context.Context) ([]engine.CalendarEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + ` FROM calendar_entries
		WHERE status NOT IN (?, ?, ?, ?)
		ORDER BY id ASC
	`
	return s.queryEntries(ctx, query,
		engine.StatusCompleted, engine.StatusExempted, engine.StatusNotApplicable,
		engine.StatusSuperseded)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]engine.CalendarEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []engine.CalendarEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func entryArgs(entry engine.CalendarEntry) []any {
	requirementsJSON, _ := json.Marshal(entry.Requirements)
	remindersJSON, _ := json.Marshal(entry.RemindersSent)

	return []any{
		entry.ID, entry.ClientID, entry.EntityID, entry.BlueprintID,
		entry.FormulaVersion, entry.PenaltyVersion, entry.EntryVersion,
		entry.PeriodType,
		entry.PeriodStart.Time.Format(dayLayout),
		entry.PeriodEnd.Time.Format(dayLayout),
		entry.FiscalYear,
		entry.OriginalDueDate.Time.Format(dayLayout),
		entry.AdjustedDueDate.Time.Format(dayLayout),
		nullDay(entry.ExtendedDueDate),
		entry.Status, entry.ExemptionReason, entry.FormCode, string(requirementsJSON),
		nullDay(entry.FiledDate), entry.FilingReference, entry.DaysOverdue,
		entry.PenaltyAmount.Value.String(),
		entry.InterestAmount.Value.String(),
		entry.TotalLiability.Value.String(),
		entry.PenaltyPaid.Value.String(),
		entry.TaxLiability.Value.String(),
		entry.TaxPaid.Value.String(),
		entry.LiabilityStale, string(remindersJSON),
		entry.Version,
		entry.CreatedAt.Time.Format(time.RFC3339),
		entry.UpdatedAt.Time.Format(time.RFC3339),
	}
}

func scanEntry(row rowScanner) (engine.CalendarEntry, error) {
	var (
		entry                                    engine.CalendarEntry
		periodStart, periodEnd                   string
		originalDue, adjustedDue                 string
		extendedDue, filedDate                   sql.NullString
		fiscalYear, exemptionReason              sql.NullString
		formCode, filingReference                sql.NullString
		requirementsJSON, remindersJSON          sql.NullString
		penalty, interest, total, penaltyPaid    string
		taxLiability, taxPaid                    string
		createdAt, updatedAt                     string
	)

	err := row.Scan(
		&entry.ID, &entry.ClientID, &entry.EntityID, &entry.BlueprintID,
		&entry.FormulaVersion, &entry.PenaltyVersion, &entry.EntryVersion,
		&entry.PeriodType, &periodStart, &periodEnd, &fiscalYear,
		&originalDue, &adjustedDue, &extendedDue,
		&entry.Status, &exemptionReason, &formCode, &requirementsJSON,
		&filedDate, &filingReference, &entry.DaysOverdue,
		&penalty, &interest, &total, &penaltyPaid,
		&taxLiability, &taxPaid, &entry.LiabilityStale, &remindersJSON,
		&entry.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return entry, err
	}

	entry.PeriodStart = parseDay(periodStart)
	entry.PeriodEnd = parseDay(periodEnd)
	entry.FiscalYear = fiscalYear.String
	entry.OriginalDueDate = parseDay(originalDue)
	entry.AdjustedDueDate = parseDay(adjustedDue)
	if extendedDue.Valid && extendedDue.String != "" {
		d := parseDay(extendedDue.String)
		entry.ExtendedDueDate = &d
	}
	entry.ExemptionReason = exemptionReason.String
	entry.FormCode = formCode.String
	if requirementsJSON.Valid && requirementsJSON.String != "" {
		json.Unmarshal([]byte(requirementsJSON.String), &entry.Requirements)
	}
	if filedDate.Valid && filedDate.String != "" {
		d := parseDay(filedDate.String)
		entry.FiledDate = &d
	}
	entry.FilingReference = filingReference.String
	entry.PenaltyAmount = engine.MustParseMoney(penalty)
	entry.InterestAmount = engine.MustParseMoney(interest)
	entry.TotalLiability = engine.MustParseMoney(total)
	entry.PenaltyPaid = engine.MustParseMoney(penaltyPaid)
	entry.TaxLiability = engine.MustParseMoney(taxLiability)
	entry.TaxPaid = engine.MustParseMoney(taxPaid)
	if remindersJSON.Valid && remindersJSON.String != "" {
		json.Unmarshal([]byte(remindersJSON.String), &entry.RemindersSent)
	}
	entry.CreatedAt = parseTimestamp(createdAt)
	entry.UpdatedAt = parseTimestamp(updatedAt)

	return entry, nil
}

// =============================================================================
// PASS RUNS - Audit trail of evaluation passes
// =============================================================================

// PassRun records one evaluation pass over the calendar.
type PassRun struct {
	ID          string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string // running, completed, failed
	Generated   int
	Reevaluated int
	Changed     int
	Deferred    int
	Failed      int
	Errors      []string
}

// SavePassRun upserts a pass run record.
func (s *Store) SavePassRun(ctx context.Context, r PassRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errorsJSON, _ := json.Marshal(r.Errors)

	var completedAt *string
	if r.CompletedAt != nil {
		t := r.CompletedAt.Format(time.RFC3339)
		completedAt = &t
	}

	query := `
		INSERT INTO pass_runs (id, started_at, completed_at, status, generated, reevaluated, changed, deferred, failed, errors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed_at = excluded.completed_at,
			status = excluded.status,
			generated = excluded.generated,
			reevaluated = excluded.reevaluated,
			changed = excluded.changed,
			deferred = excluded.deferred,
			failed = excluded.failed,
			errors_json = excluded.errors_json
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.StartedAt.Format(time.RFC3339), completedAt, r.Status,
		r.Generated, r.Reevaluated, r.Changed, r.Deferred, r.Failed,
		string(errorsJSON),
	)
	return err
}

// ListPassRuns returns the most recent pass runs.
func (s *Store) ListPassRuns(ctx context.Context, limit int) ([]PassRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, status, generated, reevaluated, changed, deferred, failed, errors_json
		FROM pass_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []PassRun
	for rows.Next() {
		var r PassRun
		var startedAt string
		var completedAt, errorsJSON sql.NullString
		if err := rows.Scan(&r.ID, &startedAt, &completedAt, &r.Status,
			&r.Generated, &r.Reevaluated, &r.Changed, &r.Deferred, &r.Failed, &errorsJSON); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if completedAt.Valid {
			t, _ := time.Parse(time.RFC3339, completedAt.String)
			r.CompletedAt = &t
		}
		if errorsJSON.Valid && errorsJSON.String != "" {
			json.Unmarshal([]byte(errorsJSON.String), &r.Errors)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"calendar_entries", "pass_runs", "jurisdiction_rules",
		"entities", "blueprints", "holidays", "holiday_calendars", "jurisdictions",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func parseDay(s string) engine.TimePoint {
	t, _ := time.Parse(dayLayout, s)
	return engine.NewTimePoint(t.Year(), t.Month(), t.Day())
}

func parseTimestamp(s string) engine.TimePoint {
	t, _ := time.Parse(time.RFC3339, s)
	return engine.TimePointFrom(t)
}

func nullDay(tp *engine.TimePoint) *string {
	if tp == nil {
		return nil
	}
	s := tp.Time.Format(dayLayout)
	return &s
}
