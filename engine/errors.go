/*
errors.go - Centralized error types for the compliance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers should classify errors with errors.Is / errors.As rather than
  string matching.

ERROR CATEGORIES:
  1. Configuration errors - bad or missing holiday/formula/slab data
  2. Generation errors - deferred or ambiguous entry generation
  3. Mutation errors - optimistic concurrency and filing conflicts

RECOVERY CONTRACT:
  Recoverable errors (missing holiday calendar, deferred predecessor) never
  abort a whole pass; one entry's failure is isolated and reported.
  ErrAmbiguousOverride is a data-integrity bug and fails that entry loudly.

SEE ALSO:
  - generator.go: Per-entry error isolation in RunPass
  - override.go: Ambiguity detection
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration is returned for bad or missing rule data: an
	// unreasonable run of consecutive holidays, malformed slabs, unknown
	// base date types. Logged and degraded gracefully where possible.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingPredecessor is returned when a PreviousFilingDate formula
	// needs the prior period's entry and it does not exist yet. Generation
	// for that entry is deferred, not dropped.
	ErrMissingPredecessor = errors.New("previous period entry missing")

	// ErrAmbiguousOverride is returned when two jurisdiction overrides tie
	// on priority, jurisdiction level, and effective date. This signals a
	// data-integrity bug; generation fails loudly rather than guessing.
	ErrAmbiguousOverride = errors.New("ambiguous jurisdiction override")

	// ErrConcurrencyConflict is returned when an optimistic version check
	// fails on an entry mutation. Callers must reload and retry.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")

	// ErrAlreadyFiled is returned when filing an entry that is COMPLETED.
	ErrAlreadyFiled = errors.New("entry already filed")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("calendar entry not found")

	// ErrBlueprintNotFound is returned when a referenced blueprint doesn't exist.
	ErrBlueprintNotFound = errors.New("blueprint not found")

	// ErrJurisdictionNotFound is returned when a referenced jurisdiction doesn't exist.
	ErrJurisdictionNotFound = errors.New("jurisdiction not found")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError describes what piece of rule data is broken.
type ConfigurationError struct {
	Subject string // e.g. "holiday calendar", "penalty slabs"
	Detail  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Subject, e.Detail)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// MissingPredecessorError identifies which prior entry is needed.
type MissingPredecessorError struct {
	EntityID    EntityID
	BlueprintID BlueprintID
	PeriodStart TimePoint
}

func (e *MissingPredecessorError) Error() string {
	return fmt.Sprintf("previous period entry missing for %s/%s before %s",
		e.EntityID, e.BlueprintID, e.PeriodStart)
}

func (e *MissingPredecessorError) Unwrap() error { return ErrMissingPredecessor }

// AmbiguousOverrideError names the rules that tied.
type AmbiguousOverrideError struct {
	RuleA RuleID
	RuleB RuleID
}

func (e *AmbiguousOverrideError) Error() string {
	return fmt.Sprintf("overrides %s and %s tie on priority, level and effective date", e.RuleA, e.RuleB)
}

func (e *AmbiguousOverrideError) Unwrap() error { return ErrAmbiguousOverride }

// ConcurrencyConflictError carries the version mismatch details.
type ConcurrencyConflictError struct {
	EntryID         EntryID
	ExpectedVersion int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("entry %s modified concurrently (expected version %d)", e.EntryID, e.ExpectedVersion)
}

func (e *ConcurrencyConflictError) Unwrap() error { return ErrConcurrencyConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsDeferrable returns true if generation should be retried on the next pass.
func IsDeferrable(err error) bool {
	return errors.Is(err, ErrMissingPredecessor)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyFiled)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrBlueprintNotFound) ||
		errors.Is(err, ErrJurisdictionNotFound) ||
		errors.Is(err, ErrEntityNotFound)
}
