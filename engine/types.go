/*
Package engine provides the compliance deadline and penalty calculation engine.

PURPOSE:
  This package contains the rule-driven core for tracking statutory
  obligations: deriving due dates from formulas, adjusting them for
  weekends/holidays per jurisdiction, advancing each obligation through a
  lifecycle state machine, and computing money-accurate penalty/interest
  liability once a deadline is missed.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A fixed-point monetary amount (never float64)
  - Jurisdiction: A hierarchical regulatory region with its own weekend set
  - EntityAttributes: The facts about a business that rule predicates match on
  - Typed IDs: Strong typing prevents mixing client/entity/blueprint IDs

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift in liability
  2. Immutability: Formulas and penalty rules are versioned, never edited
  3. Determinism: Override precedence is a single documented comparator
  4. Auditability: Liability is always returned as an itemized breakdown

SEE ALSO:
  - formula.go: Due-date derivation
  - override.go: Jurisdiction rule resolution
  - penalty.go: Penalty/interest calculation
  - entry.go: Calendar entry lifecycle
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point monetary amount
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money      { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int64) Money { return Money{Value: decimal.NewFromInt(value)} }
func ZeroMoney() Money                  { return Money{Value: decimal.Zero} }

// ParseMoney parses a decimal amount string. Input that crosses a trust
// boundary goes through here; MustParseMoney is for already-validated
// stored values only.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return Money{Value: d}, nil
}

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(b Money) Money             { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money             { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money   { return Money{Value: m.Value.Mul(s)} }
func (m Money) Neg() Money                    { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool                  { return m.Value.IsZero() }
func (m Money) IsNegative() bool              { return m.Value.IsNegative() }
func (m Money) IsPositive() bool              { return m.Value.IsPositive() }
func (m Money) GreaterThan(b Money) bool      { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool         { return m.Value.LessThan(b.Value) }
func (m Money) Equal(b Money) bool            { return m.Value.Equal(b.Value) }
func (m Money) Min(b Money) Money             { if m.LessThan(b) { return m }; return b }
func (m Money) Max(b Money) Money             { if m.GreaterThan(b) { return m }; return b }
func (m Money) String() string                { return m.Value.StringFixed(2) }

// Cap limits m to at most limit. A nil limit means uncapped.
func (m Money) Cap(limit *Money) Money {
	if limit == nil {
		return m
	}
	return m.Min(*limit)
}

// Floor raises m to at least floor. A nil floor means no minimum.
func (m Money) Floor(floor *Money) Money {
	if floor == nil {
		return m
	}
	return m.Max(*floor)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type EntityID string
type BlueprintID string
type JurisdictionID string
type RuleID string
type EntryID string

// =============================================================================
// JURISDICTION - Hierarchical regulatory region (country -> state -> city)
// =============================================================================

type JurisdictionLevel int

const (
	LevelCountry JurisdictionLevel = 1
	LevelState   JurisdictionLevel = 2
	LevelCity    JurisdictionLevel = 3
)

// Jurisdiction is a node in the regulatory hierarchy. Every node except the
// root has exactly one parent; Path is the concatenation of ancestor codes
// (e.g. "IN/IN-KA/IN-KA-BLR").
type Jurisdiction struct {
	ID       JurisdictionID
	ParentID JurisdictionID // empty for the root
	Code     string
	Name     string
	Level    JurisdictionLevel
	Path     string
	TaxCode  string

	// Weekend is the set of non-working weekdays (typically Sat+Sun,
	// but e.g. Fri+Sat in some jurisdictions).
	Weekend map[time.Weekday]bool
}

// IsWeekend reports whether the weekday falls in this jurisdiction's weekend.
// A jurisdiction with no weekend set falls back to Sat+Sun.
func (j Jurisdiction) IsWeekend(wd time.Weekday) bool {
	if len(j.Weekend) == 0 {
		return wd == time.Saturday || wd == time.Sunday
	}
	return j.Weekend[wd]
}

// AncestorPath returns the jurisdiction IDs from this node up to the root,
// self first. Used to gather applicable rule overrides.
func AncestorPath(j Jurisdiction, lookup func(JurisdictionID) (Jurisdiction, bool)) []JurisdictionID {
	path := []JurisdictionID{j.ID}
	current := j
	for current.ParentID != "" {
		parent, ok := lookup(current.ParentID)
		if !ok {
			break
		}
		path = append(path, parent.ID)
		current = parent
	}
	return path
}

// =============================================================================
// ENTITY - The business an obligation applies to (read-only lookup)
// =============================================================================

type EntityType string

const (
	EntityCompany        EntityType = "company"
	EntityLLP            EntityType = "llp"
	EntityPartnership    EntityType = "partnership"
	EntitySoleProprietor EntityType = "sole_proprietor"
	EntityTrust          EntityType = "trust"
)

// Entity carries the attributes that rule predicates match on.
// The engine reads entities, it never mutates them.
type Entity struct {
	ID               EntityID
	ClientID         ClientID
	Name             string
	Type             EntityType
	JurisdictionID   JurisdictionID
	Turnover         Money
	RegistrationDate TimePoint
	Attributes       map[string]string
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayType string

const (
	HolidayNational HolidayType = "national"
	HolidayRegional HolidayType = "regional"
	HolidayBank     HolidayType = "bank"
)

// Holiday is one calendar date that blocks filing in a jurisdiction.
// Optional holidays do not block working-day status by default.
type Holiday struct {
	ID             string
	JurisdictionID JurisdictionID
	Date           TimePoint
	Name           string
	Type           HolidayType
	Optional       bool
}

// HolidayCalendar is the ordered set of holidays for one (jurisdiction, year).
// Unique per pair; ingested from an external admin process.
type HolidayCalendar struct {
	JurisdictionID JurisdictionID
	Year           int
	Holidays       []Holiday
}
