/*
calendar.go - Holiday calendar resolver

PURPOSE:
  Answers "is date D a working day in jurisdiction J" and "what is the
  next/previous working day". Every due-date adjustment in the engine goes
  through this resolver.

WORKING DAY DEFINITION:
  A date is a working day iff its weekday is not in the jurisdiction's
  weekend set AND it does not match any non-optional holiday for that
  jurisdiction+year.

DEGRADED MODE:
  A missing holiday calendar for a (jurisdiction, year) is NOT fatal.
  The resolver falls back to weekends-only and emits a warning once per
  (jurisdiction, year), so existing deadlines keep computing.

TERMINATION:
  Adjust walks one day at a time and gives up after 30 iterations with a
  ConfigurationError. An unreasonable run of consecutive non-working days
  signals bad calendar data, not a real filing rule.

SEE ALSO:
  - formula.go: Calls Adjust when a formula's flags request adjustment
  - store.go: HolidayProvider and JurisdictionProvider interfaces
*/
package engine

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// ADJUSTMENT DIRECTION
// =============================================================================

type AdjustDirection int

const (
	AdjustNext AdjustDirection = iota
	AdjustPrevious
)

func (d AdjustDirection) String() string {
	if d == AdjustPrevious {
		return "previous"
	}
	return "next"
}

// maxAdjustIterations caps the working-day walk. More consecutive
// non-working days than this means the calendar data is broken.
const maxAdjustIterations = 30

// =============================================================================
// PROVIDERS - Read-only lookups backing the resolver
// =============================================================================

// HolidayProvider supplies holiday calendars. Implementations are backed by
// the store; the engine never invents holidays.
type HolidayProvider interface {
	// CalendarFor returns the calendar for (jurisdiction, year).
	// found=false is the degraded-mode signal, not an error.
	CalendarFor(ctx context.Context, jurisdictionID JurisdictionID, year int) (HolidayCalendar, bool, error)
}

// JurisdictionProvider supplies jurisdiction nodes.
type JurisdictionProvider interface {
	Jurisdiction(ctx context.Context, id JurisdictionID) (Jurisdiction, error)
}

// WarnFunc receives degraded-mode warnings. Nil disables warnings.
type WarnFunc func(format string, args ...any)

// =============================================================================
// CALENDAR RESOLVER
// =============================================================================

// CalendarResolver resolves working days per jurisdiction.
type CalendarResolver struct {
	Holidays      HolidayProvider
	Jurisdictions JurisdictionProvider
	Warn          WarnFunc

	mu     sync.Mutex
	warned map[string]bool // (jurisdiction|year) pairs already warned about
}

func NewCalendarResolver(holidays HolidayProvider, jurisdictions JurisdictionProvider, warn WarnFunc) *CalendarResolver {
	return &CalendarResolver{
		Holidays:      holidays,
		Jurisdictions: jurisdictions,
		Warn:          warn,
		warned:        make(map[string]bool),
	}
}

// IsWorkingDay reports whether date is a working day in the jurisdiction.
func (r *CalendarResolver) IsWorkingDay(ctx context.Context, jurisdictionID JurisdictionID, date TimePoint) (bool, error) {
	j, err := r.Jurisdictions.Jurisdiction(ctx, jurisdictionID)
	if err != nil {
		return false, err
	}

	if j.IsWeekend(date.Weekday()) {
		return false, nil
	}

	cal, found, err := r.Holidays.CalendarFor(ctx, jurisdictionID, date.Year())
	if err != nil {
		return false, err
	}
	if !found {
		r.warnOnce(jurisdictionID, date.Year())
		return true, nil // weekends-only fallback
	}

	for _, h := range cal.Holidays {
		if h.Optional {
			continue
		}
		if h.Date.SameDay(date) {
			return false, nil
		}
	}
	return true, nil
}

// Adjust walks one day at a time in direction until IsWorkingDay is true.
// For AdjustNext the result is never earlier than date; for AdjustPrevious
// never later.
func (r *CalendarResolver) Adjust(ctx context.Context, date TimePoint, jurisdictionID JurisdictionID, direction AdjustDirection) (TimePoint, error) {
	step := 1
	if direction == AdjustPrevious {
		step = -1
	}

	current := date.Date()
	for i := 0; i <= maxAdjustIterations; i++ {
		working, err := r.IsWorkingDay(ctx, jurisdictionID, current)
		if err != nil {
			return TimePoint{}, err
		}
		if working {
			return current, nil
		}
		current = current.AddDays(step)
	}

	return TimePoint{}, &ConfigurationError{
		Subject: "holiday calendar",
		Detail: fmt.Sprintf("no working day within %d days %s of %s in %s",
			maxAdjustIterations, direction, date, jurisdictionID),
	}
}

func (r *CalendarResolver) warnOnce(jurisdictionID JurisdictionID, year int) {
	if r.Warn == nil {
		return
	}
	key := fmt.Sprintf("%s|%d", jurisdictionID, year)

	r.mu.Lock()
	seen := r.warned[key]
	if !seen {
		r.warned[key] = true
	}
	r.mu.Unlock()

	if !seen {
		r.Warn("[Calendar] no holiday calendar for %s year %d, treating as weekends-only", jurisdictionID, year)
	}
}
