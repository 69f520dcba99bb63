package engine

import (
	"time"
)

// =============================================================================
// TIME POINT - Concrete time abstraction (deadlines are day-granular,
// status transitions need hours)
// =============================================================================

type TimePoint struct {
	Time        time.Time
	Granularity Granularity
}

type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityHour
)

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Granularity: GranularityDay}
}

func NewTimePointWithHour(year int, month time.Month, day, hour int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, hour, 0, 0, 0, time.UTC), Granularity: GranularityHour}
}

func TimePointFrom(t time.Time) TimePoint {
	return TimePoint{Time: t.UTC(), Granularity: GranularityHour}
}

func Today() TimePoint {
	now := time.Now()
	return NewTimePoint(now.Year(), now.Month(), now.Day())
}

func Now() TimePoint { return TimePointFrom(time.Now()) }

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

// SameDay compares calendar dates regardless of granularity.
func (tp TimePoint) SameDay(other TimePoint) bool {
	return tp.Date().Equal(other.Date())
}

func (tp TimePoint) normalize() time.Time {
	switch tp.Granularity {
	case GranularityDay:
		return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityHour:
		return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), tp.Time.Hour(), 0, 0, 0, time.UTC)
	default:
		return tp.Time
	}
}

// Date truncates to day granularity.
func (tp TimePoint) Date() TimePoint {
	return NewTimePoint(tp.Time.Year(), tp.Time.Month(), tp.Time.Day())
}

// EndOfDay returns the last instant of the calendar day, at hour granularity.
// Used for the DUE_TODAY -> OVERDUE boundary.
func (tp TimePoint) EndOfDay() TimePoint {
	return TimePoint{
		Time:        time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 23, 59, 59, 0, time.UTC),
		Granularity: GranularityHour,
	}
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	return TimePoint{Time: tp.Time.AddDate(0, 0, n), Granularity: tp.Granularity}
}

// AddMonthsClamped adds n calendar months with month-end clamping:
// Jan 31 + 1 month yields the last day of February, not March 3.
func (tp TimePoint) AddMonthsClamped(n int) TimePoint {
	y, m, d := tp.Time.Date()
	totalMonths := int(m) - 1 + n
	targetYear := y + totalMonths/12
	targetMonth := time.Month(totalMonths%12 + 1)
	if totalMonths < 0 && totalMonths%12 != 0 {
		targetYear--
		targetMonth = time.Month(totalMonths%12 + 13)
	}
	last := daysInMonth(targetYear, targetMonth)
	if d > last {
		d = last
	}
	return TimePoint{
		Time:        time.Date(targetYear, targetMonth, d, tp.Time.Hour(), 0, 0, 0, time.UTC),
		Granularity: tp.Granularity,
	}
}

// AddYearsClamped adds n years, clamping Feb 29 to Feb 28 in non-leap years.
func (tp TimePoint) AddYearsClamped(n int) TimePoint {
	return tp.AddMonthsClamped(n * 12)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	switch tp.Granularity {
	case GranularityDay:
		return tp.Time.Format("2006-01-02")
	case GranularityHour:
		return tp.Time.Format("2006-01-02 15:00")
	default:
		return tp.Time.Format(time.RFC3339)
	}
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween returns whole calendar days from 'from' to 'to'.
func DaysBetween(from, to TimePoint) int {
	return int(to.Date().normalize().Sub(from.Date().normalize()).Hours() / 24)
}

// HoursUntil returns hours remaining from 'now' until 'until'.
func HoursUntil(now, until TimePoint) float64 {
	return until.normalize().Sub(now.normalize()).Hours()
}

func StartOfYear(year int) TimePoint { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint   { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return TimePoint{Time: t, Granularity: GranularityDay}
}

// EndOfQuarter returns the last day of the calendar quarter containing tp.
func EndOfQuarter(tp TimePoint) TimePoint {
	q := (int(tp.Month()) - 1) / 3
	endMonth := time.Month(q*3 + 3)
	return EndOfMonth(tp.Year(), endMonth)
}

// EndOfFiscalYear returns the last day of the fiscal year containing tp,
// for a fiscal year starting on the first of startMonth.
func EndOfFiscalYear(tp TimePoint, startMonth time.Month) TimePoint {
	fyStart := NewTimePoint(tp.Year(), startMonth, 1)
	if tp.Before(fyStart) {
		fyStart = NewTimePoint(tp.Year()-1, startMonth, 1)
	}
	return fyStart.AddMonthsClamped(12).AddDays(-1)
}
