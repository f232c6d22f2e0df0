/*
Package generic provides the domain-agnostic primitives of the deployment engine.

PURPOSE:
  Every component of the engine compares calendar dates: "is the operative
  booked on this day?", "does this certificate expire inside the horizon?",
  "how many days of this assignment fall into the current week?". This package
  is the single place where dates are parsed, normalised, and compared.

KEY CONCEPTS IN THIS FILE (time.go):
  - TimePoint: a calendar date. Time-of-day is always discarded.
  - ParseDate: tolerant ISO-8601 parsing that degrades instead of failing.
  - Location: the zone used to take the calendar date of a date-time.

WHY ONE NORMALISATION PATH:
  Dates arrive as "YYYY-MM-DD" strings or full date-times from the browser.
  Parsing them with different rules (UTC vs local) shifts days across DST
  and midnight boundaries. All comparisons go through normalize(), which
  stores the calendar date at midnight UTC so that day arithmetic is exact.

SEE ALSO:
  - period.go: Period, InRange, Overlaps, DayCount, WeekContaining
  - errors.go: error taxonomy shared by all packages
*/
package generic

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// LOCATION - Zone used to read the calendar date of a date-time
// =============================================================================

var (
	location   = time.Local
	locationMu sync.RWMutex
)

// SetLocation changes the zone used when a date-time is reduced to a date.
// Date-only strings are never shifted.
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	locationMu.Lock()
	defer locationMu.Unlock()
	location = loc
}

// Location returns the zone used for date-time normalisation.
func Location() *time.Location {
	locationMu.RLock()
	defer locationMu.RUnlock()
	return location
}

// =============================================================================
// TIME POINT - A calendar date
// =============================================================================

// DateLayout is the wire format for every date field.
const DateLayout = "2006-01-02"

type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime takes the calendar date of t as seen in Location().
func FromTime(t time.Time) TimePoint {
	if t.IsZero() {
		return TimePoint{}
	}
	local := t.In(Location())
	return NewTimePoint(local.Year(), local.Month(), local.Day())
}

func Today() TimePoint {
	return FromTime(time.Now())
}

// ParseDate accepts "YYYY-MM-DD", RFC 3339 date-times and zone-less
// "YYYY-MM-DDTHH:MM:SS". Anything else returns (zero, false).
func ParseDate(s string) (TimePoint, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimePoint{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewTimePoint(t.Year(), t.Month(), t.Day()), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), true
		}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.000", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, Location()); err == nil {
			return NewTimePoint(t.Year(), t.Month(), t.Day()), true
		}
	}
	return TimePoint{}, false
}

// MustParseDate panics on malformed input. Use in tests and fixtures only.
func MustParseDate(s string) TimePoint {
	tp, ok := ParseDate(s)
	if !ok {
		panic("generic: invalid date " + s)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// normalize drops time-of-day. The calendar date is read in the zone the
// value carries, so a TimePoint built from a raw time.Time still compares
// by the date its owner meant.
func (tp TimePoint) normalize() time.Time {
	t := tp.Time
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.normalize().Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.normalize().Format(DateLayout)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysUntil returns floor((to - from) / 1 day) over normalised dates.
// Negative when to is before from.
func DaysUntil(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}
