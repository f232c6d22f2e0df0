package generic

// =============================================================================
// PERIOD - Inclusive calendar range
// =============================================================================

// Period is the inclusive calendar range [Start, End].
//
// Examples:
//   - A site running 2024-03-04 to 2024-03-15
//   - An assignment booked for one week
//   - The Monday-Sunday reporting week
type Period struct {
	Start TimePoint
	End   TimePoint
}

func NewPeriod(start, end TimePoint) Period { return Period{Start: start, End: end} }

// IsDefined is true when both bounds are set.
func (p Period) IsDefined() bool { return !p.Start.IsZero() && !p.End.IsZero() }

// Validate returns ErrInvalidPeriod when End is before Start.
func (p Period) Validate() error {
	if !p.IsDefined() {
		return ErrMissingPeriod
	}
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return InRange(t, p.Start, p.End)
}

// Overlaps reports whether p and other share at least one day.
func (p Period) Overlaps(other Period) bool {
	return Overlaps(p, other)
}

// Days returns the inclusive day count.
func (p Period) Days() int {
	return DayCount(p.Start, p.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// INTERVAL CALCULUS
// =============================================================================

// InRange is start <= point <= end on calendar dates. Undefined bounds or
// an undefined point never match.
func InRange(point, start, end TimePoint) bool {
	if point.IsZero() || start.IsZero() || end.IsZero() {
		return false
	}
	return point.AfterOrEqual(start) && point.BeforeOrEqual(end)
}

// Overlaps is a.End >= b.Start && b.End >= a.Start. Symmetric.
func Overlaps(a, b Period) bool {
	if !a.IsDefined() || !b.IsDefined() {
		return false
	}
	return a.End.AfterOrEqual(b.Start) && b.End.AfterOrEqual(a.Start)
}

// DayCount is floor((end - start) / 1 day) + 1, or 0 for a reversed or
// undefined range.
func DayCount(start, end TimePoint) int {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 0
	}
	return DaysUntil(start, end) + 1
}

// Intersect returns the shared days of a and b.
func Intersect(a, b Period) (Period, bool) {
	if !Overlaps(a, b) {
		return Period{}, false
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return Period{Start: start, End: end}, true
}

// OverlapDays is the number of days a and b share.
func OverlapDays(a, b Period) int {
	shared, ok := Intersect(a, b)
	if !ok {
		return 0
	}
	return shared.Days()
}

// =============================================================================
// WEEKS
// =============================================================================

// WeekContaining returns the Monday-Sunday week holding t. The start is
// t minus (weekday + 6) % 7 days.
func WeekContaining(t TimePoint) Period {
	offset := (int(t.Weekday()) + 6) % 7
	start := t.AddDays(-offset)
	return Period{Start: start, End: start.AddDays(6)}
}
