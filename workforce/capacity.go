package workforce

// =============================================================================
// CAPACITY - Explicit "uncapped" instead of a zero sentinel
// =============================================================================

// Capacity is a site's headcount limit. Uncapped sites accept any number of
// assignments.
type Capacity struct {
	Limit    int
	Uncapped bool
}

// Uncapped is the capacity of a site with no limit set.
var Uncapped = Capacity{Uncapped: true}

// CapacityFromMax converts a stored maxOperatives value. Zero or negative
// means no limit was set.
func CapacityFromMax(n int) Capacity {
	if n <= 0 {
		return Uncapped
	}
	return Capacity{Limit: n}
}

// Max is the legacy integer form: 0 when uncapped.
func (c Capacity) Max() int {
	if c.Uncapped || c.Limit <= 0 {
		return 0
	}
	return c.Limit
}

// IsCapped is true when a positive limit applies.
func (c Capacity) IsCapped() bool { return c.Max() > 0 }

// =============================================================================
// FILL CLASSIFICATION
// =============================================================================

type FillStatus string

const (
	FillNotFilled FillStatus = "not-filled"
	FillPartial   FillStatus = "partial"
	FillFilled    FillStatus = "filled"
)

// rank orders fill states: not-filled < partial < filled.
func (f FillStatus) rank() int {
	switch f {
	case FillPartial:
		return 1
	case FillFilled:
		return 2
	}
	return 0
}

// AtLeast reports f >= other in the fill order.
func (f FillStatus) AtLeast(other FillStatus) bool { return f.rank() >= other.rank() }

// ClassifyFill: not-filled when maxOperatives <= 0 or nobody is assigned,
// filled when assignedCount >= maxOperatives, partial otherwise.
func ClassifyFill(assignedCount, maxOperatives int) FillStatus {
	if maxOperatives <= 0 || assignedCount <= 0 {
		return FillNotFilled
	}
	if assignedCount >= maxOperatives {
		return FillFilled
	}
	return FillPartial
}

// ClassifyCapacity is ClassifyFill over a Capacity. An uncapped site is
// never filled.
func ClassifyCapacity(assignedCount int, c Capacity) FillStatus {
	return ClassifyFill(assignedCount, c.Max())
}
