package workforce

import (
	"fmt"
	"strings"

	"github.com/warp/deploy-engine/generic"
)

// =============================================================================
// ASSIGNMENT STATUS - Tagged variant with a permissive transition table
// =============================================================================

// AssignmentStatus is the lifecycle marker of an assignment. The empty value
// means no explicit marker was stored and reads as ASSIGNED for workflow
// purposes.
type AssignmentStatus string

const (
	StatusUnset    AssignmentStatus = ""
	StatusAssigned AssignmentStatus = "ASSIGNED"
	StatusDeployed AssignmentStatus = "DEPLOYED"
	StatusOffsite  AssignmentStatus = "OFFSITE"
)

// ParseStatus upper-cases and trims s. Unknown values return
// ErrInvalidStatus.
func ParseStatus(s string) (AssignmentStatus, error) {
	st := AssignmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return StatusUnset, fmt.Errorf("%w: %q", generic.ErrInvalidStatus, s)
	}
	return st, nil
}

// Normalized is the upper-cased form used by every comparison.
func (s AssignmentStatus) Normalized() AssignmentStatus {
	return AssignmentStatus(strings.ToUpper(strings.TrimSpace(string(s))))
}

func (s AssignmentStatus) Valid() bool {
	switch s.Normalized() {
	case StatusUnset, StatusAssigned, StatusDeployed, StatusOffsite:
		return true
	}
	return false
}

func (s AssignmentStatus) Is(other AssignmentStatus) bool {
	return s.Normalized() == other.Normalized()
}

// IsAssignedLike is true for ASSIGNED and for the unmarked default.
func (s AssignmentStatus) IsAssignedLike() bool {
	n := s.Normalized()
	return n == StatusAssigned || n == StatusUnset
}

// transitions lists every legal move. No business rule restricts the
// workflow yet, so every known status may follow every other; callers that
// need a stricter flow enforce it themselves.
var transitions = map[AssignmentStatus][]AssignmentStatus{
	StatusUnset:    {StatusAssigned, StatusDeployed, StatusOffsite},
	StatusAssigned: {StatusAssigned, StatusDeployed, StatusOffsite},
	StatusDeployed: {StatusAssigned, StatusDeployed, StatusOffsite},
	StatusOffsite:  {StatusAssigned, StatusDeployed, StatusOffsite},
}

// CanTransition reports whether the table allows from -> to. A stored
// status outside the table (kept from an imported roster) may move to any
// known status.
func CanTransition(from, to AssignmentStatus) bool {
	allowed, ok := transitions[from.Normalized()]
	if !ok {
		return to.Valid()
	}
	for _, next := range allowed {
		if next == to.Normalized() {
			return true
		}
	}
	return false
}
