package workforce

import (
	"github.com/warp/deploy-engine/generic"
)

// =============================================================================
// PERIOD RESOLUTION
// =============================================================================

// ResolvePeriod picks the assignment range: the site's full span when both
// of its dates are known, otherwise the caller's explicit range. Either
// range must have Start <= End.
func ResolvePeriod(site Site, requested *generic.Period) (generic.Period, error) {
	if site.HasDates() {
		p := site.Period()
		if err := p.Validate(); err != nil {
			return generic.Period{}, err
		}
		return p, nil
	}
	if requested == nil {
		return generic.Period{}, generic.ErrMissingPeriod
	}
	if err := requested.Validate(); err != nil {
		return generic.Period{}, err
	}
	return *requested, nil
}

// NewAssignment builds an ASSIGNED record for operativeID on site. It does
// not check overlaps or capacity; see FindConflicts and CanAssign.
func NewAssignment(id AssignmentID, operativeID OperativeID, site Site, requested *generic.Period, now generic.TimePoint) (Assignment, error) {
	p, err := ResolvePeriod(site, requested)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{
		ID:          id,
		OperativeID: operativeID,
		SiteID:      site.ID,
		Period:      p,
		Status:      StatusAssigned,
		CreatedAt:   now,
	}, nil
}

// =============================================================================
// CONFLICTS - Double booking is warned, never blocked
// =============================================================================

// Conflict is an existing assignment of the same operative whose range
// overlaps the proposed one.
type Conflict struct {
	Existing    Assignment
	OverlapDays int
}

// FindConflicts returns operativeID's assignments overlapping p, skipping
// excludeID (the record being edited, if any).
func FindConflicts(operativeID OperativeID, p generic.Period, existing []Assignment, excludeID AssignmentID) []Conflict {
	var out []Conflict
	for _, a := range existing {
		if a.OperativeID != operativeID || (excludeID != "" && a.ID == excludeID) {
			continue
		}
		if !generic.Overlaps(a.Period, p) {
			continue
		}
		out = append(out, Conflict{Existing: a, OverlapDays: generic.OverlapDays(a.Period, p)})
	}
	return out
}

// CanAssign is false when the site is capped and already holds Limit or
// more assignments.
func CanAssign(site Site, current []Assignment) bool {
	if !site.Capacity.IsCapped() {
		return true
	}
	count := 0
	for _, a := range current {
		if a.SiteID == site.ID {
			count++
		}
	}
	return count < site.Capacity.Max()
}

// =============================================================================
// STATUS AND REMOVAL
// =============================================================================

// SetStatus moves a to status. Any known status may follow any other.
func SetStatus(a Assignment, status AssignmentStatus) (Assignment, error) {
	next, err := ParseStatus(string(status))
	if err != nil {
		return a, err
	}
	if !CanTransition(a.Status, next) {
		return a, generic.ErrInvalidStatus
	}
	a.Status = next
	return a, nil
}

// RemoveAssignment drops id from assignments. An absent id returns the
// input unchanged with ErrAssignmentNotFound, which callers treat as a
// no-op.
func RemoveAssignment(id AssignmentID, assignments []Assignment) ([]Assignment, error) {
	out := make([]Assignment, 0, len(assignments))
	found := false
	for _, a := range assignments {
		if a.ID == id {
			found = true
			continue
		}
		out = append(out, a)
	}
	if !found {
		return assignments, generic.NewNotFound(generic.ErrAssignmentNotFound, "assignment", string(id))
	}
	return out, nil
}

// =============================================================================
// HEADCOUNT FILTERS
// =============================================================================

// DeployedCount counts DEPLOYED assignments on the site whose range
// contains ref.
func DeployedCount(siteID SiteID, assignments []Assignment, ref generic.TimePoint) int {
	return countSite(siteID, assignments, func(a Assignment) bool {
		return a.Status.Is(StatusDeployed) && a.Period.Contains(ref)
	})
}

// AssignedButNotDeployedCount counts ASSIGNED or unmarked assignments on the
// site that have not ended before ref.
func AssignedButNotDeployedCount(siteID SiteID, assignments []Assignment, ref generic.TimePoint) int {
	return countSite(siteID, assignments, func(a Assignment) bool {
		return a.Status.IsAssignedLike() && !a.Period.End.Before(ref)
	})
}

// OffsiteCount counts OFFSITE assignments on the site whose range contains
// ref.
func OffsiteCount(siteID SiteID, assignments []Assignment, ref generic.TimePoint) int {
	return countSite(siteID, assignments, func(a Assignment) bool {
		return a.Status.Is(StatusOffsite) && a.Period.Contains(ref)
	})
}

// HeadCount counts the site's assignments that are not OFFSITE. This is
// the assigned count used for fill classification.
func HeadCount(siteID SiteID, assignments []Assignment) int {
	return countSite(siteID, assignments, func(a Assignment) bool {
		return !a.Status.Is(StatusOffsite)
	})
}

func countSite(siteID SiteID, assignments []Assignment, match func(Assignment) bool) int {
	n := 0
	for _, a := range assignments {
		if a.SiteID == siteID && match(a) {
			n++
		}
	}
	return n
}

// =============================================================================
// ROLLING STATUSES FORWARD
// =============================================================================

// StatusChange is one transition RollStatuses wants applied.
type StatusChange struct {
	AssignmentID AssignmentID
	From         AssignmentStatus
	To           AssignmentStatus
}

// RollStatuses advances ASSIGNED (or unmarked) assignments whose range
// contains now to DEPLOYED. OFFSITE is never touched.
func RollStatuses(assignments []Assignment, now generic.TimePoint) []StatusChange {
	var changes []StatusChange
	for _, a := range assignments {
		if !a.Status.IsAssignedLike() || !a.Period.Contains(now) {
			continue
		}
		changes = append(changes, StatusChange{AssignmentID: a.ID, From: a.Status, To: StatusDeployed})
	}
	return changes
}
