package workforce

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/deploy-engine/generic"
)

// =============================================================================
// FLEET ROLLUPS - Recomputed from the snapshot on every call
// =============================================================================

// DeployedNow is the set of operatives on site today: the assignment
// range contains now and it is DEPLOYED or carries no marker.
func DeployedNow(assignments []Assignment, now generic.TimePoint) map[OperativeID]bool {
	out := make(map[OperativeID]bool)
	for _, a := range assignments {
		if !a.Period.Contains(now) {
			continue
		}
		if a.Status.Is(StatusDeployed) || a.Status.Is(StatusUnset) {
			out[a.OperativeID] = true
		}
	}
	return out
}

// ActiveSitesNow returns sites whose [Start, End] contains now.
func ActiveSitesNow(sites []Site, now generic.TimePoint) []Site {
	var out []Site
	for _, s := range sites {
		if s.Period().Contains(now) {
			out = append(out, s)
		}
	}
	return out
}

// NotFulfilledCount counts active sites that need filling and are not
// filled.
func NotFulfilledCount(sites []Site, assignments []Assignment, now generic.TimePoint) int {
	n := 0
	for _, s := range ActiveSitesNow(sites, now) {
		if !s.FulfillmentRequired {
			continue
		}
		if ClassifyCapacity(HeadCount(s.ID, assignments), s.Capacity) != FillFilled {
			n++
		}
	}
	return n
}

// =============================================================================
// PROFIT
// =============================================================================

// AssignmentMargin is the daily margin for a's site, or false when the
// site, client or job type cannot be resolved.
func AssignmentMargin(snap Snapshot, a Assignment) (decimal.Decimal, bool) {
	site, ok := snap.Site(a.SiteID)
	if !ok {
		return decimal.Zero, false
	}
	client, ok := snap.Client(site.ClientID)
	if !ok {
		return decimal.Zero, false
	}
	jt, ok := client.JobType(site.ProjectType)
	if !ok {
		return decimal.Zero, false
	}
	return jt.DailyMargin(), true
}

// ProfitForPeriod sums overlap days x (clientCost - payRate) over every
// assignment. Unresolvable lookups contribute zero.
func ProfitForPeriod(snap Snapshot, window generic.Period) decimal.Decimal {
	total := decimal.Zero
	for _, a := range snap.Assignments {
		days := generic.OverlapDays(a.Period, window)
		if days == 0 {
			continue
		}
		margin, ok := AssignmentMargin(snap, a)
		if !ok {
			continue
		}
		total = total.Add(margin.Mul(decimal.NewFromInt(int64(days))))
	}
	return total
}

// WeeklyProfit is ProfitForPeriod over the Monday-Sunday week holding now.
func WeeklyProfit(snap Snapshot, now generic.TimePoint) decimal.Decimal {
	return ProfitForPeriod(snap, generic.WeekContaining(now))
}

// =============================================================================
// SITE FILL SUMMARY
// =============================================================================

type SiteFill struct {
	Site        Site
	HeadCount   int
	Deployed    int
	AssignedNot int // assigned but not yet deployed
	Offsite     int
	Fill        FillStatus
	CanAssign   bool
	Active      bool
}

// SiteFills summarises every site, ordered by site start date then id.
func SiteFills(snap Snapshot, now generic.TimePoint) []SiteFill {
	out := make([]SiteFill, 0, len(snap.Sites))
	for _, s := range snap.Sites {
		out = append(out, SiteFillFor(s, snap.Assignments, now))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Site, out[j].Site
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
	return out
}

func SiteFillFor(s Site, assignments []Assignment, now generic.TimePoint) SiteFill {
	head := HeadCount(s.ID, assignments)
	return SiteFill{
		Site:        s,
		HeadCount:   head,
		Deployed:    DeployedCount(s.ID, assignments, now),
		AssignedNot: AssignedButNotDeployedCount(s.ID, assignments, now),
		Offsite:     OffsiteCount(s.ID, assignments, now),
		Fill:        ClassifyCapacity(head, s.Capacity),
		CanAssign:   CanAssign(s, assignments),
		Active:      s.Period().Contains(now),
	}
}

// =============================================================================
// COMPLIANCE ROLLUP
// =============================================================================

type OperativeCompliance struct {
	Operative Operative
	Result    ComplianceResult
}

// ComplianceRollup returns operatives whose overall state is not
// compliant against the general vocabulary, in snapshot order.
func ComplianceRollup(snap Snapshot, vocab Vocabulary, opts ComplianceOptions) []OperativeCompliance {
	var out []OperativeCompliance
	for _, op := range snap.Operatives {
		res := EvaluateCompliance(op, vocab.General, opts)
		if res.Overall != ComplianceCompliant {
			out = append(out, OperativeCompliance{Operative: op, Result: res})
		}
	}
	return out
}

// =============================================================================
// DASHBOARD
// =============================================================================

type Dashboard struct {
	AsOf              generic.TimePoint
	Week              generic.Period
	DeployedNow       []OperativeID
	ActiveSites       []SiteID
	NotFulfilledCount int
	WeeklyProfit      decimal.Decimal
	Sites             []SiteFill
	NeedsAttention    []OperativeCompliance
}

// BuildDashboard composes the rollups for now.
func BuildDashboard(snap Snapshot, vocab Vocabulary, now generic.TimePoint, horizonDays int) Dashboard {
	deployed := DeployedNow(snap.Assignments, now)
	ids := make([]OperativeID, 0, len(deployed))
	for id := range deployed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var active []SiteID
	for _, s := range ActiveSitesNow(snap.Sites, now) {
		active = append(active, s.ID)
	}

	return Dashboard{
		AsOf:              now,
		Week:              generic.WeekContaining(now),
		DeployedNow:       ids,
		ActiveSites:       active,
		NotFulfilledCount: NotFulfilledCount(snap.Sites, snap.Assignments, now),
		WeeklyProfit:      WeeklyProfit(snap, now),
		Sites:             SiteFills(snap, now),
		NeedsAttention:    ComplianceRollup(snap, vocab, ComplianceOptions{HorizonDays: horizonDays, Reference: now}),
	}
}
