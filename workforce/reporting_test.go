package workforce_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
)

func fitOutSnapshot(assignments ...workforce.Assignment) workforce.Snapshot {
	s := site("S", "client-c", "2024-03-04", "2024-03-15", 2)
	s.ProjectType = "Fit-out"
	return workforce.Snapshot{
		Operatives:  []workforce.Operative{operative("O1", "Olive", "Oak"), operative("O2", "Pat", "Pine")},
		Sites:       []workforce.Site{s},
		Clients:     []workforce.Client{fitOutClient()},
		Assignments: assignments,
	}
}

// =============================================================================
// PROFIT
// =============================================================================

func TestWeeklyProfit_FullWeek(t *testing.T) {
	// GIVEN: Fit-out pays 20 and bills 35; one assignment spans Mon-Sun
	snap := fitOutSnapshot(assignment("a1", "O1", "S", "2024-03-04", "2024-03-10", workforce.StatusDeployed))

	// WHEN
	profit := workforce.WeeklyProfit(snap, date("2024-03-06"))

	// THEN: (35 - 20) x 7
	assert.True(t, decimal.NewFromInt(105).Equal(profit), "got %s", profit)
}

func TestWeeklyProfit_ClipsToWeek(t *testing.T) {
	snap := fitOutSnapshot(assignment("a1", "O1", "S", "2024-03-01", "2024-03-20", workforce.StatusDeployed))

	profit := workforce.WeeklyProfit(snap, date("2024-03-10"))

	assert.True(t, decimal.NewFromInt(105).Equal(profit), "got %s", profit)
}

func TestWeeklyProfit_SplitRangesAddUp(t *testing.T) {
	now := date("2024-03-06")
	cases := []struct{ start, split, end string }{
		{"2024-03-04", "2024-03-04", "2024-03-10"},
		{"2024-03-04", "2024-03-06", "2024-03-10"},
		{"2024-03-05", "2024-03-08", "2024-03-09"},
		{"2024-03-04", "2024-03-09", "2024-03-10"},
	}

	for _, c := range cases {
		// GIVEN: one range and the same range split at a day boundary
		whole := fitOutSnapshot(assignment("a", "O1", "S", c.start, c.end, workforce.StatusDeployed))
		left := fitOutSnapshot(assignment("l", "O1", "S", c.start, c.split, workforce.StatusDeployed))
		right := fitOutSnapshot(assignment("r", "O1", "S", date(c.split).AddDays(1).String(), c.end, workforce.StatusDeployed))

		// WHEN / THEN
		sum := workforce.WeeklyProfit(left, now).Add(workforce.WeeklyProfit(right, now))
		assert.True(t, workforce.WeeklyProfit(whole, now).Equal(sum), "%+v", c)
	}
}

func TestProfit_UnresolvableLookupsContributeZero(t *testing.T) {
	snap := fitOutSnapshot(
		assignment("ghost-site", "O1", "nowhere", "2024-03-04", "2024-03-10", workforce.StatusDeployed),
	)
	snap.Sites = append(snap.Sites, workforce.Site{ID: "other", ClientID: "client-c", ProjectType: "Demolition"})
	snap.Assignments = append(snap.Assignments, assignment("no-jobtype", "O1", "other", "2024-03-04", "2024-03-10", ""))

	assert.True(t, workforce.WeeklyProfit(snap, date("2024-03-06")).IsZero())
}

// =============================================================================
// ROLLUPS
// =============================================================================

func TestDeployedNow(t *testing.T) {
	now := date("2024-03-06")
	list := []workforce.Assignment{
		assignment("a1", "O1", "S", "2024-03-04", "2024-03-08", workforce.StatusDeployed),
		assignment("a2", "O2", "S", "2024-03-04", "2024-03-08", workforce.StatusUnset),
		assignment("a3", "O3", "S", "2024-03-04", "2024-03-08", workforce.StatusOffsite),
		assignment("a4", "O4", "S", "2024-03-04", "2024-03-08", workforce.StatusAssigned),
		assignment("a5", "O5", "S", "2024-03-07", "2024-03-08", workforce.StatusDeployed),
	}

	got := workforce.DeployedNow(list, now)

	assert.Equal(t, map[workforce.OperativeID]bool{"O1": true, "O2": true}, got)
}

func TestNotFulfilledCount(t *testing.T) {
	now := date("2024-03-06")
	full := site("full", "c", "2024-03-01", "2024-03-31", 1)
	partial := site("partial", "c", "2024-03-01", "2024-03-31", 3)
	uncapped := site("uncapped", "c", "2024-03-01", "2024-03-31", 0)
	optional := site("optional", "c", "2024-03-01", "2024-03-31", 0)
	optional.FulfillmentRequired = false
	inactive := site("inactive", "c", "2024-04-01", "2024-04-30", 5)

	sites := []workforce.Site{full, partial, uncapped, optional, inactive}
	list := []workforce.Assignment{
		assignment("a1", "O1", "full", "2024-03-01", "2024-03-31", workforce.StatusDeployed),
		assignment("a2", "O2", "partial", "2024-03-01", "2024-03-31", workforce.StatusDeployed),
		assignment("a3", "O3", "uncapped", "2024-03-01", "2024-03-31", workforce.StatusDeployed),
	}

	assert.Len(t, workforce.ActiveSitesNow(sites, now), 4)
	assert.Equal(t, 2, workforce.NotFulfilledCount(sites, list, now), "partial and uncapped")
}

func TestSiteFills_OrderedByStart(t *testing.T) {
	late := site("late", "c", "2024-04-01", "2024-04-30", 1)
	early := site("early", "c", "2024-03-01", "2024-03-31", 2)
	snap := workforce.Snapshot{
		Sites:       []workforce.Site{late, early},
		Assignments: []workforce.Assignment{assignment("a1", "O1", "early", "2024-03-01", "2024-03-31", workforce.StatusDeployed)},
	}

	fills := workforce.SiteFills(snap, date("2024-03-06"))

	require.Len(t, fills, 2)
	assert.Equal(t, workforce.SiteID("early"), fills[0].Site.ID)
	assert.Equal(t, workforce.FillPartial, fills[0].Fill)
	assert.Equal(t, 1, fills[0].Deployed)
	assert.True(t, fills[0].Active)
	assert.True(t, fills[0].CanAssign)
	assert.Equal(t, workforce.FillNotFilled, fills[1].Fill)
	assert.False(t, fills[1].Active)
}

func TestBuildDashboard(t *testing.T) {
	now := date("2024-03-06")
	snap := fitOutSnapshot(
		assignment("a1", "O1", "S", "2024-03-04", "2024-03-15", workforce.StatusDeployed),
		assignment("a2", "O2", "S", "2024-03-04", "2024-03-15", workforce.StatusDeployed),
	)
	snap.Operatives[0] = allCompliant(snap.Operatives[0], now)

	d := workforce.BuildDashboard(snap, workforce.DefaultVocabulary, now, 42)

	assert.Equal(t, []workforce.OperativeID{"O1", "O2"}, d.DeployedNow)
	assert.Equal(t, []workforce.SiteID{"S"}, d.ActiveSites)
	assert.Equal(t, 0, d.NotFulfilledCount)
	assert.Equal(t, generic.NewPeriod(date("2024-03-04"), date("2024-03-10")), d.Week)
	// Both assignments cover the whole week: 2 x 15 x 7.
	assert.True(t, decimal.NewFromInt(2*15*7).Equal(d.WeeklyProfit), "got %s", d.WeeklyProfit)
	require.Len(t, d.NeedsAttention, 1)
	assert.Equal(t, workforce.OperativeID("O2"), d.NeedsAttention[0].Operative.ID)
	assert.Equal(t, workforce.ComplianceNoData, d.NeedsAttention[0].Result.Overall)
}
