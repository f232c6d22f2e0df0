/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built rosters that populate the store with realistic data
	for demos. Every date is relative to the day the scenario is loaded, so
	"expiring in ten days" stays true whenever it is run.

AVAILABLE SCENARIOS:

	site-filling:    One capped site part way to full, plus spare operatives
	expiring-certs:  Compliance states from compliant to no-data
	restrictions:    Pair and client restrictions that raise warnings
	asbestos:        An asbestos removal project with its extra certificate set

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Build a snapshot relative to today
 3. Save clients, sites and operatives through the catalog
 4. Create assignments

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "site-filling"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/roster.go: the same seeding path for roster files
*/
package api

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type Scenario struct {
	ID          string
	Name        string
	Description string
	Build       func(today generic.TimePoint) workforce.Snapshot
}

var scenarios = []Scenario{
	{
		ID:          "site-filling",
		Name:        "Site Filling",
		Description: "A two-operative fit-out site with one operative deployed and spares to assign",
		Build:       buildSiteFilling,
	},
	{
		ID:          "expiring-certs",
		Name:        "Expiring Certificates",
		Description: "Operatives whose certificates are valid, expiring, expired or missing",
		Build:       buildExpiringCerts,
	},
	{
		ID:          "restrictions",
		Name:        "Restrictions",
		Description: "Operatives who cannot work together or for a given client",
		Build:       buildRestrictions,
	},
	{
		ID:          "asbestos",
		Name:        "Asbestos Removal",
		Description: "An asbestos project requiring the asbestos certificate set",
		Build:       buildAsbestos,
	},
}

func findScenario(id string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// LoadScenario resets store and seeds it with s built for today.
func LoadScenario(ctx context.Context, store workforce.Store, s Scenario, today generic.TimePoint) error {
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return Seed(ctx, store, s.Build(today))
}

// Seed saves every record of snap. Existing records with the same ids are
// replaced.
func Seed(ctx context.Context, store workforce.Store, snap workforce.Snapshot) error {
	for _, c := range snap.Clients {
		if err := store.SaveClient(ctx, c); err != nil {
			return fmt.Errorf("save client %s: %w", c.ID, err)
		}
	}
	for _, s := range snap.Sites {
		if err := store.SaveSite(ctx, s); err != nil {
			return fmt.Errorf("save site %s: %w", s.ID, err)
		}
	}
	for _, o := range snap.Operatives {
		if err := store.SaveOperative(ctx, o); err != nil {
			return fmt.Errorf("save operative %s: %w", o.ID, err)
		}
	}
	for _, a := range snap.Assignments {
		if err := store.CreateAssignment(ctx, a); err != nil {
			return fmt.Errorf("create assignment %s: %w", a.ID, err)
		}
	}
	return nil
}

// =============================================================================
// BUILDERS
// =============================================================================

func demoClient() workforce.Client {
	return workforce.Client{
		ID:   "client-northgate",
		Name: "Northgate Developments",
		JobTypes: []workforce.JobType{
			{Name: "Fit-out", PayRate: decimal.NewFromInt(180), ClientCost: decimal.NewFromInt(260)},
			{Name: "Groundworks", PayRate: decimal.NewFromInt(160), ClientCost: decimal.NewFromInt(230)},
			{Name: "Asbestos Removal", PayRate: decimal.NewFromInt(220), ClientCost: decimal.NewFromInt(340)},
		},
	}
}

func demoSite(id, name, projectType string, start, end generic.TimePoint, max int) workforce.Site {
	return workforce.Site{
		ID:                  workforce.SiteID(id),
		ClientID:            "client-northgate",
		Name:                name,
		Start:               start,
		End:                 end,
		Capacity:            workforce.CapacityFromMax(max),
		FulfillmentRequired: true,
		ProjectType:         projectType,
	}
}

// certified holds every general certificate, valid for a year.
func certified(id, first, last, trade string, today generic.TimePoint) workforce.Operative {
	op := workforce.Operative{ID: workforce.OperativeID(id), FirstName: first, LastName: last, Trade: trade, EmploymentType: "CIS"}
	for _, name := range workforce.DefaultVocabulary.General {
		op.Certificates = append(op.Certificates, demoCert(id, name, today.AddDays(365)))
	}
	return op
}

func demoCert(opID, name string, expiry generic.TimePoint) workforce.Certificate {
	return workforce.Certificate{
		ID:         fmt.Sprintf("%s-%s", opID, name),
		Name:       name,
		IssueDate:  expiry.AddDays(-3 * 365),
		ExpiryDate: expiry,
		Status:     workforce.CertValid,
		Type:       workforce.CertGeneral,
	}
}

func withExpiry(op workforce.Operative, name string, expiry generic.TimePoint) workforce.Operative {
	for i := range op.Certificates {
		if op.Certificates[i].Name == name {
			op.Certificates[i].ExpiryDate = expiry
		}
	}
	return op
}

func buildSiteFilling(today generic.TimePoint) workforce.Snapshot {
	site := demoSite("site-riverside", "Riverside Block A", "Fit-out", today.AddDays(-2), today.AddDays(9), 2)
	return workforce.Snapshot{
		Clients: []workforce.Client{demoClient()},
		Sites: []workforce.Site{
			site,
			demoSite("site-quay", "Quay Street", "Groundworks", today.AddDays(14), today.AddDays(40), 0),
		},
		Operatives: []workforce.Operative{
			certified("op-ava", "Ava", "Thompson", "Joiner", today),
			certified("op-ben", "Ben", "Clarke", "Electrician", today),
			certified("op-cal", "Cal", "Morgan", "Labourer", today),
		},
		Assignments: []workforce.Assignment{{
			ID:          "asg-ava-riverside",
			OperativeID: "op-ava",
			SiteID:      site.ID,
			Period:      site.Period(),
			Status:      workforce.StatusDeployed,
			CreatedAt:   today.AddDays(-5),
		}},
	}
}

func buildExpiringCerts(today generic.TimePoint) workforce.Snapshot {
	expiring := withExpiry(certified("op-dan", "Dan", "Hughes", "Plumber", today), "Medical", today.AddDays(10))
	expired := withExpiry(certified("op-eve", "Eve", "Patel", "Joiner", today), "CSCS", today.AddDays(-3))
	partial := workforce.Operative{
		ID: "op-fin", FirstName: "Fin", LastName: "Walsh", Trade: "Labourer",
		Certificates: []workforce.Certificate{demoCert("op-fin", "CSCS", today.AddDays(200))},
	}
	return workforce.Snapshot{
		Clients: []workforce.Client{demoClient()},
		Sites:   []workforce.Site{demoSite("site-riverside", "Riverside Block A", "Fit-out", today.AddDays(-2), today.AddDays(9), 4)},
		Operatives: []workforce.Operative{
			certified("op-cara", "Cara", "Doyle", "Electrician", today),
			expiring,
			expired,
			partial,
			{ID: "op-gus", FirstName: "Gus", LastName: "Reid", Trade: "Scaffolder"},
		},
	}
}

func buildRestrictions(today generic.TimePoint) workforce.Snapshot {
	hal := certified("op-hal", "Hal", "Evans", "Joiner", today)
	hal.Restrictions = []workforce.Restriction{{
		ID: "rst-hal-ian", TargetType: workforce.TargetOperative, TargetID: "op-ian", Note: "prior incident",
	}}
	jo := certified("op-jo", "Jo", "Kerr", "Electrician", today)
	jo.Restrictions = []workforce.Restriction{{
		ID: "rst-jo-northgate", TargetType: workforce.TargetClient, TargetID: "client-northgate", Note: "client request",
	}}
	site := demoSite("site-riverside", "Riverside Block A", "Fit-out", today.AddDays(-2), today.AddDays(9), 3)
	return workforce.Snapshot{
		Clients:    []workforce.Client{demoClient()},
		Sites:      []workforce.Site{site},
		Operatives: []workforce.Operative{hal, certified("op-ian", "Ian", "Shaw", "Labourer", today), jo},
		Assignments: []workforce.Assignment{{
			ID: "asg-hal-riverside", OperativeID: "op-hal", SiteID: site.ID,
			Period: site.Period(), Status: workforce.StatusDeployed, CreatedAt: today.AddDays(-3),
		}},
	}
}

func buildAsbestos(today generic.TimePoint) workforce.Snapshot {
	licensed := certified("op-kat", "Kat", "Lowe", "Asbestos Operative", today)
	for _, name := range workforce.DefaultVocabulary.Asbestos {
		c := demoCert("op-kat", name, today.AddDays(300))
		c.Type = workforce.CertAsbestos
		licensed.Certificates = append(licensed.Certificates, c)
	}
	return workforce.Snapshot{
		Clients: []workforce.Client{demoClient()},
		Sites: []workforce.Site{
			demoSite("site-mill", "Old Mill Strip-out", "Asbestos Removal", today.AddDays(3), today.AddDays(17), 2),
		},
		Operatives: []workforce.Operative{licensed, certified("op-lee", "Lee", "Marsh", "Labourer", today)},
	}
}
