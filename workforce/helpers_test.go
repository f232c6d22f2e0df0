package workforce_test

import (
	"github.com/shopspring/decimal"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func period(start, end string) generic.Period {
	return generic.NewPeriod(date(start), date(end))
}

func operative(id, first, last string) workforce.Operative {
	return workforce.Operative{ID: workforce.OperativeID(id), FirstName: first, LastName: last}
}

func cert(name string, expiry generic.TimePoint) workforce.Certificate {
	return workforce.Certificate{ID: "c-" + name, Name: name, ExpiryDate: expiry, Status: workforce.CertValid}
}

func site(id, client, start, end string, max int) workforce.Site {
	s := workforce.Site{
		ID:                  workforce.SiteID(id),
		ClientID:            workforce.ClientID(client),
		Name:                id,
		Capacity:            workforce.CapacityFromMax(max),
		FulfillmentRequired: true,
	}
	s.Start, _ = generic.ParseDate(start)
	s.End, _ = generic.ParseDate(end)
	return s
}

func assignment(id, op, siteID, start, end string, status workforce.AssignmentStatus) workforce.Assignment {
	return workforce.Assignment{
		ID:          workforce.AssignmentID(id),
		OperativeID: workforce.OperativeID(op),
		SiteID:      workforce.SiteID(siteID),
		Period:      period(start, end),
		Status:      status,
	}
}

func fitOutClient() workforce.Client {
	return workforce.Client{
		ID:   "client-c",
		Name: "Client C",
		JobTypes: []workforce.JobType{
			{Name: "Fit-out", PayRate: decimal.NewFromInt(20), ClientCost: decimal.NewFromInt(35)},
		},
	}
}

// allCompliant holds every default general certificate, expiring far out.
func allCompliant(op workforce.Operative, ref generic.TimePoint) workforce.Operative {
	for _, name := range workforce.DefaultVocabulary.General {
		op.Certificates = append(op.Certificates, cert(name, ref.AddDays(365)))
	}
	return op
}
