// Package workforce implements the deployment engine: compliance evaluation,
// eligibility checks, assignment scheduling and aggregate reporting over
// operatives, construction sites, assignments and clients.
//
// Everything in this package is a function of the snapshot it is handed.
// Nothing is cached between calls and nothing here performs I/O; the
// Service type composes these functions with an injected Store.
package workforce

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/deploy-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OperativeID string
type SiteID string
type ClientID string
type AssignmentID string

// =============================================================================
// OPERATIVE
// =============================================================================

// Operative is a deployable field worker.
type Operative struct {
	ID             OperativeID
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	EmploymentType string // e.g. "PAYE", "CIS", "Agency"
	Trade          string
	Certificates   []Certificate
	Restrictions   []Restriction
}

// DisplayName is "First Last", or the id when no name is recorded.
func (o Operative) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(o.FirstName) + " " + strings.TrimSpace(o.LastName))
	if name == "" {
		return string(o.ID)
	}
	return name
}

// =============================================================================
// COMPLIANCE CERTIFICATE
// =============================================================================

type CertStatus string

const (
	CertValid        CertStatus = "VALID"
	CertExpiringSoon CertStatus = "EXPIRING_SOON"
	CertExpired      CertStatus = "EXPIRED"
	CertInvalid      CertStatus = "INVALID"
)

// IsRisk is true for stored statuses that rule out compliance regardless
// of the expiry date.
func (s CertStatus) IsRisk() bool {
	switch CertStatus(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case CertExpiringSoon, CertExpired, CertInvalid:
		return true
	}
	return false
}

type CertType string

const (
	CertGeneral  CertType = "GENERAL"
	CertAsbestos CertType = "ASBESTOS"
)

// Normalized upper-cases the tag; an empty tag reads as GENERAL.
func (t CertType) Normalized() CertType {
	n := CertType(strings.ToUpper(strings.TrimSpace(string(t))))
	if n == "" {
		return CertGeneral
	}
	return n
}

// Certificate is a dated credential held by one operative.
type Certificate struct {
	ID          string
	Name        string // matched case-insensitively against required types
	Provider    string
	IssueDate   generic.TimePoint
	ExpiryDate  generic.TimePoint // zero when missing or unparsable
	Status      CertStatus
	DocumentURL string // opaque, produced by the upload pipeline
	Type        CertType
}

// =============================================================================
// RESTRICTIONS (UNABLE TO WORK WITH)
// =============================================================================

type TargetType string

const (
	TargetClient    TargetType = "CLIENT"
	TargetOperative TargetType = "OPERATIVE"
)

// Restriction is a directional incompatibility recorded on one operative.
type Restriction struct {
	ID         string
	TargetType TargetType
	TargetID   string // ClientID or OperativeID depending on TargetType
	Note       string
}

func (r Restriction) targets(kind TargetType, id string) bool {
	return strings.EqualFold(strings.TrimSpace(string(r.TargetType)), string(kind)) && r.TargetID == id
}

// =============================================================================
// CLIENT
// =============================================================================

// JobType is a client's pay/cost rate for one kind of project.
type JobType struct {
	Name       string
	PayRate    decimal.Decimal // paid to the operative per day
	ClientCost decimal.Decimal // charged to the client per day
}

// DailyMargin is ClientCost - PayRate.
func (j JobType) DailyMargin() decimal.Decimal {
	return j.ClientCost.Sub(j.PayRate)
}

type Client struct {
	ID       ClientID
	Name     string
	JobTypes []JobType
}

// JobType returns the job type whose name equals projectType.
func (c Client) JobType(projectType string) (JobType, bool) {
	for _, jt := range c.JobTypes {
		if jt.Name == projectType {
			return jt, true
		}
	}
	return JobType{}, false
}

// =============================================================================
// CONSTRUCTION SITE
// =============================================================================

// Site is a fixed-address, time-bounded project.
type Site struct {
	ID             SiteID
	ClientID       ClientID
	Name           string
	Address        string
	Start          generic.TimePoint
	End            generic.TimePoint
	RequiredTrades []string
	Capacity       Capacity
	// FulfillmentRequired keeps an under-filled site in the "needs
	// attention" count. Independent of Capacity.
	FulfillmentRequired bool
	ProjectType         string
}

func (s Site) Period() generic.Period { return generic.NewPeriod(s.Start, s.End) }

// HasDates is true when both bounds are known.
func (s Site) HasDates() bool { return s.Period().IsDefined() }

// =============================================================================
// ASSIGNMENT (SITE OPERATIVE)
// =============================================================================

// Assignment links one operative to one site for an inclusive date range.
// An operative may hold overlapping assignments.
type Assignment struct {
	ID          AssignmentID
	OperativeID OperativeID
	SiteID      SiteID
	Period      generic.Period
	Status      AssignmentStatus
	CreatedAt   generic.TimePoint
}

// =============================================================================
// SNAPSHOT - The full current collections
// =============================================================================

// Snapshot is what the store returned on the last read. Every engine call
// treats it as the complete current state.
type Snapshot struct {
	Operatives  []Operative
	Sites       []Site
	Assignments []Assignment
	Clients     []Client
}

func (s Snapshot) OperativesByID() map[OperativeID]Operative {
	out := make(map[OperativeID]Operative, len(s.Operatives))
	for _, o := range s.Operatives {
		out[o.ID] = o
	}
	return out
}

func (s Snapshot) Operative(id OperativeID) (Operative, bool) {
	for _, o := range s.Operatives {
		if o.ID == id {
			return o, true
		}
	}
	return Operative{}, false
}

func (s Snapshot) Site(id SiteID) (Site, bool) {
	for _, site := range s.Sites {
		if site.ID == id {
			return site, true
		}
	}
	return Site{}, false
}

func (s Snapshot) Client(id ClientID) (Client, bool) {
	for _, c := range s.Clients {
		if c.ID == id {
			return c, true
		}
	}
	return Client{}, false
}

// OperativeIDsOnSite returns the distinct operatives assigned to a site.
func (s Snapshot) OperativeIDsOnSite(id SiteID) []OperativeID {
	seen := make(map[OperativeID]bool)
	var out []OperativeID
	for _, a := range s.Assignments {
		if a.SiteID != id || seen[a.OperativeID] {
			continue
		}
		seen[a.OperativeID] = true
		out = append(out, a.OperativeID)
	}
	return out
}
