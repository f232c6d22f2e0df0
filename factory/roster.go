/*
Package factory converts roster files into workforce snapshots.

PURPOSE:
  A roster is the full set of operatives, sites, clients and assignments
  written by hand or exported from another system. The factory turns one
  into a workforce.Snapshot that can seed a store or be evaluated directly
  by the CLI, without code changes.

FORMATS:
  JSON and YAML share one schema. Field names are camelCase:

  operatives:
    - id: O1
      firstName: Olive
      lastName: Oak
      certificates:
        - name: CSCS
          expiryDate: 2026-01-31
      restrictions:
        - targetType: OPERATIVE
          targetId: O2
          note: prior incident
  sites:
    - id: S
      clientId: C
      startDate: 2024-03-04
      endDate: 2024-03-15
      maxOperatives: 2        # 0 or absent = uncapped
      projectType: Fit-out
  clients:
    - id: C
      jobTypes:
        - name: Fit-out
          payRate: 20         # numbers or strings
          clientCost: "35.00"
  assignments:
    - id: a1
      operativeId: O1
      siteId: S
      startDate: 2024-03-04
      endDate: 2024-03-15
      status: DEPLOYED

TOLERANCE:
  Bad dates and money never fail the parse. They become zero values and
  are listed in RosterReport.Invalid, the same way the engine treats
  unparsable dates elsewhere. Only structurally broken documents error.

USAGE:
  snap, report, err := factory.LoadRosterFile("roster.yaml")
  store := memory.NewFromSnapshot(snap)

SEE ALSO:
  - workforce/types.go: the snapshot types produced here
  - api/handlers.go: POST /api/roster/import
  - cmd/deployd: report and check-compliance commands
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
	"gopkg.in/yaml.v3"
)

// Format selects the roster encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported roster extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
}

// =============================================================================
// SCHEMA TYPES
// =============================================================================

type RosterJSON struct {
	Operatives  []OperativeJSON  `json:"operatives" yaml:"operatives"`
	Sites       []SiteJSON       `json:"sites" yaml:"sites"`
	Clients     []ClientJSON     `json:"clients" yaml:"clients"`
	Assignments []AssignmentJSON `json:"assignments" yaml:"assignments"`
}

type OperativeJSON struct {
	ID             string            `json:"id" yaml:"id"`
	FirstName      string            `json:"firstName" yaml:"firstName"`
	LastName       string            `json:"lastName" yaml:"lastName"`
	Email          string            `json:"email,omitempty" yaml:"email,omitempty"`
	Phone          string            `json:"phone,omitempty" yaml:"phone,omitempty"`
	EmploymentType string            `json:"employmentType,omitempty" yaml:"employmentType,omitempty"`
	Trade          string            `json:"trade,omitempty" yaml:"trade,omitempty"`
	Certificates   []CertificateJSON `json:"certificates,omitempty" yaml:"certificates,omitempty"`
	Restrictions   []RestrictionJSON `json:"restrictions,omitempty" yaml:"restrictions,omitempty"`
}

type CertificateJSON struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Provider    string `json:"provider,omitempty" yaml:"provider,omitempty"`
	IssueDate   string `json:"issueDate,omitempty" yaml:"issueDate,omitempty"`
	ExpiryDate  string `json:"expiryDate,omitempty" yaml:"expiryDate,omitempty"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
	DocumentURL string `json:"documentUrl,omitempty" yaml:"documentUrl,omitempty"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
}

type RestrictionJSON struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	TargetType string `json:"targetType" yaml:"targetType"`
	TargetID   string `json:"targetId" yaml:"targetId"`
	Note       string `json:"note,omitempty" yaml:"note,omitempty"`
}

type SiteJSON struct {
	ID             string   `json:"id" yaml:"id"`
	ClientID       string   `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	Name           string   `json:"name,omitempty" yaml:"name,omitempty"`
	Address        string   `json:"address,omitempty" yaml:"address,omitempty"`
	StartDate      string   `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate        string   `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	RequiredTrades []string `json:"requiredTrades,omitempty" yaml:"requiredTrades,omitempty"`
	MaxOperatives  int      `json:"maxOperatives,omitempty" yaml:"maxOperatives,omitempty"`
	// FulfillmentRequired defaults to true when absent.
	FulfillmentRequired *bool  `json:"fulfillmentRequired,omitempty" yaml:"fulfillmentRequired,omitempty"`
	ProjectType         string `json:"projectType,omitempty" yaml:"projectType,omitempty"`
}

type ClientJSON struct {
	ID       string        `json:"id" yaml:"id"`
	Name     string        `json:"name,omitempty" yaml:"name,omitempty"`
	JobTypes []JobTypeJSON `json:"jobTypes,omitempty" yaml:"jobTypes,omitempty"`
}

type JobTypeJSON struct {
	Name       string `json:"name" yaml:"name"`
	PayRate    Amount `json:"payRate" yaml:"payRate"`
	ClientCost Amount `json:"clientCost" yaml:"clientCost"`
}

type AssignmentJSON struct {
	ID          string `json:"id" yaml:"id"`
	OperativeID string `json:"operativeId" yaml:"operativeId"`
	SiteID      string `json:"siteId" yaml:"siteId"`
	StartDate   string `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
}

// Amount holds a money value as written, number or string. It is parsed
// into a decimal when the roster is converted.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(data)
	return nil
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: money must be a scalar", node.Line)
	}
	*a = Amount(node.Value)
	return nil
}

// =============================================================================
// REPORT
// =============================================================================

// InvalidField is a value that could not be parsed and was zeroed.
type InvalidField struct {
	Kind  string // "operative", "site", "assignment", "client"
	ID    string
	Field string
	Value string
}

func (f InvalidField) String() string {
	return fmt.Sprintf("%s %s: invalid %s %q", f.Kind, f.ID, f.Field, f.Value)
}

// RosterReport lists what the factory had to degrade.
type RosterReport struct {
	Invalid []InvalidField
}

func (r RosterReport) OK() bool { return len(r.Invalid) == 0 }

// =============================================================================
// PARSING
// =============================================================================

// ParseRoster decodes data in the given format and converts it.
func ParseRoster(data []byte, format Format) (workforce.Snapshot, RosterReport, error) {
	var rj RosterJSON
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &rj); err != nil {
			return workforce.Snapshot{}, RosterReport{}, fmt.Errorf("failed to parse roster JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &rj); err != nil {
			return workforce.Snapshot{}, RosterReport{}, fmt.Errorf("failed to parse roster YAML: %w", err)
		}
	default:
		return workforce.Snapshot{}, RosterReport{}, fmt.Errorf("unknown roster format %q", format)
	}
	snap, report := FromJSON(rj)
	return snap, report, nil
}

// LoadRosterFile reads path and parses it by extension.
func LoadRosterFile(path string) (workforce.Snapshot, RosterReport, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return workforce.Snapshot{}, RosterReport{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return workforce.Snapshot{}, RosterReport{}, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data, format)
}

// FromJSON converts the decoded schema into a snapshot.
func FromJSON(rj RosterJSON) (workforce.Snapshot, RosterReport) {
	c := converter{}
	snap := workforce.Snapshot{
		Operatives:  make([]workforce.Operative, 0, len(rj.Operatives)),
		Sites:       make([]workforce.Site, 0, len(rj.Sites)),
		Clients:     make([]workforce.Client, 0, len(rj.Clients)),
		Assignments: make([]workforce.Assignment, 0, len(rj.Assignments)),
	}
	for _, o := range rj.Operatives {
		snap.Operatives = append(snap.Operatives, c.operative(o))
	}
	for _, s := range rj.Sites {
		snap.Sites = append(snap.Sites, c.site(s))
	}
	for _, cl := range rj.Clients {
		snap.Clients = append(snap.Clients, c.client(cl))
	}
	for _, a := range rj.Assignments {
		snap.Assignments = append(snap.Assignments, c.assignment(a))
	}
	return snap, c.report
}

type converter struct {
	report RosterReport
}

// date parses an optional date; empty stays zero silently.
func (c *converter) date(kind, id, field, value string) generic.TimePoint {
	if strings.TrimSpace(value) == "" {
		return generic.TimePoint{}
	}
	tp, ok := generic.ParseDate(value)
	if !ok {
		c.report.Invalid = append(c.report.Invalid, InvalidField{Kind: kind, ID: id, Field: field, Value: value})
	}
	return tp
}

// span records a range whose end falls before its start. The dates are
// kept as written.
func (c *converter) span(kind, id string, start, end generic.TimePoint) {
	if start.IsZero() || end.IsZero() || !end.Before(start) {
		return
	}
	c.report.Invalid = append(c.report.Invalid, InvalidField{
		Kind: kind, ID: id, Field: "dateRange", Value: start.String() + ".." + end.String(),
	})
}

func (c *converter) amount(id, field string, value Amount) decimal.Decimal {
	s := strings.TrimSpace(string(value))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		c.report.Invalid = append(c.report.Invalid, InvalidField{Kind: "client", ID: id, Field: field, Value: s})
		return decimal.Zero
	}
	return d
}

func (c *converter) operative(o OperativeJSON) workforce.Operative {
	op := workforce.Operative{
		ID:             workforce.OperativeID(o.ID),
		FirstName:      o.FirstName,
		LastName:       o.LastName,
		Email:          o.Email,
		Phone:          o.Phone,
		EmploymentType: o.EmploymentType,
		Trade:          o.Trade,
	}
	for i, cj := range o.Certificates {
		id := cj.ID
		if id == "" {
			id = fmt.Sprintf("%s-cert-%d", o.ID, i+1)
		}
		op.Certificates = append(op.Certificates, workforce.Certificate{
			ID:          id,
			Name:        cj.Name,
			Provider:    cj.Provider,
			IssueDate:   c.date("operative", o.ID, "certificate "+cj.Name+" issueDate", cj.IssueDate),
			ExpiryDate:  c.date("operative", o.ID, "certificate "+cj.Name+" expiryDate", cj.ExpiryDate),
			Status:      workforce.CertStatus(strings.ToUpper(strings.TrimSpace(cj.Status))),
			DocumentURL: cj.DocumentURL,
			Type:        workforce.CertType(cj.Type).Normalized(),
		})
	}
	for i, rj := range o.Restrictions {
		id := rj.ID
		if id == "" {
			id = fmt.Sprintf("%s-restriction-%d", o.ID, i+1)
		}
		op.Restrictions = append(op.Restrictions, workforce.Restriction{
			ID:         id,
			TargetType: workforce.TargetType(strings.ToUpper(strings.TrimSpace(rj.TargetType))),
			TargetID:   rj.TargetID,
			Note:       rj.Note,
		})
	}
	return op
}

func (c *converter) site(s SiteJSON) workforce.Site {
	required := true
	if s.FulfillmentRequired != nil {
		required = *s.FulfillmentRequired
	}
	start := c.date("site", s.ID, "startDate", s.StartDate)
	end := c.date("site", s.ID, "endDate", s.EndDate)
	c.span("site", s.ID, start, end)
	return workforce.Site{
		ID:                  workforce.SiteID(s.ID),
		ClientID:            workforce.ClientID(s.ClientID),
		Name:                s.Name,
		Address:             s.Address,
		Start:               start,
		End:                 end,
		RequiredTrades:      s.RequiredTrades,
		Capacity:            workforce.CapacityFromMax(s.MaxOperatives),
		FulfillmentRequired: required,
		ProjectType:         s.ProjectType,
	}
}

func (c *converter) client(cj ClientJSON) workforce.Client {
	out := workforce.Client{ID: workforce.ClientID(cj.ID), Name: cj.Name}
	for _, jt := range cj.JobTypes {
		out.JobTypes = append(out.JobTypes, workforce.JobType{
			Name:       jt.Name,
			PayRate:    c.amount(cj.ID, jt.Name+" payRate", jt.PayRate),
			ClientCost: c.amount(cj.ID, jt.Name+" clientCost", jt.ClientCost),
		})
	}
	return out
}

// assignment keeps an unknown status as written; read paths compare
// statuses after normalising and ignore what they don't recognise.
func (c *converter) assignment(a AssignmentJSON) workforce.Assignment {
	status := workforce.AssignmentStatus(a.Status).Normalized()
	if !status.Valid() {
		c.report.Invalid = append(c.report.Invalid, InvalidField{Kind: "assignment", ID: a.ID, Field: "status", Value: a.Status})
	}
	start := c.date("assignment", a.ID, "startDate", a.StartDate)
	end := c.date("assignment", a.ID, "endDate", a.EndDate)
	c.span("assignment", a.ID, start, end)
	return workforce.Assignment{
		ID:          workforce.AssignmentID(a.ID),
		OperativeID: workforce.OperativeID(a.OperativeID),
		SiteID:      workforce.SiteID(a.SiteID),
		Period:      generic.NewPeriod(start, end),
		Status:      status,
	}
}

// =============================================================================
// EXPORT
// =============================================================================

// ToJSON converts a snapshot back into the roster schema.
func ToJSON(snap workforce.Snapshot) RosterJSON {
	rj := RosterJSON{}
	for _, o := range snap.Operatives {
		oj := OperativeJSON{
			ID: string(o.ID), FirstName: o.FirstName, LastName: o.LastName,
			Email: o.Email, Phone: o.Phone, EmploymentType: o.EmploymentType, Trade: o.Trade,
		}
		for _, cert := range o.Certificates {
			oj.Certificates = append(oj.Certificates, CertificateJSON{
				ID: cert.ID, Name: cert.Name, Provider: cert.Provider,
				IssueDate: cert.IssueDate.String(), ExpiryDate: cert.ExpiryDate.String(),
				Status: string(cert.Status), DocumentURL: cert.DocumentURL, Type: string(cert.Type),
			})
		}
		for _, r := range o.Restrictions {
			oj.Restrictions = append(oj.Restrictions, RestrictionJSON{ID: r.ID, TargetType: string(r.TargetType), TargetID: r.TargetID, Note: r.Note})
		}
		rj.Operatives = append(rj.Operatives, oj)
	}
	for _, s := range snap.Sites {
		required := s.FulfillmentRequired
		rj.Sites = append(rj.Sites, SiteJSON{
			ID: string(s.ID), ClientID: string(s.ClientID), Name: s.Name, Address: s.Address,
			StartDate: s.Start.String(), EndDate: s.End.String(),
			RequiredTrades: s.RequiredTrades, MaxOperatives: s.Capacity.Max(),
			FulfillmentRequired: &required, ProjectType: s.ProjectType,
		})
	}
	for _, cl := range snap.Clients {
		cj := ClientJSON{ID: string(cl.ID), Name: cl.Name}
		for _, jt := range cl.JobTypes {
			cj.JobTypes = append(cj.JobTypes, JobTypeJSON{Name: jt.Name, PayRate: Amount(jt.PayRate.String()), ClientCost: Amount(jt.ClientCost.String())})
		}
		rj.Clients = append(rj.Clients, cj)
	}
	for _, a := range snap.Assignments {
		rj.Assignments = append(rj.Assignments, AssignmentJSON{
			ID: string(a.ID), OperativeID: string(a.OperativeID), SiteID: string(a.SiteID),
			StartDate: a.Period.Start.String(), EndDate: a.Period.End.String(), Status: string(a.Status),
		})
	}
	return rj
}

// MarshalRoster encodes a snapshot in the given format.
func MarshalRoster(snap workforce.Snapshot, format Format) ([]byte, error) {
	rj := ToJSON(snap)
	switch format {
	case FormatJSON:
		return json.MarshalIndent(rj, "", "  ")
	case FormatYAML:
		return yaml.Marshal(rj)
	}
	return nil, fmt.Errorf("unknown roster format %q", format)
}
