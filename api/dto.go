/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the workforce domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

DATES:
  Every date on the wire is YYYY-MM-DD. Unknown dates are "".

MONEY:
  Decimal amounts are JSON strings ("14.50") so they survive clients that
  parse numbers as floats.

VALIDATION:
  Request types carry `validate` tags checked by the package validator
  (go-playground/validator). The custom "isodate" rule accepts only
  YYYY-MM-DD.

SEE ALSO:
  - handlers.go: Uses these types
  - workforce/types.go: Domain types these map from
*/
package api

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
)

// =============================================================================
// VALIDATOR
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("isodate", validateISODate); err != nil {
		panic(err)
	}
	return v
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

// =============================================================================
// OPERATIVES
// =============================================================================

type CertificateDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider,omitempty"`
	IssueDate   string `json:"issue_date,omitempty"`
	ExpiryDate  string `json:"expiry_date,omitempty"`
	Status      string `json:"status,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
	Type        string `json:"type,omitempty"`
}

type RestrictionDTO struct {
	ID         string `json:"id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Note       string `json:"note,omitempty"`
}

type OperativeDTO struct {
	ID             string           `json:"id"`
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	DisplayName    string           `json:"display_name"`
	Email          string           `json:"email,omitempty"`
	Phone          string           `json:"phone,omitempty"`
	EmploymentType string           `json:"employment_type,omitempty"`
	Trade          string           `json:"trade,omitempty"`
	Certificates   []CertificateDTO `json:"certificates"`
	Restrictions   []RestrictionDTO `json:"restrictions"`
}

type CertificateRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Provider    string `json:"provider"`
	IssueDate   string `json:"issue_date" validate:"omitempty,isodate"`
	ExpiryDate  string `json:"expiry_date" validate:"omitempty,isodate"`
	Status      string `json:"status" validate:"omitempty,oneof=VALID EXPIRING_SOON EXPIRED INVALID valid expiring_soon expired invalid"`
	DocumentURL string `json:"document_url" validate:"omitempty,url"`
	Type        string `json:"type" validate:"omitempty,oneof=GENERAL ASBESTOS general asbestos"`
}

type RestrictionRequest struct {
	ID         string `json:"id"`
	TargetType string `json:"target_type" validate:"required,oneof=CLIENT OPERATIVE client operative"`
	TargetID   string `json:"target_id" validate:"required"`
	Note       string `json:"note"`
}

type CreateOperativeRequest struct {
	ID             string               `json:"id" validate:"required"`
	FirstName      string               `json:"first_name" validate:"required"`
	LastName       string               `json:"last_name"`
	Email          string               `json:"email" validate:"omitempty,email"`
	Phone          string               `json:"phone"`
	EmploymentType string               `json:"employment_type"`
	Trade          string               `json:"trade"`
	Certificates   []CertificateRequest `json:"certificates" validate:"dive"`
	Restrictions   []RestrictionRequest `json:"restrictions" validate:"dive"`
}

type UpsertCertificatesRequest struct {
	Certificates []CertificateRequest `json:"certificates" validate:"dive"`
}

type BulkCertificatesRequest struct {
	OperativeIDs []string             `json:"operative_ids" validate:"required,min=1,dive,required"`
	Certificates []CertificateRequest `json:"certificates" validate:"required,min=1,dive"`
}

type BulkCertificatesResponse struct {
	Updated []OperativeDTO `json:"updated"`
	Missing []string       `json:"missing"`
}

// =============================================================================
// COMPLIANCE
// =============================================================================

type ExpiryDTO struct {
	Type     string `json:"type"`
	DaysLeft int    `json:"days_left"`
	Label    string `json:"label"`
}

type ComplianceDTO struct {
	Overall  string      `json:"overall"`
	Missing  []string    `json:"missing"`
	Expiring []ExpiryDTO `json:"expiring"`
	Undated  []string    `json:"undated"`
}

type OperativeComplianceDTO struct {
	OperativeID string        `json:"operative_id"`
	DisplayName string        `json:"display_name"`
	Compliance  ComplianceDTO `json:"compliance"`
}

// =============================================================================
// SITES AND CLIENTS
// =============================================================================

type SiteDTO struct {
	ID                  string   `json:"id"`
	ClientID            string   `json:"client_id,omitempty"`
	Name                string   `json:"name"`
	Address             string   `json:"address,omitempty"`
	StartDate           string   `json:"start_date"`
	EndDate             string   `json:"end_date"`
	RequiredTrades      []string `json:"required_trades"`
	MaxOperatives       int      `json:"max_operatives"`
	Uncapped            bool     `json:"uncapped"`
	FulfillmentRequired bool     `json:"fulfillment_required"`
	ProjectType         string   `json:"project_type,omitempty"`
}

type CreateSiteRequest struct {
	ID             string   `json:"id" validate:"required"`
	ClientID       string   `json:"client_id"`
	Name           string   `json:"name" validate:"required"`
	Address        string   `json:"address"`
	StartDate      string   `json:"start_date" validate:"omitempty,isodate"`
	EndDate        string   `json:"end_date" validate:"omitempty,isodate"`
	RequiredTrades []string `json:"required_trades"`
	// 0 = uncapped.
	MaxOperatives int `json:"max_operatives" validate:"gte=0"`
	// Defaults to true when omitted.
	FulfillmentRequired *bool  `json:"fulfillment_required"`
	ProjectType         string `json:"project_type"`
}

type SiteFillDTO struct {
	Site                SiteDTO `json:"site"`
	HeadCount           int     `json:"head_count"`
	Deployed            int     `json:"deployed"`
	AssignedNotDeployed int     `json:"assigned_not_deployed"`
	Offsite             int     `json:"offsite"`
	Fill                string  `json:"fill"`
	CanAssign           bool    `json:"can_assign"`
	Active              bool    `json:"active"`
}

type JobTypeDTO struct {
	Name        string          `json:"name"`
	PayRate     decimal.Decimal `json:"pay_rate"`
	ClientCost  decimal.Decimal `json:"client_cost"`
	DailyMargin decimal.Decimal `json:"daily_margin"`
}

type ClientDTO struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	JobTypes []JobTypeDTO `json:"job_types"`
}

type JobTypeRequest struct {
	Name       string          `json:"name" validate:"required"`
	PayRate    decimal.Decimal `json:"pay_rate"`
	ClientCost decimal.Decimal `json:"client_cost"`
}

type CreateClientRequest struct {
	ID       string           `json:"id" validate:"required"`
	Name     string           `json:"name" validate:"required"`
	JobTypes []JobTypeRequest `json:"job_types" validate:"dive"`
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

type AssignmentDTO struct {
	ID          string `json:"id"`
	OperativeID string `json:"operative_id"`
	SiteID      string `json:"site_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// AssignRequest is used by both the check and the assign endpoints. The
// dates are only read when the site has no complete date range.
type AssignRequest struct {
	OperativeID          string   `json:"operative_id" validate:"required"`
	SiteID               string   `json:"site_id" validate:"required"`
	StartDate            string   `json:"start_date" validate:"omitempty,isodate"`
	EndDate              string   `json:"end_date" validate:"omitempty,isodate"`
	SelectedOperativeIDs []string `json:"selected_operative_ids"`
	Force                bool     `json:"force"`
}

type ConflictDTO struct {
	AssignmentID string `json:"assignment_id"`
	SiteID       string `json:"site_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	OverlapDays  int    `json:"overlap_days"`
}

type WarningDTO struct {
	Kind      string `json:"kind"`
	BlockerID string `json:"blocker_id"`
	BlockedID string `json:"blocked_id"`
	Note      string `json:"note,omitempty"`
	Message   string `json:"message"`
}

type AssignmentCheckDTO struct {
	OperativeID     string        `json:"operative_id"`
	SiteID          string        `json:"site_id"`
	StartDate       string        `json:"start_date"`
	EndDate         string        `json:"end_date"`
	Conflicts       []ConflictDTO `json:"conflicts"`
	Warnings        []WarningDTO  `json:"warnings"`
	RequiredTypes   []string      `json:"required_types"`
	Compliance      ComplianceDTO `json:"compliance"`
	CapacityReached bool          `json:"capacity_reached"`
	HasFindings     bool          `json:"has_findings"`
}

type AssignResponse struct {
	Applied    bool               `json:"applied"`
	Assignment *AssignmentDTO     `json:"assignment,omitempty"`
	Check      AssignmentCheckDTO `json:"check"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type StatusChangeDTO struct {
	AssignmentID string `json:"assignment_id"`
	From         string `json:"from"`
	To           string `json:"to"`
}

type RollResponse struct {
	Changes []StatusChangeDTO `json:"changes"`
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

type EligibilityRequest struct {
	CandidateID          string   `json:"candidate_id" validate:"required"`
	ClientID             string   `json:"client_id"`
	SelectedOperativeIDs []string `json:"selected_operative_ids"`
}

type EligibilityResponse struct {
	Eligible bool         `json:"eligible"`
	Warnings []WarningDTO `json:"warnings"`
	Messages []string     `json:"messages"`
}

// =============================================================================
// REPORTS
// =============================================================================

type DashboardDTO struct {
	AsOf              string                   `json:"as_of"`
	WeekStart         string                   `json:"week_start"`
	WeekEnd           string                   `json:"week_end"`
	DeployedNow       []string                 `json:"deployed_now"`
	ActiveSites       []string                 `json:"active_sites"`
	NotFulfilledCount int                      `json:"not_fulfilled_count"`
	WeeklyProfit      decimal.Decimal          `json:"weekly_profit"`
	Sites             []SiteFillDTO            `json:"sites"`
	NeedsAttention    []OperativeComplianceDTO `json:"needs_attention"`
}

type ProfitDTO struct {
	WeekStart string          `json:"week_start"`
	WeekEnd   string          `json:"week_end"`
	Profit    decimal.Decimal `json:"profit"`
}

// =============================================================================
// SCENARIOS AND ROSTERS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type ImportRosterResponse struct {
	Operatives  int      `json:"operatives"`
	Sites       int      `json:"sites"`
	Clients     int      `json:"clients"`
	Assignments int      `json:"assignments"`
	Invalid     []string `json:"invalid"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO
// =============================================================================

func toOperativeDTO(o workforce.Operative) OperativeDTO {
	dto := OperativeDTO{
		ID:             string(o.ID),
		FirstName:      o.FirstName,
		LastName:       o.LastName,
		DisplayName:    o.DisplayName(),
		Email:          o.Email,
		Phone:          o.Phone,
		EmploymentType: o.EmploymentType,
		Trade:          o.Trade,
		Certificates:   make([]CertificateDTO, 0, len(o.Certificates)),
		Restrictions:   make([]RestrictionDTO, 0, len(o.Restrictions)),
	}
	for _, c := range o.Certificates {
		dto.Certificates = append(dto.Certificates, CertificateDTO{
			ID:          c.ID,
			Name:        c.Name,
			Provider:    c.Provider,
			IssueDate:   c.IssueDate.String(),
			ExpiryDate:  c.ExpiryDate.String(),
			Status:      string(c.Status),
			DocumentURL: c.DocumentURL,
			Type:        string(c.Type),
		})
	}
	for _, r := range o.Restrictions {
		dto.Restrictions = append(dto.Restrictions, toRestrictionDTO(r))
	}
	return dto
}

func toOperativeDTOs(ops []workforce.Operative) []OperativeDTO {
	out := make([]OperativeDTO, 0, len(ops))
	for _, o := range ops {
		out = append(out, toOperativeDTO(o))
	}
	return out
}

func toRestrictionDTO(r workforce.Restriction) RestrictionDTO {
	return RestrictionDTO{ID: r.ID, TargetType: string(r.TargetType), TargetID: r.TargetID, Note: r.Note}
}

func toComplianceDTO(r workforce.ComplianceResult) ComplianceDTO {
	dto := ComplianceDTO{
		Overall:  string(r.Overall),
		Missing:  nonNil(r.Missing),
		Expiring: make([]ExpiryDTO, 0, len(r.Expiring)),
		Undated:  nonNil(r.Undated),
	}
	for _, e := range r.Expiring {
		dto.Expiring = append(dto.Expiring, ExpiryDTO{Type: e.Type, DaysLeft: e.DaysLeft, Label: e.Label()})
	}
	return dto
}

func toSiteDTO(s workforce.Site) SiteDTO {
	return SiteDTO{
		ID:                  string(s.ID),
		ClientID:            string(s.ClientID),
		Name:                s.Name,
		Address:             s.Address,
		StartDate:           s.Start.String(),
		EndDate:             s.End.String(),
		RequiredTrades:      nonNil(s.RequiredTrades),
		MaxOperatives:       s.Capacity.Max(),
		Uncapped:            !s.Capacity.IsCapped(),
		FulfillmentRequired: s.FulfillmentRequired,
		ProjectType:         s.ProjectType,
	}
}

func toSiteFillDTO(f workforce.SiteFill) SiteFillDTO {
	return SiteFillDTO{
		Site:                toSiteDTO(f.Site),
		HeadCount:           f.HeadCount,
		Deployed:            f.Deployed,
		AssignedNotDeployed: f.AssignedNot,
		Offsite:             f.Offsite,
		Fill:                string(f.Fill),
		CanAssign:           f.CanAssign,
		Active:              f.Active,
	}
}

func toClientDTO(c workforce.Client) ClientDTO {
	dto := ClientDTO{ID: string(c.ID), Name: c.Name, JobTypes: make([]JobTypeDTO, 0, len(c.JobTypes))}
	for _, jt := range c.JobTypes {
		dto.JobTypes = append(dto.JobTypes, JobTypeDTO{
			Name:        jt.Name,
			PayRate:     jt.PayRate,
			ClientCost:  jt.ClientCost,
			DailyMargin: jt.DailyMargin(),
		})
	}
	return dto
}

func toAssignmentDTO(a workforce.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:          string(a.ID),
		OperativeID: string(a.OperativeID),
		SiteID:      string(a.SiteID),
		StartDate:   a.Period.Start.String(),
		EndDate:     a.Period.End.String(),
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt.String(),
	}
}

func toWarningDTOs(ws []workforce.Warning) []WarningDTO {
	out := make([]WarningDTO, 0, len(ws))
	for _, w := range ws {
		out = append(out, WarningDTO{
			Kind:      string(w.Kind),
			BlockerID: string(w.BlockerID),
			BlockedID: w.BlockedID,
			Note:      w.Note,
			Message:   w.Message,
		})
	}
	return out
}

func toCheckDTO(c workforce.AssignmentCheck) AssignmentCheckDTO {
	dto := AssignmentCheckDTO{
		OperativeID:     string(c.Operative.ID),
		SiteID:          string(c.Site.ID),
		StartDate:       c.Period.Start.String(),
		EndDate:         c.Period.End.String(),
		Conflicts:       make([]ConflictDTO, 0, len(c.Conflicts)),
		Warnings:        toWarningDTOs(c.Warnings),
		RequiredTypes:   nonNil(c.RequiredTypes),
		Compliance:      toComplianceDTO(c.Compliance),
		CapacityReached: c.CapacityReached,
		HasFindings:     c.HasFindings(),
	}
	for _, conflict := range c.Conflicts {
		dto.Conflicts = append(dto.Conflicts, ConflictDTO{
			AssignmentID: string(conflict.Existing.ID),
			SiteID:       string(conflict.Existing.SiteID),
			StartDate:    conflict.Existing.Period.Start.String(),
			EndDate:      conflict.Existing.Period.End.String(),
			OverlapDays:  conflict.OverlapDays,
		})
	}
	return dto
}

func toDashboardDTO(d workforce.Dashboard) DashboardDTO {
	dto := DashboardDTO{
		AsOf:              d.AsOf.String(),
		WeekStart:         d.Week.Start.String(),
		WeekEnd:           d.Week.End.String(),
		DeployedNow:       make([]string, 0, len(d.DeployedNow)),
		ActiveSites:       make([]string, 0, len(d.ActiveSites)),
		NotFulfilledCount: d.NotFulfilledCount,
		WeeklyProfit:      d.WeeklyProfit,
		Sites:             make([]SiteFillDTO, 0, len(d.Sites)),
		NeedsAttention:    make([]OperativeComplianceDTO, 0, len(d.NeedsAttention)),
	}
	for _, id := range d.DeployedNow {
		dto.DeployedNow = append(dto.DeployedNow, string(id))
	}
	for _, id := range d.ActiveSites {
		dto.ActiveSites = append(dto.ActiveSites, string(id))
	}
	for _, f := range d.Sites {
		dto.Sites = append(dto.Sites, toSiteFillDTO(f))
	}
	for _, oc := range d.NeedsAttention {
		dto.NeedsAttention = append(dto.NeedsAttention, OperativeComplianceDTO{
			OperativeID: string(oc.Operative.ID),
			DisplayName: oc.Operative.DisplayName(),
			Compliance:  toComplianceDTO(oc.Result),
		})
	}
	return dto
}

// =============================================================================
// REQUEST -> DOMAIN
// =============================================================================

// Dates were validated by the isodate rule, so a failed parse here means
// the field was empty.
func parseDay(s string) generic.TimePoint {
	tp, _ := generic.ParseDate(s)
	return tp
}

func (c CertificateRequest) toDomain() workforce.Certificate {
	return workforce.Certificate{
		ID:          c.ID,
		Name:        strings.TrimSpace(c.Name),
		Provider:    c.Provider,
		IssueDate:   parseDay(c.IssueDate),
		ExpiryDate:  parseDay(c.ExpiryDate),
		Status:      workforce.CertStatus(strings.ToUpper(c.Status)),
		DocumentURL: c.DocumentURL,
		Type:        workforce.CertType(c.Type).Normalized(),
	}
}

func certificatesFromRequest(reqs []CertificateRequest) []workforce.Certificate {
	out := make([]workforce.Certificate, 0, len(reqs))
	for _, c := range reqs {
		out = append(out, c.toDomain())
	}
	return out
}

func (r RestrictionRequest) toDomain() workforce.Restriction {
	return workforce.Restriction{
		ID:         r.ID,
		TargetType: workforce.TargetType(strings.ToUpper(r.TargetType)),
		TargetID:   r.TargetID,
		Note:       r.Note,
	}
}

func (r CreateOperativeRequest) toDomain() workforce.Operative {
	op := workforce.Operative{
		ID:             workforce.OperativeID(r.ID),
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Phone:          r.Phone,
		EmploymentType: r.EmploymentType,
		Trade:          r.Trade,
		Certificates:   certificatesFromRequest(r.Certificates),
	}
	for _, res := range r.Restrictions {
		op.Restrictions = append(op.Restrictions, res.toDomain())
	}
	return op
}

// toDomain returns ErrInvalidPeriod when both dates are set and reversed.
func (r CreateSiteRequest) toDomain() (workforce.Site, error) {
	required := true
	if r.FulfillmentRequired != nil {
		required = *r.FulfillmentRequired
	}
	s := workforce.Site{
		ID:                  workforce.SiteID(r.ID),
		ClientID:            workforce.ClientID(r.ClientID),
		Name:                r.Name,
		Address:             r.Address,
		Start:               parseDay(r.StartDate),
		End:                 parseDay(r.EndDate),
		RequiredTrades:      r.RequiredTrades,
		Capacity:            workforce.CapacityFromMax(r.MaxOperatives),
		FulfillmentRequired: required,
		ProjectType:         r.ProjectType,
	}
	if s.HasDates() {
		if err := s.Period().Validate(); err != nil {
			return workforce.Site{}, err
		}
	}
	return s, nil
}

func (r CreateClientRequest) toDomain() workforce.Client {
	c := workforce.Client{ID: workforce.ClientID(r.ID), Name: r.Name}
	for _, jt := range r.JobTypes {
		c.JobTypes = append(c.JobTypes, workforce.JobType{Name: jt.Name, PayRate: jt.PayRate, ClientCost: jt.ClientCost})
	}
	return c
}

func (r AssignRequest) toCommand() workforce.AssignCommand {
	cmd := workforce.AssignCommand{
		OperativeID: workforce.OperativeID(r.OperativeID),
		SiteID:      workforce.SiteID(r.SiteID),
		Force:       r.Force,
	}
	if r.StartDate != "" || r.EndDate != "" {
		p := generic.NewPeriod(parseDay(r.StartDate), parseDay(r.EndDate))
		cmd.Period = &p
	}
	for _, id := range r.SelectedOperativeIDs {
		cmd.SelectedOperativeIDs = append(cmd.SelectedOperativeIDs, workforce.OperativeID(id))
	}
	return cmd
}

func operativeIDs(ids []string) []workforce.OperativeID {
	out := make([]workforce.OperativeID, 0, len(ids))
	for _, id := range ids {
		out = append(out, workforce.OperativeID(id))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
