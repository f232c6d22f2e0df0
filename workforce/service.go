/*
service.go - Application service composing the engine with a Store

PURPOSE:
  Each operation loads a fresh Snapshot, runs the pure engine functions
  over it, and applies at most one kind of write. Nothing is cached
  between calls.

CHECK-THEN-CONFIRM:
  Overlaps, eligibility warnings, compliance gaps and a full site are
  advisory. CheckAssignment returns them as data. Assign computes the same
  check and only writes when the check is clean or Force is set:

    check := svc.CheckAssignment(ctx, cmd)   // show findings
    cmd.Force = true
    res := svc.Assign(ctx, cmd)              // explicit override

EVENTS:
  Every successful write publishes one Event per changed record.
*/
package workforce

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/deploy-engine/generic"
)

// Service is safe for concurrent use when its Store is.
type Service struct {
	Store       Store
	Events      EventSink // optional
	Vocabulary  Vocabulary
	HorizonDays int
	Now         func() generic.TimePoint
	NewID       func() string
}

// NewService wires a Service with the default vocabulary, horizon, clock
// and uuid ids.
func NewService(store Store, events EventSink) *Service {
	return &Service{
		Store:       store,
		Events:      events,
		Vocabulary:  DefaultVocabulary,
		HorizonDays: DefaultHorizonDays,
		Now:         generic.Today,
		NewID:       uuid.NewString,
	}
}

func (s *Service) now() generic.TimePoint {
	if s.Now == nil {
		return generic.Today()
	}
	return s.Now()
}

func (s *Service) newID() string {
	if s.NewID == nil {
		return uuid.NewString()
	}
	return s.NewID()
}

// Today is the service clock's current date.
func (s *Service) Today() generic.TimePoint { return s.now() }

// GenerateID returns a fresh record id.
func (s *Service) GenerateID() string { return s.newID() }

func (s *Service) horizon() int {
	if s.HorizonDays <= 0 {
		return DefaultHorizonDays
	}
	return s.HorizonDays
}

func (s *Service) publish(ctx context.Context, e Event) {
	if s.Events == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	s.Events.Publish(ctx, e)
}

// Snapshot loads the current collections.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := LoadSnapshot(ctx, s.Store)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// =============================================================================
// ASSIGNMENT CHECK
// =============================================================================

type AssignCommand struct {
	OperativeID OperativeID
	SiteID      SiteID
	// Period is used only when the site has no complete date range.
	Period *generic.Period
	// SelectedOperativeIDs are operatives picked alongside this one. The
	// operatives already on site are always checked as well.
	SelectedOperativeIDs []OperativeID
	Force                bool
}

// AssignmentCheck is everything the caller should see before confirming.
type AssignmentCheck struct {
	Operative       Operative
	Site            Site
	Period          generic.Period
	Conflicts       []Conflict
	Warnings        []Warning
	RequiredTypes   []string
	Compliance      ComplianceResult
	CapacityReached bool
}

// HasFindings is true when anything advisory should be confirmed.
func (c AssignmentCheck) HasFindings() bool {
	return len(c.Conflicts) > 0 ||
		len(c.Warnings) > 0 ||
		c.CapacityReached ||
		c.Compliance.Overall != ComplianceCompliant
}

type AssignResult struct {
	Assignment Assignment
	Check      AssignmentCheck
	Applied    bool
}

// CheckAssignment is the read-only half of Assign.
func (s *Service) CheckAssignment(ctx context.Context, cmd AssignCommand) (AssignmentCheck, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return AssignmentCheck{}, err
	}
	return s.check(snap, cmd)
}

func (s *Service) check(snap Snapshot, cmd AssignCommand) (AssignmentCheck, error) {
	op, ok := snap.Operative(cmd.OperativeID)
	if !ok {
		return AssignmentCheck{}, generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(cmd.OperativeID))
	}
	site, ok := snap.Site(cmd.SiteID)
	if !ok {
		return AssignmentCheck{}, generic.NewNotFound(generic.ErrSiteNotFound, "site", string(cmd.SiteID))
	}
	period, err := ResolvePeriod(site, cmd.Period)
	if err != nil {
		return AssignmentCheck{}, err
	}

	required := RequiredTypesFor(site, s.Vocabulary)

	return AssignmentCheck{
		Operative:     op,
		Site:          site,
		Period:        period,
		Conflicts:     FindConflicts(op.ID, period, snap.Assignments, ""),
		Warnings:      CheckEligibility(op, site.ClientID, selectionFor(snap, site.ID, cmd.SelectedOperativeIDs), snap.OperativesByID()),
		RequiredTypes: required,
		Compliance: EvaluateCompliance(op, required, ComplianceOptions{
			HorizonDays: s.horizon(),
			Reference:   s.now(),
		}),
		CapacityReached: !CanAssign(site, snap.Assignments),
	}, nil
}

// selectionFor is the explicit selection followed by the operatives already
// on site, without repeats.
func selectionFor(snap Snapshot, siteID SiteID, selected []OperativeID) []OperativeID {
	seen := make(map[OperativeID]bool)
	var out []OperativeID
	for _, id := range append(append([]OperativeID(nil), selected...), snap.OperativeIDsOnSite(siteID)...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// =============================================================================
// ASSIGNMENT MUTATIONS
// =============================================================================

// Assign creates the assignment when the check is clean or cmd.Force is
// set. Otherwise it returns Applied=false and writes nothing.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) (AssignResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return AssignResult{}, err
	}
	check, err := s.check(snap, cmd)
	if err != nil {
		return AssignResult{}, err
	}
	if check.HasFindings() && !cmd.Force {
		return AssignResult{Check: check}, nil
	}

	a, err := NewAssignment(AssignmentID(s.newID()), cmd.OperativeID, check.Site, &check.Period, s.now())
	if err != nil {
		return AssignResult{}, err
	}
	if err := s.Store.CreateAssignment(ctx, a); err != nil {
		return AssignResult{}, fmt.Errorf("create assignment: %w", err)
	}

	s.publish(ctx, Event{
		Kind:         EventAssignmentCreated,
		OperativeID:  a.OperativeID,
		SiteID:       a.SiteID,
		AssignmentID: a.ID,
		Status:       a.Status,
		Forced:       check.HasFindings(),
		Payload: map[string]any{
			"start":     a.Period.Start.String(),
			"end":       a.Period.End.String(),
			"conflicts": len(check.Conflicts),
			"warnings":  len(check.Warnings),
		},
	})
	return AssignResult{Assignment: a, Check: check, Applied: true}, nil
}

// UpdateStatus moves one assignment to status.
func (s *Service) UpdateStatus(ctx context.Context, id AssignmentID, status string) (Assignment, error) {
	next, err := ParseStatus(status)
	if err != nil {
		return Assignment{}, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Assignment{}, err
	}
	current, ok := findAssignment(snap.Assignments, id)
	if !ok {
		return Assignment{}, generic.NewNotFound(generic.ErrAssignmentNotFound, "assignment", string(id))
	}
	updated, err := SetStatus(current, next)
	if err != nil {
		return Assignment{}, err
	}
	if err := s.Store.UpdateAssignmentStatus(ctx, id, updated.Status); err != nil {
		return Assignment{}, fmt.Errorf("update assignment status: %w", err)
	}
	s.publish(ctx, Event{
		Kind:         EventStatusChanged,
		OperativeID:  updated.OperativeID,
		SiteID:       updated.SiteID,
		AssignmentID: id,
		Status:       updated.Status,
		Payload:      map[string]any{"from": string(current.Status)},
	})
	return updated, nil
}

// Unassign deletes the assignment. An unknown id writes nothing and
// returns a NotFound error the caller may ignore.
func (s *Service) Unassign(ctx context.Context, id AssignmentID) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if _, err := RemoveAssignment(id, snap.Assignments); err != nil {
		return err
	}
	current, _ := findAssignment(snap.Assignments, id)
	if err := s.Store.DeleteAssignment(ctx, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	s.publish(ctx, Event{
		Kind:         EventAssignmentRemoved,
		OperativeID:  current.OperativeID,
		SiteID:       current.SiteID,
		AssignmentID: id,
	})
	return nil
}

// RollStatuses persists every ASSIGNED -> DEPLOYED move due today.
func (s *Service) RollStatuses(ctx context.Context) ([]StatusChange, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	changes := RollStatuses(snap.Assignments, s.now())
	applied := make([]StatusChange, 0, len(changes))
	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if err := s.Store.UpdateAssignmentStatus(ctx, c.AssignmentID, c.To); err != nil {
			return applied, fmt.Errorf("roll assignment %s: %w", c.AssignmentID, err)
		}
		a, _ := findAssignment(snap.Assignments, c.AssignmentID)
		s.publish(ctx, Event{
			Kind:         EventStatusChanged,
			OperativeID:  a.OperativeID,
			SiteID:       a.SiteID,
			AssignmentID: c.AssignmentID,
			Status:       c.To,
			Payload:      map[string]any{"from": string(c.From), "rolled": true},
		})
		applied = append(applied, c)
	}
	return applied, nil
}

func findAssignment(list []Assignment, id AssignmentID) (Assignment, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return Assignment{}, false
}

// =============================================================================
// CERTIFICATES AND RESTRICTIONS
// =============================================================================

// UpsertCertificates merges certs into the operative's list by id. Missing
// ids are generated.
func (s *Service) UpsertCertificates(ctx context.Context, operativeID OperativeID, certs []Certificate) (Operative, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Operative{}, err
	}
	op, ok := snap.Operative(operativeID)
	if !ok {
		return Operative{}, generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(operativeID))
	}
	op = UpsertCertificates(op, s.withCertIDs(certs))
	if err := s.Store.UpsertCertificates(ctx, op.ID, op.Certificates); err != nil {
		return Operative{}, fmt.Errorf("upsert certificates: %w", err)
	}
	s.publish(ctx, Event{
		Kind:        EventCertificatesUpdated,
		OperativeID: op.ID,
		Payload:     map[string]any{"count": len(certs)},
	})
	return op, nil
}

// BulkUpsertCertificates adds the same certificates to every listed
// operative. Unknown ids are returned, not treated as errors.
func (s *Service) BulkUpsertCertificates(ctx context.Context, ids []OperativeID, certs []Certificate) ([]Operative, []OperativeID, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	var changed []Operative
	var missing []OperativeID
	byID := snap.OperativesByID()
	for _, id := range ids {
		op, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		// Each operative gets its own certificate ids.
		updated, _ := BulkAddCertificates([]Operative{op}, []OperativeID{id}, s.withCertIDs(stripIDs(certs)))
		op = updated[0]
		if err := s.Store.UpsertCertificates(ctx, op.ID, op.Certificates); err != nil {
			return changed, missing, fmt.Errorf("upsert certificates for %s: %w", id, err)
		}
		s.publish(ctx, Event{
			Kind:        EventCertificatesUpdated,
			OperativeID: op.ID,
			Payload:     map[string]any{"count": len(certs), "bulk": true},
		})
		changed = append(changed, op)
	}
	return changed, missing, nil
}

func (s *Service) withCertIDs(certs []Certificate) []Certificate {
	out := make([]Certificate, len(certs))
	for i, c := range certs {
		if c.ID == "" {
			c.ID = s.newID()
		}
		out[i] = c
	}
	return out
}

func stripIDs(certs []Certificate) []Certificate {
	out := make([]Certificate, len(certs))
	for i, c := range certs {
		c.ID = ""
		out[i] = c
	}
	return out
}

// UpsertRestriction records r on the operative, generating an id when
// needed.
func (s *Service) UpsertRestriction(ctx context.Context, operativeID OperativeID, r Restriction) (Restriction, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Restriction{}, err
	}
	if _, ok := snap.Operative(operativeID); !ok {
		return Restriction{}, generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(operativeID))
	}
	if r.ID == "" {
		r.ID = s.newID()
	}
	if err := s.Store.UpsertRestriction(ctx, operativeID, r); err != nil {
		return Restriction{}, fmt.Errorf("upsert restriction: %w", err)
	}
	s.publish(ctx, Event{
		Kind:        EventRestrictionUpdated,
		OperativeID: operativeID,
		Payload:     map[string]any{"target_type": string(r.TargetType), "target_id": r.TargetID},
	})
	return r, nil
}

// =============================================================================
// READ-ONLY QUERIES
// =============================================================================

// Compliance evaluates one operative. An empty required list falls back to
// the general vocabulary; horizon <= 0 uses the service horizon.
func (s *Service) Compliance(ctx context.Context, operativeID OperativeID, required []string, certType CertType, horizon int) (ComplianceResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return ComplianceResult{}, err
	}
	op, ok := snap.Operative(operativeID)
	if !ok {
		return ComplianceResult{}, generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(operativeID))
	}
	if len(required) == 0 {
		required = s.Vocabulary.General
	}
	if horizon <= 0 {
		horizon = s.horizon()
	}
	return EvaluateCompliance(op, required, ComplianceOptions{
		HorizonDays: horizon,
		Reference:   s.now(),
		CertType:    certType,
	}), nil
}

// Eligibility runs CheckEligibility against the stored operatives.
func (s *Service) Eligibility(ctx context.Context, candidateID OperativeID, clientID ClientID, selected []OperativeID) ([]Warning, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	byID := snap.OperativesByID()
	candidate, ok := byID[candidateID]
	if !ok {
		return nil, generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(candidateID))
	}
	return CheckEligibility(candidate, clientID, selected, byID), nil
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(snap, s.Vocabulary, s.now(), s.horizon()), nil
}

// SiteFill summarises one site as of today.
func (s *Service) SiteFill(ctx context.Context, id SiteID) (SiteFill, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return SiteFill{}, err
	}
	site, ok := snap.Site(id)
	if !ok {
		return SiteFill{}, generic.NewNotFound(generic.ErrSiteNotFound, "site", string(id))
	}
	return SiteFillFor(site, snap.Assignments, s.now()), nil
}

// Profit is the margin over the Monday-Sunday week holding weekOf. A zero
// weekOf means this week.
func (s *Service) Profit(ctx context.Context, weekOf generic.TimePoint) (generic.Period, decimal.Decimal, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return generic.Period{}, decimal.Zero, err
	}
	if weekOf.IsZero() {
		weekOf = s.now()
	}
	week := generic.WeekContaining(weekOf)
	return week, ProfitForPeriod(snap, week), nil
}
