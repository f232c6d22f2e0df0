/*
handlers.go - HTTP API handlers for the workforce deployment engine

PURPOSE:
  Exposes the deployment engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to workforce.Service.

ENDPOINTS:
  Operatives:
    GET    /api/operatives                      List operatives
    POST   /api/operatives                      Create or replace operative
    GET    /api/operatives/{id}                 Get operative
    GET    /api/operatives/{id}/compliance      Evaluate compliance
    PUT    /api/operatives/{id}/certificates    Upsert certificates
    POST   /api/operatives/{id}/restrictions    Upsert a restriction
    POST   /api/certificates/bulk               Add certificates to many operatives

  Sites and clients:
    GET    /api/sites                           List site fills
    POST   /api/sites                           Create or replace site
    GET    /api/sites/{id}                      Get site
    GET    /api/sites/{id}/fill                 Fill summary
    GET    /api/clients                         List clients
    POST   /api/clients                         Create or replace client

  Assignments:
    GET    /api/assignments                     List assignments
    POST   /api/assignments/check               Dry-run an assignment
    POST   /api/assignments                     Assign (409 when unconfirmed findings)
    PUT    /api/assignments/{id}/status         Change status
    DELETE /api/assignments/{id}                Remove
    POST   /api/assignments/roll                Roll statuses forward now

  Eligibility and reports:
    POST   /api/eligibility/check               Restriction warnings
    GET    /api/reports/dashboard               Dashboard rollup
    GET    /api/reports/profit?week_of=...      Weekly profit

  Data:
    GET    /api/scenarios                       List demo scenarios
    POST   /api/scenarios/load                  Load a scenario
    POST   /api/roster/import                   Import a JSON or YAML roster
    GET    /api/roster/export?format=yaml       Export the current roster
    POST   /api/reset                           Clear everything

CHECK THEN CONFIRM:
  POST /api/assignments runs the same check as /check. When the check has
  findings and "force" is false, nothing is written and the check is
  returned with 409. Resending with "force": true applies it.

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with:
  - 400: Validation errors, bad dates, bad statuses, reversed periods
  - 404: Unknown operative, site, client or assignment
  - 409: Unconfirmed assignment findings
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/deploy-engine/factory"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *workforce.Service
	Store   workforce.Store
	Logger  *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over svc. A nil logger discards output.
func NewHandler(svc *workforce.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: svc,
		Store:   svc.Store,
		Logger:  logger,
	}
}

// Pinger is implemented by stores that hold a connection worth checking.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports 200 while the store answers a ping. Stores without a Ping
// are always healthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.Logger.Warn("store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unavailable",
				"details": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// OPERATIVE HANDLERS
// =============================================================================

func (h *Handler) ListOperatives(w http.ResponseWriter, r *http.Request) {
	ops, err := h.Store.ListOperatives(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list operatives", err)
		return
	}
	writeJSON(w, http.StatusOK, toOperativeDTOs(ops))
}

func (h *Handler) GetOperative(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load operatives", err)
		return
	}
	id := chi.URLParam(r, "id")
	op, ok := snap.Operative(workforce.OperativeID(id))
	if !ok {
		h.fail(w, r, "Operative not found", generic.NewNotFound(generic.ErrOperativeNotFound, "operative", id))
		return
	}
	writeJSON(w, http.StatusOK, toOperativeDTO(op))
}

func (h *Handler) CreateOperative(w http.ResponseWriter, r *http.Request) {
	var req CreateOperativeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	op := req.toDomain()
	for i := range op.Certificates {
		if op.Certificates[i].ID == "" {
			op.Certificates[i].ID = h.Service.GenerateID()
		}
	}
	for i := range op.Restrictions {
		if op.Restrictions[i].ID == "" {
			op.Restrictions[i].ID = h.Service.GenerateID()
		}
	}
	if err := h.Store.SaveOperative(r.Context(), op); err != nil {
		h.fail(w, r, "Failed to save operative", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOperativeDTO(op))
}

// GetCompliance evaluates one operative. Query parameters:
//
//	required   comma separated certificate names (default: general set)
//	cert_type  GENERAL or ASBESTOS
//	horizon    look-ahead in days (default: configured horizon)
func (h *Handler) GetCompliance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var required []string
	for _, name := range strings.Split(q.Get("required"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			required = append(required, name)
		}
	}
	horizon := 0
	if raw := q.Get("horizon"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid horizon", fmt.Errorf("horizon must be a positive integer, got %q", raw))
			return
		}
		horizon = n
	}
	var certType workforce.CertType
	if raw := q.Get("cert_type"); raw != "" {
		certType = workforce.CertType(raw).Normalized()
	}

	res, err := h.Service.Compliance(r.Context(), workforce.OperativeID(chi.URLParam(r, "id")), required, certType, horizon)
	if err != nil {
		h.fail(w, r, "Failed to evaluate compliance", err)
		return
	}
	writeJSON(w, http.StatusOK, toComplianceDTO(res))
}

func (h *Handler) UpsertCertificates(w http.ResponseWriter, r *http.Request) {
	var req UpsertCertificatesRequest
	if !decodeValid(w, r, &req) {
		return
	}
	op, err := h.Service.UpsertCertificates(r.Context(), workforce.OperativeID(chi.URLParam(r, "id")), certificatesFromRequest(req.Certificates))
	if err != nil {
		h.fail(w, r, "Failed to update certificates", err)
		return
	}
	writeJSON(w, http.StatusOK, toOperativeDTO(op))
}

func (h *Handler) BulkCertificates(w http.ResponseWriter, r *http.Request) {
	var req BulkCertificatesRequest
	if !decodeValid(w, r, &req) {
		return
	}
	updated, missing, err := h.Service.BulkUpsertCertificates(r.Context(), operativeIDs(req.OperativeIDs), certificatesFromRequest(req.Certificates))
	if err != nil {
		h.fail(w, r, "Failed to add certificates", err)
		return
	}
	resp := BulkCertificatesResponse{Updated: toOperativeDTOs(updated), Missing: make([]string, 0, len(missing))}
	for _, id := range missing {
		resp.Missing = append(resp.Missing, string(id))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) UpsertRestriction(w http.ResponseWriter, r *http.Request) {
	var req RestrictionRequest
	if !decodeValid(w, r, &req) {
		return
	}
	saved, err := h.Service.UpsertRestriction(r.Context(), workforce.OperativeID(chi.URLParam(r, "id")), req.toDomain())
	if err != nil {
		h.fail(w, r, "Failed to save restriction", err)
		return
	}
	writeJSON(w, http.StatusOK, toRestrictionDTO(saved))
}

// =============================================================================
// SITE AND CLIENT HANDLERS
// =============================================================================

// ListSites returns every site with its fill summary, ordered by start date.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list sites", err)
		return
	}
	fills := workforce.SiteFills(snap, h.Service.Today())
	out := make([]SiteFillDTO, 0, len(fills))
	for _, f := range fills {
		out = append(out, toSiteFillDTO(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load sites", err)
		return
	}
	id := chi.URLParam(r, "id")
	site, ok := snap.Site(workforce.SiteID(id))
	if !ok {
		h.fail(w, r, "Site not found", generic.NewNotFound(generic.ErrSiteNotFound, "site", id))
		return
	}
	writeJSON(w, http.StatusOK, toSiteDTO(site))
}

func (h *Handler) GetSiteFill(w http.ResponseWriter, r *http.Request) {
	fill, err := h.Service.SiteFill(r.Context(), workforce.SiteID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to summarise site", err)
		return
	}
	writeJSON(w, http.StatusOK, toSiteFillDTO(fill))
}

func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req CreateSiteRequest
	if !decodeValid(w, r, &req) {
		return
	}
	site, err := req.toDomain()
	if err != nil {
		h.fail(w, r, "Invalid site dates", err)
		return
	}
	if err := h.Store.SaveSite(r.Context(), site); err != nil {
		h.fail(w, r, "Failed to save site", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSiteDTO(site))
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list clients", err)
		return
	}
	out := make([]ClientDTO, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !decodeValid(w, r, &req) {
		return
	}
	c := req.toDomain()
	if err := h.Store.SaveClient(r.Context(), c); err != nil {
		h.fail(w, r, "Failed to save client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListAssignments(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list assignments", err)
		return
	}
	siteFilter := r.URL.Query().Get("site_id")
	opFilter := r.URL.Query().Get("operative_id")
	out := make([]AssignmentDTO, 0, len(list))
	for _, a := range list {
		if siteFilter != "" && string(a.SiteID) != siteFilter {
			continue
		}
		if opFilter != "" && string(a.OperativeID) != opFilter {
			continue
		}
		out = append(out, toAssignmentDTO(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CheckAssignment(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !decodeValid(w, r, &req) {
		return
	}
	check, err := h.Service.CheckAssignment(r.Context(), req.toCommand())
	if err != nil {
		h.fail(w, r, "Failed to check assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCheckDTO(check))
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !decodeValid(w, r, &req) {
		return
	}
	res, err := h.Service.Assign(r.Context(), req.toCommand())
	if err != nil {
		h.fail(w, r, "Failed to create assignment", err)
		return
	}
	resp := AssignResponse{Applied: res.Applied, Check: toCheckDTO(res.Check)}
	if !res.Applied {
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	dto := toAssignmentDTO(res.Assignment)
	resp.Assignment = &dto
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) UpdateAssignmentStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeValid(w, r, &req) {
		return
	}
	a, err := h.Service.UpdateStatus(r.Context(), workforce.AssignmentID(chi.URLParam(r, "id")), req.Status)
	if err != nil {
		h.fail(w, r, "Failed to update status", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Unassign(r.Context(), workforce.AssignmentID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to remove assignment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RollStatuses runs the same pass as the background roller.
func (h *Handler) RollStatuses(w http.ResponseWriter, r *http.Request) {
	changes, err := h.Service.RollStatuses(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to roll statuses", err)
		return
	}
	writeJSON(w, http.StatusOK, toRollResponse(changes))
}

func toRollResponse(changes []workforce.StatusChange) RollResponse {
	resp := RollResponse{Changes: make([]StatusChangeDTO, 0, len(changes))}
	for _, c := range changes {
		resp.Changes = append(resp.Changes, StatusChangeDTO{AssignmentID: string(c.AssignmentID), From: string(c.From), To: string(c.To)})
	}
	return resp
}

// =============================================================================
// ELIGIBILITY AND REPORTS
// =============================================================================

func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req EligibilityRequest
	if !decodeValid(w, r, &req) {
		return
	}
	warnings, err := h.Service.Eligibility(r.Context(), workforce.OperativeID(req.CandidateID), workforce.ClientID(req.ClientID), operativeIDs(req.SelectedOperativeIDs))
	if err != nil {
		h.fail(w, r, "Failed to check eligibility", err)
		return
	}
	writeJSON(w, http.StatusOK, EligibilityResponse{
		Eligible: len(warnings) == 0,
		Warnings: toWarningDTOs(warnings),
		Messages: workforce.Messages(warnings),
	})
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

func (h *Handler) GetProfit(w http.ResponseWriter, r *http.Request) {
	var weekOf generic.TimePoint
	if raw := r.URL.Query().Get("week_of"); raw != "" {
		tp, ok := generic.ParseDate(raw)
		if !ok {
			h.fail(w, r, "Invalid week_of", &generic.InvalidDateError{Field: "week_of", Value: raw})
			return
		}
		weekOf = tp
	}
	week, profit, err := h.Service.Profit(r.Context(), weekOf)
	if err != nil {
		h.fail(w, r, "Failed to compute profit", err)
		return
	}
	writeJSON(w, http.StatusOK, ProfitDTO{WeekStart: week.Start.String(), WeekEnd: week.End.String(), Profit: profit})
}

// =============================================================================
// SCENARIOS, ROSTERS, RESET
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeValid(w, r, &req) {
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Scenario not found", fmt.Errorf("unknown scenario %q", req.ScenarioID))
		return
	}
	if err := LoadScenario(r.Context(), h.Store, s, h.Service.Today()); err != nil {
		h.fail(w, r, "Failed to load scenario", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()
	h.Logger.Info("scenario loaded", zap.String("scenario", s.ID))
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description})
}

// ImportRoster reads a roster body. YAML is selected by a yaml Content-Type
// or ?format=yaml; anything else is JSON. ?replace=true clears the store
// first.
func (h *Handler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	format := factory.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") || strings.EqualFold(r.URL.Query().Get("format"), "yaml") {
		format = factory.FormatYAML
	}
	snap, report, err := factory.ParseRoster(body, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid roster", err)
		return
	}

	ctx := r.Context()
	if r.URL.Query().Get("replace") == "true" {
		if err := h.Store.Reset(ctx); err != nil {
			h.fail(w, r, "Failed to reset store", err)
			return
		}
	}
	if err := Seed(ctx, h.Store, snap); err != nil {
		h.fail(w, r, "Failed to import roster", err)
		return
	}

	resp := ImportRosterResponse{
		Operatives:  len(snap.Operatives),
		Sites:       len(snap.Sites),
		Clients:     len(snap.Clients),
		Assignments: len(snap.Assignments),
		Invalid:     make([]string, 0, len(report.Invalid)),
	}
	for _, f := range report.Invalid {
		resp.Invalid = append(resp.Invalid, f.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ExportRoster(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load roster", err)
		return
	}
	format, contentType := factory.FormatJSON, "application/json"
	if strings.EqualFold(r.URL.Query().Get("format"), "yaml") {
		format, contentType = factory.FormatYAML, "application/yaml"
	}
	data, err := factory.MarshalRoster(snap, format)
	if err != nil {
		h.fail(w, r, "Failed to encode roster", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, message, err)
}

// decodeValid decodes the JSON body into dst and validates it, writing a
// 400 and returning false on failure.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty request body")
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}
