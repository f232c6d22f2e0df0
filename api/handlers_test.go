/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Check-then-confirm assignment flow (201 / 409 / forced)
- Error mapping (400 / 404)
- Compliance, eligibility and report endpoints
- Roster import and export
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/store/memory"
	"github.com/warp/deploy-engine/workforce"
	"go.uber.org/zap"
)

var testToday = generic.MustParseDate("2024-03-06")

type testEnv struct {
	router   *chi.Mux
	store    *memory.Store
	recorder *workforce.Recorder
	handler  *Handler
}

// newTestEnv serves a memory store holding site S (2024-03-04..15,
// capacity 2, Fit-out for client C at 20/35) and certified operatives O1-O3.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewFromSnapshot(workforce.Snapshot{
		Clients: []workforce.Client{{ID: "C", Name: "Client C", JobTypes: []workforce.JobType{
			{Name: "Fit-out", PayRate: decimal.NewFromInt(20), ClientCost: decimal.NewFromInt(35)},
		}}},
		Sites: []workforce.Site{{
			ID: "S", ClientID: "C", Name: "Site S",
			Start: generic.MustParseDate("2024-03-04"), End: generic.MustParseDate("2024-03-15"),
			Capacity: workforce.CapacityFromMax(2), FulfillmentRequired: true, ProjectType: "Fit-out",
		}},
		Operatives: []workforce.Operative{
			certified("O1", "Olive", "Oak", "Joiner", testToday),
			certified("O2", "Pat", "Pine", "Joiner", testToday),
			certified("O3", "Rae", "Rowan", "Labourer", testToday),
		},
	})

	rec := &workforce.Recorder{}
	svc := workforce.NewService(store, workforce.NewBus(rec, EventLogger(zap.NewNop())))
	svc.Now = func() generic.TimePoint { return testToday }
	n := 0
	svc.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}

	h := NewHandler(svc, zap.NewNop())
	return &testEnv{router: NewRouter(h, RouterOptions{}), store: store, recorder: rec, handler: h}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func TestCreateAssignment_CleanCheckIsApplied(t *testing.T) {
	env := newTestEnv(t)

	// WHEN
	rr := env.do(t, http.MethodPost, "/api/assignments", AssignRequest{OperativeID: "O1", SiteID: "S"})

	// THEN
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[AssignResponse](t, rr)
	assert.True(t, resp.Applied)
	require.NotNil(t, resp.Assignment)
	assert.Equal(t, "2024-03-04", resp.Assignment.StartDate)
	assert.Equal(t, "2024-03-15", resp.Assignment.EndDate)
	assert.Equal(t, "ASSIGNED", resp.Assignment.Status)
	assert.False(t, resp.Check.HasFindings)
	assert.Equal(t, "compliant", resp.Check.Compliance.Overall)
	require.Len(t, env.recorder.Events(), 1)
}

func TestCreateAssignment_OverlapReturnsConflictUntilForced(t *testing.T) {
	// GIVEN: O1 already booked on S2 from 2024-03-11
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.SaveSite(ctx, workforce.Site{
		ID: "S2", ClientID: "C", Name: "Site 2",
		Start: generic.MustParseDate("2024-03-11"), End: generic.MustParseDate("2024-03-22"),
		Capacity: workforce.Uncapped, FulfillmentRequired: true,
	}))
	require.NoError(t, env.store.CreateAssignment(ctx, workforce.Assignment{
		ID: "existing", OperativeID: "O1", SiteID: "S2",
		Period: generic.NewPeriod(generic.MustParseDate("2024-03-11"), generic.MustParseDate("2024-03-22")),
		Status: workforce.StatusAssigned,
	}))

	// WHEN: not forced
	rr := env.do(t, http.MethodPost, "/api/assignments", AssignRequest{OperativeID: "O1", SiteID: "S"})

	// THEN: 409 with the check, nothing written
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	resp := decode[AssignResponse](t, rr)
	assert.False(t, resp.Applied)
	assert.Nil(t, resp.Assignment)
	require.Len(t, resp.Check.Conflicts, 1)
	assert.Equal(t, "existing", resp.Check.Conflicts[0].AssignmentID)
	assert.Equal(t, 5, resp.Check.Conflicts[0].OverlapDays)
	list, _ := env.store.ListAssignments(ctx)
	assert.Len(t, list, 1)

	// WHEN: confirmed
	rr = env.do(t, http.MethodPost, "/api/assignments", AssignRequest{OperativeID: "O1", SiteID: "S", Force: true})

	// THEN
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	list, _ = env.store.ListAssignments(ctx)
	assert.Len(t, list, 2)
}

func TestCheckAssignment_DoesNotWrite(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/assignments/check", AssignRequest{OperativeID: "O1", SiteID: "S"})

	require.Equal(t, http.StatusOK, rr.Code)
	check := decode[AssignmentCheckDTO](t, rr)
	assert.Equal(t, "2024-03-04", check.StartDate)
	assert.Len(t, check.RequiredTypes, len(workforce.DefaultVocabulary.General))
	list, _ := env.store.ListAssignments(context.Background())
	assert.Empty(t, list)
}

func TestAssignment_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown operative", http.MethodPost, "/api/assignments", AssignRequest{OperativeID: "ghost", SiteID: "S"}, http.StatusNotFound},
		{"unknown site", http.MethodPost, "/api/assignments/check", AssignRequest{OperativeID: "O1", SiteID: "ghost"}, http.StatusNotFound},
		{"missing site id", http.MethodPost, "/api/assignments", map[string]string{"operative_id": "O1"}, http.StatusBadRequest},
		{"bad date format", http.MethodPost, "/api/assignments", AssignRequest{OperativeID: "O1", SiteID: "S", StartDate: "06/03/2024"}, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/assignments", `{"operative_id":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/assignments", nil, http.StatusBadRequest},
		{"delete unknown", http.MethodDelete, "/api/assignments/ghost", nil, http.StatusNotFound},
		{"status of unknown", http.MethodPut, "/api/assignments/ghost/status", UpdateStatusRequest{Status: "DEPLOYED"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			if rr.Code >= 400 {
				resp := decode[ErrorResponse](t, rr)
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestAssignment_UndatedSiteNeedsRange(t *testing.T) {
	// GIVEN: a site with no dates
	env := newTestEnv(t)
	require.NoError(t, env.store.SaveSite(context.Background(), workforce.Site{ID: "U", ClientID: "C", Capacity: workforce.Uncapped}))

	// WHEN / THEN: no range, reversed range, valid range
	rr := env.do(t, http.MethodPost, "/api/assignments/check", AssignRequest{OperativeID: "O1", SiteID: "U"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/assignments/check", AssignRequest{OperativeID: "O1", SiteID: "U", StartDate: "2024-03-10", EndDate: "2024-03-01"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/assignments/check", AssignRequest{OperativeID: "O1", SiteID: "U", StartDate: "2024-03-01", EndDate: "2024-03-10"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2024-03-10", decode[AssignmentCheckDTO](t, rr).EndDate)
}

func TestAssignment_StatusAndDelete(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/assignments", AssignRequest{OperativeID: "O1", SiteID: "S"})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[AssignResponse](t, rr).Assignment.ID

	rr = env.do(t, http.MethodPut, "/api/assignments/"+id+"/status", UpdateStatusRequest{Status: "holiday"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPut, "/api/assignments/"+id+"/status", UpdateStatusRequest{Status: "offsite"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OFFSITE", decode[AssignmentDTO](t, rr).Status)

	rr = env.do(t, http.MethodGet, "/api/assignments?site_id=S", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]AssignmentDTO](t, rr), 1)

	rr = env.do(t, http.MethodDelete, "/api/assignments/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/assignments", nil)
	assert.Empty(t, decode[[]AssignmentDTO](t, rr))
}

func TestRollStatuses_Endpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/assignments", AssignRequest{OperativeID: "O1", SiteID: "S"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/assignments/roll", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[RollResponse](t, rr)
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, "DEPLOYED", resp.Changes[0].To)
}

// =============================================================================
// OPERATIVES, SITES, CLIENTS
// =============================================================================

func TestOperatives_CreateGetAndCompliance(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/operatives", CreateOperativeRequest{
		ID: "NEW", FirstName: "New", LastName: "Starter",
		Certificates: []CertificateRequest{{Name: "CSCS", ExpiryDate: "2024-03-16"}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[OperativeDTO](t, rr)
	assert.Equal(t, "id-1", created.Certificates[0].ID)

	rr = env.do(t, http.MethodGet, "/api/operatives/NEW", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "New Starter", decode[OperativeDTO](t, rr).DisplayName)

	// CSCS expires in 10 days: inside the default horizon
	rr = env.do(t, http.MethodGet, "/api/operatives/NEW/compliance?required=CSCS", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	c := decode[ComplianceDTO](t, rr)
	assert.Equal(t, "attention", c.Overall)
	require.Len(t, c.Expiring, 1)
	assert.Equal(t, 10, c.Expiring[0].DaysLeft)
	assert.Equal(t, "Expiring", c.Expiring[0].Label)

	// ... but outside a 7 day horizon
	rr = env.do(t, http.MethodGet, "/api/operatives/NEW/compliance?required=CSCS&horizon=7", nil)
	assert.Equal(t, "compliant", decode[ComplianceDTO](t, rr).Overall)

	rr = env.do(t, http.MethodGet, "/api/operatives/NEW/compliance?horizon=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/operatives/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/operatives", CreateOperativeRequest{ID: "bad", FirstName: "B", Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCertificates_UpsertAndBulk(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPut, "/api/operatives/O1/certificates", UpsertCertificatesRequest{
		Certificates: []CertificateRequest{{Name: "Asbestos Awareness", ExpiryDate: "2025-01-01", Type: "asbestos"}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	op := decode[OperativeDTO](t, rr)
	last := op.Certificates[len(op.Certificates)-1]
	assert.Equal(t, "ASBESTOS", last.Type)

	rr = env.do(t, http.MethodPost, "/api/certificates/bulk", BulkCertificatesRequest{
		OperativeIDs: []string{"O2", "ghost"},
		Certificates: []CertificateRequest{{Name: "Face Fit Test"}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	bulk := decode[BulkCertificatesResponse](t, rr)
	assert.Len(t, bulk.Updated, 1)
	assert.Equal(t, []string{"ghost"}, bulk.Missing)

	rr = env.do(t, http.MethodPost, "/api/certificates/bulk", BulkCertificatesRequest{OperativeIDs: []string{"O2"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSites_CreateValidatesAndFills(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/sites", CreateSiteRequest{ID: "R", Name: "Reversed", StartDate: "2024-03-10", EndDate: "2024-03-01"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/sites", CreateSiteRequest{ID: "N", Name: "New", StartDate: "2024-03-01", EndDate: "2024-03-31"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	site := decode[SiteDTO](t, rr)
	assert.True(t, site.Uncapped)
	assert.True(t, site.FulfillmentRequired)

	rr = env.do(t, http.MethodGet, "/api/sites/S/fill", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	fill := decode[SiteFillDTO](t, rr)
	assert.Equal(t, "not-filled", fill.Fill)
	assert.True(t, fill.CanAssign)

	rr = env.do(t, http.MethodGet, "/api/sites", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]SiteFillDTO](t, rr), 2)

	rr = env.do(t, http.MethodGet, "/api/sites/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClients_CreateAndList(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/clients", `{"id":"D","name":"Client D","job_types":[{"name":"Groundworks","pay_rate":"150.50","client_cost":200}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/clients", nil)
	clients := decode[[]ClientDTO](t, rr)
	require.Len(t, clients, 2)
	assert.True(t, decimal.RequireFromString("49.5").Equal(clients[1].JobTypes[0].DailyMargin))
}

// =============================================================================
// ELIGIBILITY AND REPORTS
// =============================================================================

func TestEligibility_Endpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/operatives/O2/restrictions", RestrictionRequest{TargetType: "operative", TargetID: "O1", Note: "prior incident"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "OPERATIVE", decode[RestrictionDTO](t, rr).TargetType)

	rr = env.do(t, http.MethodPost, "/api/eligibility/check", EligibilityRequest{CandidateID: "O1", ClientID: "C", SelectedOperativeIDs: []string{"O2", "O3"}})

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[EligibilityResponse](t, rr)
	assert.False(t, resp.Eligible)
	assert.Equal(t, []string{"Pat Pine is unable to work with Olive Oak (Note: prior incident)"}, resp.Messages)

	rr = env.do(t, http.MethodPost, "/api/eligibility/check", EligibilityRequest{CandidateID: "O3"})
	assert.True(t, decode[EligibilityResponse](t, rr).Eligible)
}

func TestReports_ProfitAndDashboard(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/assignments", AssignRequest{OperativeID: "O1", SiteID: "S"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/reports/profit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	profit := decode[ProfitDTO](t, rr)
	assert.Equal(t, "2024-03-04", profit.WeekStart)
	assert.Equal(t, "2024-03-10", profit.WeekEnd)
	assert.True(t, decimal.NewFromInt(105).Equal(profit.Profit), "got %s", profit.Profit)

	rr = env.do(t, http.MethodGet, "/api/reports/profit?week_of=2024-03-13", nil)
	assert.True(t, decimal.NewFromInt(75).Equal(decode[ProfitDTO](t, rr).Profit))

	rr = env.do(t, http.MethodGet, "/api/reports/profit?week_of=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/reports/dashboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	d := decode[DashboardDTO](t, rr)
	assert.Equal(t, "2024-03-06", d.AsOf)
	assert.Equal(t, []string{"S"}, d.ActiveSites)
	assert.Equal(t, 1, d.NotFulfilledCount)
	assert.Empty(t, d.NeedsAttention)
}

// =============================================================================
// ROSTERS AND RESET
// =============================================================================

func TestRoster_ImportYAMLAndExport(t *testing.T) {
	env := newTestEnv(t)
	roster := `
operatives:
  - id: Y1
    firstName: Yan
    certificates:
      - name: CSCS
        expiryDate: someday
sites:
  - id: YS
    startDate: 2024-04-01
    endDate: 2024-04-30
`
	req := httptest.NewRequest(http.MethodPost, "/api/roster/import?replace=true", strings.NewReader(roster))
	req.Header.Set("Content-Type", "application/yaml")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[ImportRosterResponse](t, rr)
	assert.Equal(t, 1, resp.Operatives)
	assert.Equal(t, 1, resp.Sites)
	assert.Len(t, resp.Invalid, 1)

	ops, _ := env.store.ListOperatives(context.Background())
	require.Len(t, ops, 1, "replace cleared the seeded operatives")

	rr = env.do(t, http.MethodGet, "/api/roster/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "id: Y1")

	rr = env.do(t, http.MethodPost, "/api/roster/import", `{"operatives": [`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReset_ClearsStore(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/reset", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodGet, "/api/operatives", nil)
	assert.Empty(t, decode[[]OperativeDTO](t, rr))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

// pingStore is a memory store whose connection check fails.
type pingStore struct {
	*memory.Store
	err error
}

func (p pingStore) Ping(context.Context) error { return p.err }

func TestHealthz_StorePing(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"store answers", nil, http.StatusOK, "ok"},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN
			store := pingStore{Store: memory.New(), err: tt.pingErr}
			h := NewHandler(workforce.NewService(store, nil), zap.NewNop())
			router := NewRouter(h, RouterOptions{})

			// WHEN
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			// THEN
			assert.Equal(t, tt.wantStatus, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["status"])
			if tt.pingErr != nil {
				assert.Equal(t, "connection refused", body["details"])
			}
		})
	}
}
