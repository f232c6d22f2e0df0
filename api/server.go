/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logging:    zap request log (method, path, status, duration, request id)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/operatives/*     Operatives, certificates, restrictions
  /api/certificates/*   Bulk certificate maintenance
  /api/sites/*          Sites and fill summaries
  /api/clients/*        Clients and job type rates
  /api/assignments/*    Check, assign, status, removal
  /api/eligibility/*    Restriction checks
  /api/reports/*        Dashboard and profit
  /api/scenarios/*      Demo scenarios
  /api/roster/*         Roster import and export
  /api/reset            Store reset (dev only)
  /healthz              Liveness (pings the store)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - logging.go: Request logging and event sink
  - cmd/deployd/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tunes NewRouter. The zero value allows every origin.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/operatives", func(r chi.Router) {
			r.Get("/", h.ListOperatives)
			r.Post("/", h.CreateOperative)
			r.Get("/{id}", h.GetOperative)
			r.Get("/{id}/compliance", h.GetCompliance)
			r.Put("/{id}/certificates", h.UpsertCertificates)
			r.Post("/{id}/restrictions", h.UpsertRestriction)
		})

		r.Post("/certificates/bulk", h.BulkCertificates)

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", h.ListSites)
			r.Post("/", h.CreateSite)
			r.Get("/{id}", h.GetSite)
			r.Get("/{id}/fill", h.GetSiteFill)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Post("/", h.CreateAssignment)
			r.Post("/check", h.CheckAssignment)
			r.Post("/roll", h.RollStatuses)
			r.Put("/{id}/status", h.UpdateAssignmentStatus)
			r.Delete("/{id}", h.DeleteAssignment)
		})

		r.Post("/eligibility/check", h.CheckEligibility)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/profit", h.GetProfit)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/roster", func(r chi.Router) {
			r.Post("/import", h.ImportRoster)
			r.Get("/export", h.ExportRoster)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
