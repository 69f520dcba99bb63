/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/entries/*        Calendar entries and filing
  /api/entities/*       Entity registration and lookup
  /api/blueprints/*     Obligation blueprint management
  /api/jurisdictions/*  Hierarchy nodes
  /api/holidays/*       Holiday calendar ingestion
  /api/admin/*          Generation and pass triggers
  /api/passes           Pass run audit trail
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Calendar entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Get("/{id}", h.GetEntry)
			r.Post("/{id}/file", h.FileEntry)
		})

		// Entity routes
		r.Route("/entities", func(r chi.Router) {
			r.Get("/", h.ListEntities)
			r.Post("/", h.CreateEntity)
			r.Get("/{id}", h.GetEntity)
			r.Get("/{id}/entries", h.GetEntityEntries)
		})

		// Blueprint routes
		r.Route("/blueprints", func(r chi.Router) {
			r.Get("/", h.ListBlueprints)
			r.Post("/", h.CreateBlueprint)
			r.Get("/{id}", h.GetBlueprint)
		})

		// Jurisdiction routes
		r.Route("/jurisdictions", func(r chi.Router) {
			r.Get("/", h.ListJurisdictions)
			r.Post("/", h.CreateJurisdiction)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.GetHolidays)
			r.Post("/", h.IngestCalendar)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/generate", h.GenerateForEntity)
			r.Post("/pass", h.RunPass)
		})

		// Pass run audit trail
		r.Get("/passes", h.ListPassRuns)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Compliance Calendar Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Compliance Calendar Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/entries">/api/entries</a> - Calendar entries</li>
<li><a href="/api/entities">/api/entities</a> - Entities</li>
<li><a href="/api/blueprints">/api/blueprints</a> - Obligation blueprints</li>
<li><a href="/api/jurisdictions">/api/jurisdictions</a> - Jurisdictions</li>
<li><a href="/api/passes">/api/passes</a> - Pass runs</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
