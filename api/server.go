/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     One zerolog line per request, tagged with the request ID
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a payroll admin frontend

ROUTE GROUPS:
  /api/periods/*     Period lifecycle
  /api/employees/*   Wage ledger per employee
  /api/reference     Loaded reference data
  /api/health        Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterConfig holds the router's cross-cutting settings.
type RouterConfig struct {
	CORSOrigins []string
	Log         zerolog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/reference", h.GetReference)

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/", h.OpenPeriod)
			r.Post("/next", h.OpenNextPeriod)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetPeriod)
				r.Get("/totals", h.GetTotals)
				r.Post("/process", h.ProcessPeriod)
				r.Post("/runs/{employeeID}/approve", h.ApproveRun)
				r.Post("/close", h.ClosePeriod)
				r.Post("/pay", h.MarkPaid)
			})
		})

		r.Route("/employees/{id}/wages", func(r chi.Router) {
			r.Get("/", h.GetYearToDate)
			r.Post("/adjustments", h.AdjustWages)
		})
	})

	return r
}
