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
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for the admin console
  5. RequireAdmin: Bearer-token gate on every /hub route

ROUTE GROUPS:
  /hub/*     Admin ledger operations (gated)
  /metrics   Prometheus scrape endpoint (ungated)
  /healthz   Liveness probe (ungated)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Admin gate
  - cmd/hubd/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the HTTP surface.
type RouterOptions struct {
	// AdminToken gates every /hub route. Empty disables the gate (dev only).
	AdminToken string

	// AllowedOrigins for CORS. Empty means no CORS headers.
	AllowedOrigins []string

	// Metrics exposes /metrics when set.
	Metrics prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderAdminID},
			AllowCredentials: true,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
	}

	// Admin ledger routes
	r.Route("/hub", func(r chi.Router) {
		r.Use(RequireAdmin(opts.AdminToken))

		r.Get("/", h.GetHub)
		r.Post("/issue", h.Issue)
		r.Post("/burn", h.Burn)
		r.Post("/circulate", h.Circulate)
		r.Post("/reserve", h.Reserve)
		r.Post("/max-supply", h.SetMaxSupply)
		r.Get("/logs", h.GetLogs)

		r.Get("/verify", h.Verify)
		r.Post("/reconcile", h.Reconcile)

		r.Route("/value", func(r chi.Router) {
			r.Post("/", h.SetValue)
			r.Get("/history", h.GetValueHistory)
			r.Post("/rates", h.SetRates)
			r.Get("/convert", h.Convert)
		})
	})

	return r
}
