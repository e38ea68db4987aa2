// Package api exposes the key manager over HTTP for local clients. The
// daemon binds on loopback; responses carrying secret material exist so that
// other local processes can fetch keys through the session pipeline instead
// of keeping plaintext copies of their own.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/keyguard/keymanager"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	manager *keymanager.Manager
	audit   *auditLogger
	metrics *metricsCollector
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// New creates a new API instance over the manager.
func New(manager *keymanager.Manager, opts ...Option) *API {
	a := &API{manager: manager}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	a.metrics = newMetricsCollector()
	a.metrics.observe(manager)
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(a.metrics.instrument)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Get("/status", a.Status)
	r.Get("/providers", a.ListProviders)
	r.Post("/lock", a.LockAll)

	r.Route("/providers/{provider}", func(r chi.Router) {
		r.Post("/enroll", a.Enroll)
		r.Put("/secret", a.StoreSecret)
		r.Get("/secret", a.RetrieveSecret)
		r.Post("/test", a.TestSecret)
		r.Get("/session", a.SessionInfo)
		r.Post("/lock", a.Lock)
		r.Delete("/", a.Revoke)
	})

	return r
}

// MetricsHandler serves the Prometheus scrape endpoint. Mounted outside the
// versioned API prefix by the server.
func (a *API) MetricsHandler() http.Handler {
	return a.metrics.handler()
}
