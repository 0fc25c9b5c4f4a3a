package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"oracle/internal/api/health"
	"oracle/internal/metrics"
)

// NewRouter assembles the service router: API routes, health probes and the
// Prometheus scrape endpoint.
func NewRouter(handler *Handler, healthHandler *health.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Post("/resolve", handler.HandleResolve)

		r.Route("/scheduled-requests", func(r chi.Router) {
			r.Get("/", handler.HandleListScheduled)
			r.Get("/{id}", handler.HandleGetScheduled)
			r.Delete("/{id}", handler.HandleCancelScheduled)
		})

		r.Route("/questions", func(r chi.Router) {
			r.Get("/", handler.HandleListQuestions)
			r.Get("/file-names", handler.HandleFileNames)
		})
	})

	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	r.Handle("/metrics", metrics.Handler())

	return r
}
