// Package api provides HTTP router setup.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/trustlens/trustlens/internal/config"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg *config.Config, handler *Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (not rate limited)
		r.Get("/health", handler.HealthCheck)

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(cfg.Server.RequestsPerMinute, time.Minute))

			r.Post("/analyze", handler.Analyze)
			r.Get("/results/{fingerprint}", handler.GetResult)

			r.Route("/duplicates", func(r chi.Router) {
				r.Post("/", handler.EnqueueDuplicateCheck)
				r.Get("/", handler.ListJobs)
				r.Get("/{id}", handler.GetJob)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", handler.ListNotifications)
				r.Post("/{id}/read", handler.MarkNotificationRead)
			})

			r.Get("/status", handler.Status)
		})
	})

	return r
}
