package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/auth"
	"github.com/sungwon/newsletter/internal/storage"
)

// RouterConfig holds the dependencies of the HTTP API. RateLimiter may be
// nil. Readiness maps check names to the dependencies /readyz pings.
type RouterConfig struct {
	Queries       storage.Querier
	Readiness     map[string]Pinger
	Publisher     NewsletterPublisher
	Subscriptions SubscriptionManager
	JWTService    *auth.JWTService
	RateLimiter   *auth.RateLimiter
	Log           zerolog.Logger
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(MetricsMiddleware)
	r.Use(RecoverMiddleware(cfg.Log))

	// Operational endpoints
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(cfg.Readiness))
	r.Handle("/metrics", promhttp.Handler())

	// Public endpoints
	r.Post("/subscriptions", SubscribeHandler(cfg.Subscriptions))
	r.Get("/subscriptions/confirm", ConfirmSubscriptionHandler(cfg.Subscriptions))
	r.Post("/login", LoginHandler(cfg.Queries, cfg.JWTService, cfg.RateLimiter))

	// Admin endpoints (JWT or API key)
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.BearerAuth(cfg.JWTService, cfg.Queries))

		r.Post("/newsletters", PublishNewsletterHandler(cfg.Publisher))
		r.Post("/password", ChangePasswordHandler(cfg.Queries))
	})

	return r
}
