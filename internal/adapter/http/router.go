package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/accounter/internal/adapter/http/handler"
	"github.com/iho/accounter/internal/adapter/http/middleware"
	"github.com/iho/accounter/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	LedgerHandler  *handler.LedgerHandler
	AccountHandler *handler.AccountHandler
	AdminHandler   *handler.AdminHandler
	HealthHandler  *handler.HealthHandler

	// Optional
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	MetricsHandler   http.Handler
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.AllowContentType("application/json"))

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		r.Post("/holds", cfg.LedgerHandler.Hold)
		r.Post("/plans/{id}/commit", cfg.LedgerHandler.Commit)
		r.Post("/plans/{id}/rollback", cfg.LedgerHandler.Rollback)

		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/", cfg.AccountHandler.Get)
			r.Get("/balance", cfg.AccountHandler.GetBalance)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/balances", cfg.AdminHandler.ListBalances)
			r.Get("/offsets", cfg.AdminHandler.ListOffsets)
			r.Get("/plans/{id}", cfg.AdminHandler.ListPlanMarkers)
			r.Get("/consistency", cfg.AdminHandler.Consistency)
		})
	})

	return r
}
