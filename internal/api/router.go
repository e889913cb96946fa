// Package api provides the HTTP status surface of the monitor.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/botsentinel/botsentinel/internal/api/handler"
	"github.com/botsentinel/botsentinel/internal/api/middleware"
	"github.com/botsentinel/botsentinel/internal/auth"
	"github.com/botsentinel/botsentinel/internal/bot"
	"github.com/botsentinel/botsentinel/internal/failover"
	"github.com/botsentinel/botsentinel/internal/scheduler"
)

// RouterConfig holds the router dependencies.
type RouterConfig struct {
	Version    string
	BuildTime  string
	Logger     zerolog.Logger
	Repository bot.Repository
	Sweeper    *scheduler.Sweeper
	Engine     *failover.Engine
	JWTService *auth.JWTService
}

// NewRouter creates a chi router with all monitor routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	statusHandler := handler.NewStatusHandler(cfg.Version, cfg.BuildTime, cfg.Repository, cfg.Sweeper, cfg.Engine)
	swapHandler := handler.NewSwapHandler(cfg.Engine)

	authMiddleware := middleware.Auth(cfg.JWTService)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	mutatingRateLimit := middleware.RateLimitByIP(middleware.MutatingRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", statusHandler.HealthCheck)
			r.Get("/status", statusHandler.SystemStatus)
		})

		r.Route("/bots", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", statusHandler.ListBots)
			r.Route("/{botId}", func(r chi.Router) {
				r.Get("/", statusHandler.GetBot)
				// Forced swaps require an operator token
				r.With(authMiddleware, mutatingRateLimit).Post("/swap", swapHandler.ForceSwap)
			})
		})
	})

	return r
}
