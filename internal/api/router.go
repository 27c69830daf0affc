// Package api provides the HTTP API of the highway weather dashboard.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/roadweather/roadweather/internal/api/handler"
	"github.com/roadweather/roadweather/internal/api/middleware"
	"github.com/roadweather/roadweather/internal/dashboard"
	"github.com/roadweather/roadweather/internal/resilience"
	"github.com/roadweather/roadweather/internal/session"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Dashboard *dashboard.Service
	Sessions  *session.Service
	Warehouse handler.Pinger
	Registry  *resilience.Registry
	Warmup    handler.MetricsReporter
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "roadweather-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type
	r.Use(middleware.RequireJSON)                // JSON request bodies

	opsCfg := handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Warehouse: cfg.Warehouse,
		Registry:  cfg.Registry,
		Warmup:    cfg.Warmup,
	}
	if cfg.Dashboard != nil {
		opsCfg.Cache = cfg.Dashboard
	}
	if cfg.Sessions != nil {
		opsCfg.Sessions = cfg.Sessions
	}

	opsHandler := handler.NewOpsHandler(opsCfg)
	metadataHandler := handler.NewMetadataHandler()

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)        // 100 req/min
	createRateLimit := middleware.RateLimitByIP(middleware.SessionCreateRateLimit)     // 10 req/min
	expensiveRateLimit := middleware.RateLimitBySession(middleware.ExpensiveRateLimit) // 30 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/presets", metadataHandler.ListPresets)
		})

		if cfg.Sessions == nil || cfg.Dashboard == nil {
			return
		}

		sessionHandler := handler.NewSessionHandler(cfg.Sessions, cfg.Dashboard.City(), cfg.Logger)
		dashboardHandler := handler.NewDashboardHandler(cfg.Sessions, cfg.Dashboard, cfg.Logger)

		r.Route("/sessions", func(r chi.Router) {
			r.With(createRateLimit).Post("/", sessionHandler.CreateSession)

			r.Route("/{sessionId}", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", sessionHandler.GetSession)
				r.Delete("/", sessionHandler.DeleteSession)

				// Hour transitions reload warehouse data
				r.With(expensiveRateLimit).Put("/hours", sessionHandler.SetHours)
				r.With(expensiveRateLimit).Post("/presets/{presetId}", sessionHandler.ApplyPreset)
				r.Put("/view", sessionHandler.SetView)

				r.Route("/dashboard", func(r chi.Router) {
					r.Get("/summary", dashboardHandler.GetSummary)
					r.With(expensiveRateLimit).Get("/map", dashboardHandler.GetMap)
					r.Get("/trends", dashboardHandler.GetTrends)
					r.Get("/analytics", dashboardHandler.GetAnalytics)
				})
			})
		})
	})

	return r
}
