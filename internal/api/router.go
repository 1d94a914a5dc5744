// Package api provides the HTTP API for the privacy request service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/handler"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/middleware"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/auth"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/erasure"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/worker"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	JWTService  *auth.JWTService
	Requests    *dsr.Service
	Audit       *audit.Service
	Erasures    *erasure.Orchestrator
	Exports     *export.Orchestrator
	Delivery    *export.DeliveryManager
	Reporter    *worker.SLAReporter
	Queue       handler.ErasureQueue
	PingDB      handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "dsr-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.PingDB)
	dsrHandler := handler.NewDSRHandler(cfg.Requests)
	downloadHandler := handler.NewDownloadHandler(cfg.Delivery, cfg.Logger)
	adminHandler := handler.NewAdminHandler(handler.AdminHandlerConfig{
		Requests: cfg.Requests,
		Audit:    cfg.Audit,
		Erasures: cfg.Erasures,
		Exports:  cfg.Exports,
		Reporter: cfg.Reporter,
		Queue:    cfg.Queue,
	})

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.JWTService)
	elevatedOnly := middleware.RequireRole(auth.RoleAdmin, auth.RoleDPO)

	// Create rate limit middleware for different endpoint categories
	submitRateLimit := middleware.RateLimitByIP(middleware.SubmitRateLimit)     // 10 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Public requester endpoints - strict rate limiting on submission,
		// the engine applies its own per-email ceiling on top.
		r.Route("/dsr", func(r chi.Router) {
			r.With(submitRateLimit).Post("/requests", dsrHandler.Submit)
			r.With(standardRateLimit).Get("/verify/{token}", dsrHandler.Verify)
			r.With(standardRateLimit).Get("/requests/{requestId}/download/{token}", downloadHandler.Download)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Staff endpoints (authenticated) - staff-based rate limiting
		r.Route("/admin/dsr", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByStaff(middleware.StandardRateLimit)) // 100 req/min per staff member

			r.Get("/stats", adminHandler.Stats)
			r.Get("/reports/sla", adminHandler.SLAReport)

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", adminHandler.ListRequests)
				r.Route("/{requestId}", func(r chi.Router) {
					r.Get("/", adminHandler.GetRequest)
					r.Post("/status", adminHandler.Transition)
					r.Post("/notes", adminHandler.AddNote)
					r.Post("/export", adminHandler.RequestExport)
					r.Get("/audit", adminHandler.AuditTrail)

					// Destructive operations need an elevated role.
					r.With(elevatedOnly).Post("/assign", adminHandler.Assign)
					r.With(elevatedOnly).Post("/erasure", adminHandler.ExecuteErasure)
					r.With(elevatedOnly).Post("/erasure/preview", adminHandler.PreviewErasure)
					r.With(elevatedOnly).Post("/scrub", adminHandler.ScrubPII)
				})
			})
		})
	})

	return r
}
