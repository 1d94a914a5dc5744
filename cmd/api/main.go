// Package main provides the entrypoint for the privacy requests API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/middleware"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/auth"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/database"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/erasure"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/resilience"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/telemetry"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/userdata"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "dsr-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting privacy requests API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize the audit trail
	auditRepo := audit.NewPostgresRepository(pool)
	auditService := audit.NewService(auditRepo, log)

	// Events and background jobs go through Pub/Sub when configured,
	// otherwise everything runs inline and events land in the log.
	workerCfg := worker.ConfigFromEnv()
	var events dsr.Events = dsr.LogEvents{Logger: log}
	var publisher *worker.Publisher
	if os.Getenv("PUBSUB_ENABLED") == "true" {
		publisher, err = worker.NewPublisher(ctx, worker.PublisherConfig{
			ProjectID:  workerCfg.ProjectID,
			JobTopic:   workerCfg.JobTopic,
			EventTopic: workerCfg.EventTopic,
			Logger:     log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub publisher")
		}
		defer publisher.Close()
		events = publisher
		log.Info().Str("topic", workerCfg.JobTopic).Msg("pubsub publisher initialized")
	}

	// Initialize the lifecycle engine
	requestRepo := dsr.NewPostgresRepository(pool)
	requestService := dsr.NewService(dsr.ServiceConfig{
		Repository: requestRepo,
		Audit:      auditService,
		Events:     events,
		Logger:     log,
	})
	log.Info().Msg("lifecycle engine initialized")

	// Handler and provider callbacks run behind a shared circuit guard.
	guard := resilience.NewGuard(resilience.GuardConfig{})
	userStore := userdata.NewPostgresRepository(pool)

	// Initialize erasure
	erasureRegistry := erasure.NewRegistry()
	if err := erasure.RegisterBuiltins(erasureRegistry, userStore); err != nil {
		log.Fatal().Err(err).Msg("failed to register erasure handlers")
	}
	erasureOrchestrator := erasure.NewOrchestrator(erasure.OrchestratorConfig{
		Registry: erasureRegistry,
		Requests: requestService,
		Audit:    auditService,
		Guard:    guard,
		Logger:   log,
	})
	log.Info().Int("handlers", erasureRegistry.Len()).Msg("erasure orchestrator initialized")

	// Initialize export
	exportRegistry := export.NewRegistry()
	if err := export.RegisterBuiltins(exportRegistry, userStore); err != nil {
		log.Fatal().Err(err).Msg("failed to register export providers")
	}
	packager, err := export.NewPackager(workerCfg.ExportDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize packager")
	}
	deliveryRepo := export.NewPostgresDeliveryRepository(pool)
	deliveryManager := export.NewDeliveryManager(deliveryRepo, auditService, log)

	var exportQueue export.JobQueue
	if publisher != nil {
		exportQueue = publisher
	}
	exportOrchestrator := export.NewOrchestrator(export.OrchestratorConfig{
		Registry: exportRegistry,
		Requests: requestService,
		Audit:    auditService,
		Packager: packager,
		Delivery: deliveryManager,
		Events:   events,
		Guard:    guard,
		Queue:    exportQueue,
		Logger:   log,
	})
	log.Info().Int("providers", exportRegistry.Len()).Msg("export orchestrator initialized")

	reporter := worker.NewSLAReporter(worker.SLAReporterConfig{
		Requests: requestService,
		Logger:   log,
	})

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   os.Getenv("JWT_AUDIENCE"),
	})

	var erasureQueue *worker.Publisher
	if publisher != nil {
		erasureQueue = publisher
	}

	// Create router with configuration
	routerCfg := api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		JWTService:  jwtService,
		Requests:    requestService,
		Audit:       auditService,
		Erasures:    erasureOrchestrator,
		Exports:     exportOrchestrator,
		Delivery:    deliveryManager,
		Reporter:    reporter,
		PingDB:      pool.Ping,
	}
	if erasureQueue != nil {
		routerCfg.Queue = erasureQueue
	}
	router := api.NewRouter(routerCfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
