// Package main provides the entrypoint for the background worker. It
// consumes queued export and erasure jobs and runs the periodic sweeps.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/database"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/erasure"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/resilience"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/userdata"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "dsr-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting privacy requests worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerCfg := worker.ConfigFromEnv()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Lifecycle notifications from background runs go to the event topic
	// when one is configured.
	var events dsr.Events = dsr.LogEvents{Logger: log}
	if os.Getenv("PUBSUB_ENABLED") == "true" && workerCfg.EventTopic != "" {
		publisher, pubErr := worker.NewPublisher(ctx, worker.PublisherConfig{
			ProjectID:  workerCfg.ProjectID,
			JobTopic:   workerCfg.JobTopic,
			EventTopic: workerCfg.EventTopic,
			Logger:     log,
		})
		if pubErr != nil {
			log.Fatal().Err(pubErr).Msg("failed to create pubsub publisher")
		}
		defer publisher.Close()
		events = publisher
	}

	auditRepo := audit.NewPostgresRepository(pool)
	auditService := audit.NewService(auditRepo, log)

	requestService := dsr.NewService(dsr.ServiceConfig{
		Repository: dsr.NewPostgresRepository(pool),
		Audit:      auditService,
		Events:     events,
		Logger:     log,
	})

	guard := resilience.NewGuard(resilience.GuardConfig{})
	userStore := userdata.NewPostgresRepository(pool)

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

	exportRegistry := export.NewRegistry()
	if err := export.RegisterBuiltins(exportRegistry, userStore); err != nil {
		log.Fatal().Err(err).Msg("failed to register export providers")
	}
	packager, err := export.NewPackager(workerCfg.ExportDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize packager")
	}
	deliveryManager := export.NewDeliveryManager(export.NewPostgresDeliveryRepository(pool), auditService, log)
	exportOrchestrator := export.NewOrchestrator(export.OrchestratorConfig{
		Registry: exportRegistry,
		Requests: requestService,
		Audit:    auditService,
		Packager: packager,
		Delivery: deliveryManager,
		Events:   events,
		Guard:    guard,
		Logger:   log,
	})

	jobMetrics, err := worker.NewJobMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize job metrics")
	}

	sweeper := worker.NewOverdueSweeper(worker.OverdueSweeperConfig{
		Requests: requestService,
		Events:   events,
		Logger:   log,
	})
	reaper := worker.NewDeliveryReaper(deliveryManager, log)
	reporter := worker.NewSLAReporter(worker.SLAReporterConfig{
		Requests: requestService,
		Logger:   log,
	})

	// Consume queued jobs when Pub/Sub is enabled.
	if os.Getenv("PUBSUB_ENABLED") == "true" {
		pubsubHandler, psErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        workerCfg.ProjectID,
			SubscriptionName: workerCfg.SubscriptionName,
			Exports:          exportOrchestrator,
			Erasures:         erasureOrchestrator,
			Sweeper:          sweeper,
			Reaper:           reaper,
			Reporter:         reporter,
			Metrics:          jobMetrics,
			Logger:           log,
		})
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to create pubsub handler")
		}
		defer pubsubHandler.Close()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Fatal().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Periodic sweeps run on fixed schedules regardless of the queue.
	go runEvery(ctx, workerCfg.SweepInterval, func() {
		start := time.Now()
		result, err := sweeper.Run(ctx)
		jobMetrics.RecordJob(worker.JobOverdueSweep, time.Since(start), err)
		if err != nil {
			log.Error().Err(err).Msg("overdue sweep failed")
			return
		}
		jobMetrics.RecordItems(worker.JobOverdueSweep, result.Warned)
	})
	go runEvery(ctx, workerCfg.ReapInterval, func() {
		start := time.Now()
		reaped, err := reaper.Run(ctx)
		jobMetrics.RecordJob(worker.JobDeliveryReap, time.Since(start), err)
		if err != nil {
			log.Error().Err(err).Msg("delivery reap failed")
			return
		}
		jobMetrics.RecordItems(worker.JobDeliveryReap, reaped)
	})

	// Health endpoint for the platform's liveness probes.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runEvery invokes fn once immediately and then on every tick until the
// context is cancelled.
func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
