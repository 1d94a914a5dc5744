package worker

import (
	"os"
	"time"
)

// Config holds worker process configuration.
type Config struct {
	// ProjectID is the Pub/Sub project.
	ProjectID string

	// SubscriptionName is the job subscription the worker consumes.
	SubscriptionName string

	// JobTopic is where the api process enqueues jobs.
	JobTopic string

	// EventTopic receives lifecycle notifications; empty disables them.
	EventTopic string

	// ExportDir is where export packages are written.
	ExportDir string

	// SweepInterval is how often the overdue sweep runs. Default: 24h.
	SweepInterval time.Duration

	// ReapInterval is how often expired deliveries are reaped. Default: 1h.
	ReapInterval time.Duration
}

// ConfigFromEnv builds a Config from environment variables with local
// development defaults.
func ConfigFromEnv() Config {
	cfg := Config{
		ProjectID:        getEnv("PUBSUB_PROJECT_ID", "local-dev"),
		SubscriptionName: getEnv("PUBSUB_JOB_SUBSCRIPTION", "dsr-jobs-worker"),
		JobTopic:         getEnv("PUBSUB_JOB_TOPIC", "dsr-jobs"),
		EventTopic:       os.Getenv("PUBSUB_EVENT_TOPIC"),
		ExportDir:        getEnv("EXPORT_DIR", "/var/lib/dsr/exports"),
		SweepInterval:    24 * time.Hour,
		ReapInterval:     time.Hour,
	}

	if v, err := time.ParseDuration(os.Getenv("SWEEP_INTERVAL")); err == nil && v > 0 {
		cfg.SweepInterval = v
	}
	if v, err := time.ParseDuration(os.Getenv("REAP_INTERVAL")); err == nil && v > 0 {
		cfg.ReapInterval = v
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
