package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/worker"

// JobMetrics holds the instruments for background job runs.
type JobMetrics struct {
	jobDuration  metric.Float64Histogram
	jobTotal     metric.Int64Counter
	itemsTouched metric.Int64Counter
}

// NewJobMetrics creates metrics for monitoring worker job execution.
func NewJobMetrics() (*JobMetrics, error) {
	meter := otel.Meter(meterName)

	jobDuration, err := meter.Float64Histogram(
		"worker.job.duration",
		metric.WithDescription("Duration of worker job runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	jobTotal, err := meter.Int64Counter(
		"worker.job.total",
		metric.WithDescription("Total number of worker job runs"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	itemsTouched, err := meter.Int64Counter(
		"worker.job.items",
		metric.WithDescription("Number of items processed by worker jobs"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &JobMetrics{
		jobDuration:  jobDuration,
		jobTotal:     jobTotal,
		itemsTouched: itemsTouched,
	}, nil
}

// RecordJob records one job run.
func (m *JobMetrics) RecordJob(jobType string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("job.type", jobType),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Jobs outlive request contexts; record against the background context.
	ctx := context.Background()
	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.jobTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordItems records how many items a job run touched, e.g. requests warned
// by a sweep or deliveries reaped.
func (m *JobMetrics) RecordItems(jobType string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.itemsTouched.Add(context.Background(), int64(count), metric.WithAttributes(
		attribute.String("job.type", jobType),
	))
}
