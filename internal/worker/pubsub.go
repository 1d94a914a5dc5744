package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/erasure"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
)

// Job type identifiers carried in the message payload.
const (
	JobExportGenerate = "export_generate"
	JobErasureExecute = "erasure_execute"
	JobOverdueSweep   = "overdue_sweep"
	JobDeliveryReap   = "delivery_reap"
	JobSLAReport      = "sla_report"
)

// JobMessage is the payload for every queued job.
type JobMessage struct {
	JobType   string `json:"job_type"`
	RequestID string `json:"request_id,omitempty"`
	Token     string `json:"token,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	ActorRole string `json:"actor_role,omitempty"`
}

func (m JobMessage) actor() dsr.Actor {
	return dsr.Actor{ID: m.ActorID, Role: m.ActorRole}
}

// PubSubHandler consumes job messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	exports          *export.Orchestrator
	erasures         *erasure.Orchestrator
	sweeper          *OverdueSweeper
	reaper           *DeliveryReaper
	reporter         *SLAReporter
	metrics          *JobMetrics
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Exports          *export.Orchestrator
	Erasures         *erasure.Orchestrator
	Sweeper          *OverdueSweeper
	Reaper           *DeliveryReaper
	Reporter         *SLAReporter
	Metrics          *JobMetrics
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Erasure and export runs hold a message for as long as the slowest
	// handler chain takes.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		exports:          cfg.Exports,
		erasures:         cfg.Erasures,
		sweeper:          cfg.Sweeper,
		reaper:           cfg.Reaper,
		reporter:         cfg.Reporter,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing messages. It blocks until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var job JobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		logger.Error().Err(err).Msg("failed to parse job message")
		msg.Nack()
		return
	}

	var err error
	switch job.JobType {
	case JobExportGenerate:
		_, err = h.exports.Generate(ctx, job.RequestID, job.Token, job.actor(), audit.RequestMeta{})
	case JobErasureExecute:
		_, err = h.erasures.Execute(ctx, job.RequestID, job.actor(), audit.RequestMeta{})
	case JobOverdueSweep:
		var result *SweepResult
		if result, err = h.sweeper.Run(ctx); err == nil {
			h.metrics.RecordItems(JobOverdueSweep, result.Warned)
		}
	case JobDeliveryReap:
		var reaped int
		if reaped, err = h.reaper.Run(ctx); err == nil {
			h.metrics.RecordItems(JobDeliveryReap, reaped)
		}
	case JobSLAReport:
		_, err = h.reporter.LastMonth(ctx)
	default:
		logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	h.metrics.RecordJob(job.JobType, time.Since(startTime), err)

	if err != nil {
		logger.Error().Err(err).Str("job_type", job.JobType).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed")
	msg.Ack()
}

// Publisher enqueues jobs onto the worker topic. It also implements
// dsr.Events, publishing lifecycle notifications for the dispatcher.
type Publisher struct {
	client   *pubsub.Client
	jobs     *pubsub.Publisher
	events   *pubsub.Publisher
	logger   zerolog.Logger
	maxRetry uint64
}

// PublisherConfig holds configuration for creating a Publisher.
type PublisherConfig struct {
	ProjectID  string
	JobTopic   string
	EventTopic string
	Logger     zerolog.Logger
}

// NewPublisher creates a publisher for the job and event topics.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	p := &Publisher{
		client:   client,
		jobs:     client.Publisher(cfg.JobTopic),
		logger:   cfg.Logger,
		maxRetry: 3,
	}
	if cfg.EventTopic != "" {
		p.events = client.Publisher(cfg.EventTopic)
	}
	return p, nil
}

// Close flushes pending messages and closes the underlying client.
func (p *Publisher) Close() error {
	p.jobs.Stop()
	if p.events != nil {
		p.events.Stop()
	}
	return p.client.Close()
}

var _ export.JobQueue = (*Publisher)(nil)
var _ dsr.Events = (*Publisher)(nil)

// EnqueueExport schedules export generation in the worker.
func (p *Publisher) EnqueueExport(ctx context.Context, requestID, token string) error {
	return p.publishJob(ctx, JobMessage{JobType: JobExportGenerate, RequestID: requestID, Token: token})
}

// EnqueueErasure schedules a live erasure run in the worker.
func (p *Publisher) EnqueueErasure(ctx context.Context, requestID string, actor dsr.Actor) error {
	return p.publishJob(ctx, JobMessage{
		JobType:   JobErasureExecute,
		RequestID: requestID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
	})
}

func (p *Publisher) publishJob(ctx context.Context, job JobMessage) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	return p.publish(ctx, p.jobs, data)
}

// publish sends one message, retrying transient failures with exponential
// backoff.
func (p *Publisher) publish(ctx context.Context, topic *pubsub.Publisher, data []byte) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	return backoff.Retry(func() error {
		result := topic.Publish(ctx, &pubsub.Message{Data: data})
		if _, err := result.Get(ctx); err != nil {
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, p.maxRetry), ctx))
}

type eventMessage struct {
	Event         string    `json:"event"`
	RequestID     string    `json:"request_id"`
	RequestType   string    `json:"request_type,omitempty"`
	Regulation    string    `json:"regulation,omitempty"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to,omitempty"`
	Token         string    `json:"token,omitempty"`
	DaysRemaining *int      `json:"days_remaining,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (p *Publisher) publishEvent(ctx context.Context, ev eventMessage) {
	if p.events == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Str("event", ev.Event).Msg("failed to encode event")
		return
	}
	if err := p.publish(ctx, p.events, data); err != nil {
		p.logger.Error().Err(err).Str("event", ev.Event).Str("request_id", ev.RequestID).Msg("failed to publish event")
	}
}

func (p *Publisher) Submitted(ctx context.Context, req *dsr.Request) {
	p.publishEvent(ctx, eventMessage{
		Event:       "submitted",
		RequestID:   req.ID,
		RequestType: string(req.Type),
		Regulation:  string(req.Regulation),
	})
}

func (p *Publisher) StatusChanged(ctx context.Context, req *dsr.Request, from, to dsr.Status) {
	p.publishEvent(ctx, eventMessage{
		Event:     "status_changed",
		RequestID: req.ID,
		From:      string(from),
		To:        string(to),
	})
}

func (p *Publisher) Completed(ctx context.Context, req *dsr.Request) {
	p.publishEvent(ctx, eventMessage{
		Event:       "completed",
		RequestID:   req.ID,
		RequestType: string(req.Type),
	})
}

func (p *Publisher) ExportReady(ctx context.Context, req *dsr.Request, token string) {
	p.publishEvent(ctx, eventMessage{
		Event:     "export_ready",
		RequestID: req.ID,
		Token:     token,
	})
}

func (p *Publisher) ErasureExecute(ctx context.Context, req *dsr.Request) {
	p.publishEvent(ctx, eventMessage{
		Event:     "erasure_execute",
		RequestID: req.ID,
	})
}

func (p *Publisher) Overdue(ctx context.Context, req *dsr.Request, daysRemaining int) {
	remaining := daysRemaining
	p.publishEvent(ctx, eventMessage{
		Event:         "overdue",
		RequestID:     req.ID,
		DaysRemaining: &remaining,
	})
}
