package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/resilience"
)

// JobQueue hands export generation off the synchronous request path. The
// worker consumes the queue and calls Generate.
type JobQueue interface {
	EnqueueExport(ctx context.Context, requestID, token string) error
}

// Result summarizes one completed generation run.
type Result struct {
	Archive  *Archive
	Sections []string
	Failed   []string
}

// OrchestratorConfig holds configuration for creating an Orchestrator.
type OrchestratorConfig struct {
	Registry *Registry
	Requests *dsr.Service
	Audit    *audit.Service
	Packager *Packager
	Delivery *DeliveryManager
	Events   dsr.Events
	Guard    *resilience.Guard
	Queue    JobQueue
	Logger   zerolog.Logger
}

// Orchestrator drives export generation: providers in, one sealed archive
// out, delivered through a single-use token.
type Orchestrator struct {
	registry *Registry
	requests *dsr.Service
	audit    *audit.Service
	packager *Packager
	delivery *DeliveryManager
	events   dsr.Events
	guard    *resilience.Guard
	queue    JobQueue
	logger   zerolog.Logger
}

// NewOrchestrator creates a new export orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	guard := cfg.Guard
	if guard == nil {
		guard = resilience.NewGuard(resilience.GuardConfig{})
	}
	events := cfg.Events
	if events == nil {
		events = dsr.NopEvents{}
	}
	return &Orchestrator{
		registry: cfg.Registry,
		requests: cfg.Requests,
		audit:    cfg.Audit,
		packager: cfg.Packager,
		delivery: cfg.Delivery,
		events:   events,
		guard:    guard,
		queue:    cfg.Queue,
		logger:   cfg.Logger,
	}
}

// RequestExport issues the download token for a request and schedules
// generation. With a job queue configured the heavy work runs in the worker;
// without one it runs inline before returning.
func (o *Orchestrator) RequestExport(ctx context.Context, id string, actor dsr.Actor, meta audit.RequestMeta) (string, error) {
	if _, err := o.requests.EnsureExportable(ctx, id); err != nil {
		return "", err
	}

	token, err := o.delivery.Issue(ctx, id)
	if err != nil {
		return "", err
	}

	if o.queue != nil {
		if err := o.queue.EnqueueExport(ctx, id, token); err != nil {
			return "", fmt.Errorf("scheduling export job: %w", err)
		}
		return token, nil
	}

	if _, err := o.Generate(ctx, id, token, actor, meta); err != nil {
		return "", err
	}
	return token, nil
}

// Generate collects all provider sections and seals them into a package. A
// provider failure is recorded and skipped; failure to seal the archive
// fails the whole export and leaves the request in_progress with no
// delivery.
func (o *Orchestrator) Generate(ctx context.Context, id, token string, actor dsr.Actor, meta audit.RequestMeta) (*Result, error) {
	req, err := o.requests.EnsureExportable(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status == dsr.StatusVerified {
		if err := o.requests.Transition(ctx, id, dsr.StatusInProgress, actor, meta); err != nil {
			return nil, err
		}
		req.Status = dsr.StatusInProgress
	}

	result := &Result{}
	var sections []Section
	for _, p := range o.registry.Providers() {
		provider := p
		value, err := o.guard.Do(ctx, "export:"+provider.Key, func(callCtx context.Context) (interface{}, error) {
			return provider.Fn(callCtx, req)
		})
		if err != nil {
			result.Failed = append(result.Failed, provider.Key)
			o.audit.Record(ctx, id, audit.ActionHandlerFailed, actor.IDPtr(), "", map[string]interface{}{
				"stage":    "export",
				"provider": provider.Key,
				"label":    provider.Label,
				"error":    err.Error(),
			}, meta)
			o.logger.Warn().
				Err(err).
				Str("request_id", id).
				Str("provider", provider.Key).
				Msg("export provider failed")
			continue
		}

		data, _ := value.(map[string]interface{})
		if len(data) == 0 {
			continue
		}
		sections = append(sections, Section{Key: provider.Key, Label: provider.Label, Data: data})
		result.Sections = append(result.Sections, provider.Key)
	}

	archive, err := o.packager.Build(req, sections)
	if err != nil {
		if discardErr := o.delivery.Discard(ctx, id); discardErr != nil {
			o.logger.Warn().Err(discardErr).Str("request_id", id).Msg("failed to discard delivery after packaging error")
		}
		return nil, err
	}
	result.Archive = archive

	if err := o.delivery.Attach(ctx, id, archive); err != nil {
		return nil, fmt.Errorf("attaching package: %w", err)
	}

	o.audit.Record(ctx, id, audit.ActionExportGenerated, actor.IDPtr(), "", map[string]interface{}{
		"sections":   result.Sections,
		"size_bytes": archive.SizeBytes,
		"digest":     archive.Digest,
	}, meta)

	o.events.ExportReady(ctx, req, token)

	note := fmt.Sprintf("Export package generated: %d section(s), %d byte(s), valid until %s.",
		len(result.Sections), archive.SizeBytes, time.Now().UTC().Add(DefaultValidity).Format(time.RFC3339))
	if err := o.requests.CompleteWithNote(ctx, id, note, actor, meta); err != nil {
		return result, err
	}

	return result, nil
}
