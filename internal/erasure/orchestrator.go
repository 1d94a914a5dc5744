package erasure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/resilience"
)

// HandlerResult is the outcome of one handler invocation.
type HandlerResult struct {
	Key     string
	Label   string
	Items   []AffectedItem
	Err     error
	Skipped bool
}

// Summary aggregates a full orchestration run.
type Summary struct {
	Handlers      []HandlerResult
	Succeeded     int
	Failed        int
	Skipped       int
	ItemsAffected int
}

// Preview is the result of a dry run: the audit entries the live run would
// produce plus the aggregate summary. Nothing is persisted.
type Preview struct {
	Entries []*audit.Entry
	Summary *Summary
}

// OrchestratorConfig holds configuration for creating an Orchestrator.
type OrchestratorConfig struct {
	Registry *Registry
	Requests *dsr.Service
	Audit    *audit.Service
	Guard    *resilience.Guard
	Logger   zerolog.Logger
}

// Orchestrator executes the registered handlers against one request.
type Orchestrator struct {
	registry *Registry
	requests *dsr.Service
	audit    *audit.Service
	guard    *resilience.Guard
	logger   zerolog.Logger
	clock    func() time.Time
}

// NewOrchestrator creates a new erasure orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	guard := cfg.Guard
	if guard == nil {
		guard = resilience.NewGuard(resilience.GuardConfig{})
	}
	return &Orchestrator{
		registry: cfg.Registry,
		requests: cfg.Requests,
		audit:    cfg.Audit,
		guard:    guard,
		logger:   cfg.Logger,
		clock:    time.Now,
	}
}

// Execute runs a live erasure for the request. The request moves to
// in_progress before the first handler runs and to completed afterwards with
// a summary note. Handler failures are recorded and skipped over; they never
// abort the run or leave the request half-processed.
func (o *Orchestrator) Execute(ctx context.Context, id string, actor dsr.Actor, meta audit.RequestMeta) (*Summary, error) {
	req, err := o.requests.BeginErasure(ctx, id, actor, meta)
	if err != nil {
		return nil, err
	}

	o.audit.Record(ctx, id, audit.ActionErasureStarted, actor.IDPtr(), "", map[string]interface{}{
		"handlers": o.registry.Len(),
	}, meta)

	summary := o.run(ctx, req, false, func(action audit.Action, note string, metadata map[string]interface{}) {
		o.audit.Record(ctx, id, action, actor.IDPtr(), note, metadata, meta)
	})

	o.audit.Record(ctx, id, audit.ActionErasureCompleted, actor.IDPtr(), "", map[string]interface{}{
		"succeeded":      summary.Succeeded,
		"failed":         summary.Failed,
		"skipped":        summary.Skipped,
		"items_affected": summary.ItemsAffected,
	}, meta)

	note := fmt.Sprintf("Erasure executed: %d handler(s) succeeded, %d failed, %d skipped, %d item(s) affected.",
		summary.Succeeded, summary.Failed, summary.Skipped, summary.ItemsAffected)
	if err := o.requests.CompleteWithNote(ctx, id, note, actor, meta); err != nil {
		return summary, err
	}

	o.audit.Record(ctx, id, audit.ActionErasureExecuted, actor.IDPtr(), "", nil, meta)

	o.logger.Info().
		Str("request_id", id).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("items_affected", summary.ItemsAffected).
		Msg("erasure run completed")

	return summary, nil
}

// Preview runs the pipeline in dry-run mode. No handler mutates state, the
// request status does not change, and the would-be audit entries are returned
// rather than persisted. Only one erasure_preview marker is written.
func (o *Orchestrator) Preview(ctx context.Context, id string, actor dsr.Actor, meta audit.RequestMeta) (*Preview, error) {
	req, err := o.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Type != dsr.TypeErasure {
		return nil, dsr.ErrNotErasable
	}
	if req.Status != dsr.StatusVerified && req.Status != dsr.StatusInProgress {
		return nil, dsr.ErrNotErasable
	}

	var entries []*audit.Entry
	collect := func(action audit.Action, note string, metadata map[string]interface{}) {
		entries = append(entries, &audit.Entry{
			ID:        "aud_" + uuid.New().String()[:22],
			RequestID: id,
			Action:    action,
			ActorID:   actor.IDPtr(),
			Note:      note,
			Metadata:  metadata,
			CreatedAt: o.clock(),
		})
	}

	summary := o.run(ctx, req, true, collect)

	o.audit.Record(ctx, id, audit.ActionErasurePreview, actor.IDPtr(), "", map[string]interface{}{
		"handlers":       len(summary.Handlers),
		"items_affected": summary.ItemsAffected,
	}, meta)

	return &Preview{Entries: entries, Summary: summary}, nil
}

// run invokes every handler in ascending priority order, reporting each
// outcome through record. One handler's failure never blocks the next.
func (o *Orchestrator) run(ctx context.Context, req *dsr.Request, dryRun bool, record func(audit.Action, string, map[string]interface{})) *Summary {
	summary := &Summary{}

	for _, h := range o.registry.Handlers() {
		handler := h
		value, err := o.guard.Do(ctx, "erasure:"+handler.Key, func(callCtx context.Context) (interface{}, error) {
			return handler.Fn(callCtx, req, dryRun)
		})

		result := HandlerResult{Key: handler.Key, Label: handler.Label}
		switch {
		case err != nil:
			result.Err = err
			summary.Failed++
			record(audit.ActionHandlerFailed, "", map[string]interface{}{
				"handler": handler.Key,
				"label":   handler.Label,
				"error":   err.Error(),
			})
			o.logger.Warn().
				Err(err).
				Str("request_id", req.ID).
				Str("handler", handler.Key).
				Bool("dry_run", dryRun).
				Msg("erasure handler failed")
		default:
			items, _ := value.([]AffectedItem)
			if len(items) == 0 {
				result.Skipped = true
				summary.Skipped++
				record(audit.ActionHandlerSkipped, "", map[string]interface{}{
					"handler": handler.Key,
					"label":   handler.Label,
				})
			} else {
				result.Items = items
				summary.Succeeded++
				summary.ItemsAffected += len(items)
				record(audit.ActionHandlerSuccess, "", map[string]interface{}{
					"handler": handler.Key,
					"label":   handler.Label,
					"items":   len(items),
				})
			}
		}
		summary.Handlers = append(summary.Handlers, result)
	}

	return summary
}
