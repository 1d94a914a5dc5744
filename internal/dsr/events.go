package dsr

import (
	"context"

	"github.com/rs/zerolog"
)

// Events receives lifecycle notifications. Production wiring publishes these
// to the notification dispatcher's job transport; the core never blocks on a
// consumer and never surfaces a consumer error to the requester.
type Events interface {
	Submitted(ctx context.Context, req *Request)
	StatusChanged(ctx context.Context, req *Request, from, to Status)
	Completed(ctx context.Context, req *Request)
	ExportReady(ctx context.Context, req *Request, token string)
	ErasureExecute(ctx context.Context, req *Request)
	Overdue(ctx context.Context, req *Request, daysRemaining int)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) Submitted(context.Context, *Request)                 {}
func (NopEvents) StatusChanged(context.Context, *Request, Status, Status) {}
func (NopEvents) Completed(context.Context, *Request)                 {}
func (NopEvents) ExportReady(context.Context, *Request, string)       {}
func (NopEvents) ErasureExecute(context.Context, *Request)            {}
func (NopEvents) Overdue(context.Context, *Request, int)              {}

// LogEvents writes each event to the structured log. Used as a fallback when
// no job transport is configured.
type LogEvents struct {
	Logger zerolog.Logger
}

func (e LogEvents) Submitted(_ context.Context, req *Request) {
	e.Logger.Info().Str("request_id", req.ID).Str("type", string(req.Type)).Msg("dsr submitted")
}

func (e LogEvents) StatusChanged(_ context.Context, req *Request, from, to Status) {
	e.Logger.Info().Str("request_id", req.ID).Str("from", string(from)).Str("to", string(to)).Msg("dsr status changed")
}

func (e LogEvents) Completed(_ context.Context, req *Request) {
	e.Logger.Info().Str("request_id", req.ID).Msg("dsr completed")
}

func (e LogEvents) ExportReady(_ context.Context, req *Request, token string) {
	e.Logger.Info().Str("request_id", req.ID).Int("token_len", len(token)).Msg("dsr export ready")
}

func (e LogEvents) ErasureExecute(_ context.Context, req *Request) {
	e.Logger.Info().Str("request_id", req.ID).Msg("dsr erasure execution requested")
}

func (e LogEvents) Overdue(_ context.Context, req *Request, daysRemaining int) {
	e.Logger.Warn().Str("request_id", req.ID).Int("days_remaining", daysRemaining).Msg("dsr approaching SLA deadline")
}

var (
	_ Events = NopEvents{}
	_ Events = LogEvents{}
)
