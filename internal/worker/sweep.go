// Package worker provides background job processing: overdue sweeps,
// export/erasure execution off the request path, delivery reaping, and
// periodic SLA reporting.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
)

// OverdueThreshold is the fraction of the SLA budget after which an open
// request triggers a warning.
const OverdueThreshold = 0.8

// WarnInterval is the per-request throttle between repeated warnings.
const WarnInterval = 24 * time.Hour

// OverdueSweeperConfig holds configuration for the overdue sweeper.
type OverdueSweeperConfig struct {
	Requests *dsr.Service
	Events   dsr.Events
	Logger   zerolog.Logger

	// PageSize bounds each listing call. Default: 200.
	PageSize int
}

// OverdueSweeper walks all open requests and emits an overdue warning for
// each one that has consumed at least 80% of its SLA budget. Warnings are
// throttled per request so running the sweep twice in one day emits no
// duplicates.
type OverdueSweeper struct {
	requests *dsr.Service
	events   dsr.Events
	logger   zerolog.Logger
	pageSize int
	clock    func() time.Time

	mu     sync.Mutex
	warned map[string]time.Time
}

// NewOverdueSweeper creates a new sweeper.
func NewOverdueSweeper(cfg OverdueSweeperConfig) *OverdueSweeper {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	events := cfg.Events
	if events == nil {
		events = dsr.NopEvents{}
	}
	return &OverdueSweeper{
		requests: cfg.Requests,
		events:   events,
		logger:   cfg.Logger,
		pageSize: pageSize,
		clock:    time.Now,
		warned:   make(map[string]time.Time),
	}
}

// SetClock overrides the time source. Tests only.
func (s *OverdueSweeper) SetClock(clock func() time.Time) {
	s.clock = clock
}

// SweepResult summarizes one sweeper run.
type SweepResult struct {
	Scanned   int
	Warned    int
	Throttled int
}

// Run performs one sweep over every open request. It is idempotent within
// the warn interval: re-running the same day re-scans but re-warns nothing.
func (s *OverdueSweeper) Run(ctx context.Context) (*SweepResult, error) {
	now := s.clock().UTC()
	result := &SweepResult{}

	for _, status := range []dsr.Status{dsr.StatusVerified, dsr.StatusInProgress} {
		st := status
		offset := 0
		for {
			page, err := s.requests.List(ctx, dsr.ListFilters{Status: &st}, s.pageSize, offset)
			if err != nil {
				return result, err
			}
			for _, req := range page {
				result.Scanned++
				s.check(ctx, req, now, result)
			}
			if len(page) < s.pageSize {
				break
			}
			offset += s.pageSize
		}
	}

	s.prune(now)

	s.logger.Info().
		Int("scanned", result.Scanned).
		Int("warned", result.Warned).
		Int("throttled", result.Throttled).
		Msg("overdue sweep completed")
	return result, nil
}

func (s *OverdueSweeper) check(ctx context.Context, req *dsr.Request, now time.Time, result *SweepResult) {
	if req.SLADays <= 0 {
		return
	}

	elapsed := dsr.BusinessDaysBetween(req.SubmittedAt, now)
	if float64(elapsed)/float64(req.SLADays) < OverdueThreshold {
		return
	}

	s.mu.Lock()
	last, seen := s.warned[req.ID]
	if seen && now.Sub(last) < WarnInterval {
		s.mu.Unlock()
		result.Throttled++
		return
	}
	s.warned[req.ID] = now
	s.mu.Unlock()

	remaining := daysRemaining(req, now)
	s.events.Overdue(ctx, req, remaining)
	result.Warned++

	s.logger.Warn().
		Str("request_id", req.ID).
		Str("regulation", string(req.Regulation)).
		Int("elapsed_days", elapsed).
		Int("days_remaining", remaining).
		Msg("request approaching SLA deadline")
}

// daysRemaining counts business days from now to the deadline, truncated
// toward zero, negative once the deadline has passed.
func daysRemaining(req *dsr.Request, now time.Time) int {
	if now.After(req.SLADeadline) {
		return -dsr.BusinessDaysBetween(req.SLADeadline, now)
	}
	return dsr.BusinessDaysBetween(now, req.SLADeadline)
}

// prune drops throttle entries old enough to be irrelevant so the map does
// not grow with every request ever warned.
func (s *OverdueSweeper) prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.warned {
		if now.Sub(at) > 7*24*time.Hour {
			delete(s.warned, id)
		}
	}
}
