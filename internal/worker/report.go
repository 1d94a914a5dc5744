package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
)

// SLAReport summarizes compliance performance for one calendar month.
type SLAReport struct {
	Month           string         `json:"month"`
	Submitted       int            `json:"submitted"`
	Completed       int            `json:"completed"`
	CompletedOnTime int            `json:"completed_on_time"`
	CompletedLate   int            `json:"completed_late"`
	Rejected        int            `json:"rejected"`
	StillOpen       int            `json:"still_open"`
	OverdueNow      int            `json:"overdue_now"`

	// AvgCompletionDays is the mean calendar days from submission to
	// completion across completed requests, zero when none completed.
	AvgCompletionDays float64 `json:"avg_completion_days"`

	ByType       map[string]int `json:"by_type"`
	ByRegulation map[string]int `json:"by_regulation"`
}

// SLAReporterConfig holds configuration for the monthly reporter.
type SLAReporterConfig struct {
	Requests *dsr.Service
	Logger   zerolog.Logger

	// PageSize bounds each listing call. Default: 200.
	PageSize int
}

// SLAReporter produces the monthly SLA compliance report from the request
// store.
type SLAReporter struct {
	requests *dsr.Service
	logger   zerolog.Logger
	pageSize int
	clock    func() time.Time
}

// NewSLAReporter creates a new reporter.
func NewSLAReporter(cfg SLAReporterConfig) *SLAReporter {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	return &SLAReporter{
		requests: cfg.Requests,
		logger:   cfg.Logger,
		pageSize: pageSize,
		clock:    time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (r *SLAReporter) SetClock(clock func() time.Time) {
	r.clock = clock
}

// Generate builds the report for the given month, counting every request
// submitted within it. Safe to re-run; it only reads.
func (r *SLAReporter) Generate(ctx context.Context, year int, month time.Month) (*SLAReport, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	now := r.clock().UTC()

	report := &SLAReport{
		Month:        start.Format("2006-01"),
		ByType:       make(map[string]int),
		ByRegulation: make(map[string]int),
	}

	var completionDays float64
	offset := 0
	for {
		page, err := r.requests.List(ctx, dsr.ListFilters{}, r.pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, req := range page {
			if req.SubmittedAt.Before(start) || !req.SubmittedAt.Before(end) {
				continue
			}
			completionDays += r.tally(report, req, now)
		}
		if len(page) < r.pageSize {
			break
		}
		offset += r.pageSize
	}
	if report.Completed > 0 {
		report.AvgCompletionDays = completionDays / float64(report.Completed)
	}

	r.logger.Info().
		Str("month", report.Month).
		Int("submitted", report.Submitted).
		Int("completed_on_time", report.CompletedOnTime).
		Int("completed_late", report.CompletedLate).
		Int("overdue_now", report.OverdueNow).
		Msg("monthly SLA report generated")

	return report, nil
}

// LastMonth generates the report for the month preceding the current one.
func (r *SLAReporter) LastMonth(ctx context.Context) (*SLAReport, error) {
	prev := r.clock().UTC().AddDate(0, -1, 0)
	return r.Generate(ctx, prev.Year(), prev.Month())
}

// tally counts one request and returns its completion time in days, zero
// unless the request completed.
func (r *SLAReporter) tally(report *SLAReport, req *dsr.Request, now time.Time) float64 {
	report.Submitted++
	report.ByType[string(req.Type)]++
	report.ByRegulation[string(req.Regulation)]++

	switch req.Status {
	case dsr.StatusCompleted:
		report.Completed++
		if req.CompletedAt == nil {
			report.CompletedOnTime++
			return 0
		}
		if req.CompletedAt.After(req.SLADeadline) {
			report.CompletedLate++
		} else {
			report.CompletedOnTime++
		}
		return req.CompletedAt.Sub(req.SubmittedAt).Hours() / 24
	case dsr.StatusRejected:
		report.Rejected++
	default:
		report.StillOpen++
		if req.Overdue(now) {
			report.OverdueNow++
		}
	}
	return 0
}
