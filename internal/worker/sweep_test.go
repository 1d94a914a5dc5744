package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/worker"
)

// recordingEvents captures overdue notifications.
type recordingEvents struct {
	dsr.NopEvents
	mu      sync.Mutex
	overdue []string
}

func (e *recordingEvents) Overdue(_ context.Context, req *dsr.Request, _ int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overdue = append(e.overdue, req.ID)
}

func (e *recordingEvents) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.overdue)
}

type sweepEnv struct {
	requests *dsr.Service
	sweeper  *worker.OverdueSweeper
	events   *recordingEvents
	now      time.Time
}

func newSweepEnv(t *testing.T) *sweepEnv {
	t.Helper()

	env := &sweepEnv{
		events: &recordingEvents{},
		now:    time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), // Monday
	}

	env.requests = dsr.NewService(dsr.ServiceConfig{
		Repository: dsr.NewInMemoryRepository(),
		Audit:      audit.NewService(audit.NewInMemoryRepository(), zerolog.Nop()),
		Logger:     zerolog.Nop(),
	})
	env.requests.SetClock(func() time.Time { return env.now })

	env.sweeper = worker.NewOverdueSweeper(worker.OverdueSweeperConfig{
		Requests: env.requests,
		Events:   env.events,
		Logger:   zerolog.Nop(),
	})
	env.sweeper.SetClock(func() time.Time { return env.now })

	return env
}

func (e *sweepEnv) openRequest(t *testing.T, email string, reg dsr.Regulation) *dsr.Request {
	t.Helper()
	ctx := context.Background()
	req, err := e.requests.Submit(ctx, dsr.SubmitInput{
		Type:       dsr.TypeAccess,
		Email:      email,
		Regulation: reg,
	})
	require.NoError(t, err)
	out, err := e.requests.VerifyEmail(ctx, req.VerificationToken, audit.RequestMeta{})
	require.NoError(t, err)
	return out
}

// advanceBusinessDays moves the clock forward by n business days.
func (e *sweepEnv) advanceBusinessDays(n int) {
	for n > 0 {
		e.now = e.now.AddDate(0, 0, 1)
		if wd := e.now.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
}

func TestOverdueSweeper_WarnsAtThreshold(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	req := env.openRequest(t, "alice@example.com", dsr.RegulationGDPR) // 30-day budget

	// 23 of 30 business days elapsed: under the 80% threshold.
	env.advanceBusinessDays(23)
	result, err := env.sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 0, result.Warned)
	assert.Equal(t, 0, env.events.count())

	// 24 of 30: exactly 80%.
	env.advanceBusinessDays(1)
	result, err = env.sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Warned)
	require.Equal(t, 1, env.events.count())
	assert.Equal(t, req.ID, env.events.overdue[0])
}

func TestOverdueSweeper_ThrottlesRepeatWarnings(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	env.openRequest(t, "alice@example.com", dsr.RegulationLGPD) // 15-day budget
	env.advanceBusinessDays(14)

	result, err := env.sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Warned)

	// Re-running within 24h re-scans but warns nothing new.
	env.now = env.now.Add(6 * time.Hour)
	result, err = env.sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Warned)
	assert.Equal(t, 1, result.Throttled)
	assert.Equal(t, 1, env.events.count())

	// Past the throttle window the warning repeats.
	env.now = env.now.Add(19 * time.Hour)
	result, err = env.sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Warned)
	assert.Equal(t, 2, env.events.count())
}

func TestOverdueSweeper_IgnoresClosedRequests(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()
	actor := dsr.Actor{ID: "stf_1", Role: "admin"}

	done := env.openRequest(t, "done@example.com", dsr.RegulationLGPD)
	require.NoError(t, env.requests.Transition(ctx, done.ID, dsr.StatusInProgress, actor, audit.RequestMeta{}))
	require.NoError(t, env.requests.Transition(ctx, done.ID, dsr.StatusCompleted, actor, audit.RequestMeta{}))

	rejected := env.openRequest(t, "rejected@example.com", dsr.RegulationLGPD)
	require.NoError(t, env.requests.Transition(ctx, rejected.ID, dsr.StatusRejected, actor, audit.RequestMeta{}))

	held := env.openRequest(t, "held@example.com", dsr.RegulationLGPD)
	require.NoError(t, env.requests.Transition(ctx, held.ID, dsr.StatusInProgress, actor, audit.RequestMeta{}))
	require.NoError(t, env.requests.Transition(ctx, held.ID, dsr.StatusOnHold, actor, audit.RequestMeta{}))

	env.advanceBusinessDays(20)
	result, err := env.sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
	assert.Equal(t, 0, env.events.count())
}

func TestOverdueSweeper_InProgressStillCounted(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	req := env.openRequest(t, "alice@example.com", dsr.RegulationLGPD)
	require.NoError(t, env.requests.Transition(ctx, req.ID, dsr.StatusInProgress, dsr.Actor{ID: "stf_1"}, audit.RequestMeta{}))

	env.advanceBusinessDays(13)
	result, err := env.sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Warned)
}
