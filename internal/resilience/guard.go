// Package resilience protects erasure handlers and export providers with
// per-invocation timeouts and circuit breakers, so one broken downstream
// store cannot stall or poison a whole orchestration run.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrTimeout is returned when a guarded call exceeds its time budget.
var ErrTimeout = errors.New("handler timed out")

// Default guard settings.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultBreakerTimeout = 60 * time.Second
)

// DefaultReadyToTrip trips a breaker when at least 5 calls have been made and
// the failure rate is 50% or higher.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 5 && failureRatio >= 0.5
}

// GuardConfig holds configuration for a Guard.
type GuardConfig struct {
	// Timeout is the per-invocation budget. Default: 30 seconds.
	Timeout time.Duration

	// BreakerTimeout is the open-state period before half-open. Default: 60s.
	BreakerTimeout time.Duration

	// ReadyToTrip determines when a breaker trips.
	// If nil, uses DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// Guard runs named callbacks under a timeout and a per-name circuit breaker.
type Guard struct {
	cfg      GuardConfig
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[interface{}]
}

// NewGuard creates a Guard with the given configuration.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultBreakerTimeout
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = DefaultReadyToTrip
	}
	return &Guard{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker[interface{}]),
	}
}

// Do invokes fn under the breaker registered for name, bounding its runtime.
// The callback runs in its own goroutine so a handler that ignores its
// context still cannot stall the caller past the timeout.
func (g *Guard) Do(ctx context.Context, name string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	breaker := g.breaker(name)

	return breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		type outcome struct {
			value interface{}
			err   error
		}
		done := make(chan outcome, 1)
		go func() {
			// A panicking callback must surface as a failed call, not
			// take down the process.
			defer func() {
				if rec := recover(); rec != nil {
					done <- outcome{err: fmt.Errorf("handler panic: %v", rec)}
				}
			}()
			v, err := fn(callCtx)
			done <- outcome{value: v, err: err}
		}()

		select {
		case o := <-done:
			return o.value, o.err
		case <-callCtx.Done():
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, callCtx.Err()
		}
	})
}

// State returns the breaker state for a name, or closed if never used.
func (g *Guard) State(name string) gobreaker.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[name]; ok {
		return b.State()
	}
	return gobreaker.StateClosed
}

func (g *Guard) breaker(name string) *gobreaker.CircuitBreaker[interface{}] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[name]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     g.cfg.BreakerTimeout,
		ReadyToTrip: g.cfg.ReadyToTrip,
	})
	g.breakers[name] = b
	return b
}
