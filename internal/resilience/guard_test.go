package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/resilience"
)

func TestGuard_PassesResultThrough(t *testing.T) {
	guard := resilience.NewGuard(resilience.GuardConfig{})

	value, err := guard.Do(context.Background(), "account", func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestGuard_PassesErrorThrough(t *testing.T) {
	guard := resilience.NewGuard(resilience.GuardConfig{})
	wantErr := errors.New("store unavailable")

	_, err := guard.Do(context.Background(), "account", func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestGuard_TimesOutStalledCallback(t *testing.T) {
	guard := resilience.NewGuard(resilience.GuardConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := guard.Do(context.Background(), "comments", func(ctx context.Context) (interface{}, error) {
		// Ignores its context on purpose.
		time.Sleep(500 * time.Millisecond)
		return nil, nil
	})
	assert.ErrorIs(t, err, resilience.ErrTimeout)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestGuard_RecoversPanickingCallback(t *testing.T) {
	guard := resilience.NewGuard(resilience.GuardConfig{})

	_, err := guard.Do(context.Background(), "comments", func(ctx context.Context) (interface{}, error) {
		panic("handler bug")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
	assert.Contains(t, err.Error(), "handler bug")

	// The panic counts as one failure; the breaker stays usable.
	assert.Equal(t, gobreaker.StateClosed, guard.State("comments"))

	value, err := guard.Do(context.Background(), "comments", func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestGuard_TripsAfterRepeatedFailures(t *testing.T) {
	guard := resilience.NewGuard(resilience.GuardConfig{})
	wantErr := errors.New("boom")

	for i := 0; i < 5; i++ {
		_, err := guard.Do(context.Background(), "consent_logs", func(ctx context.Context) (interface{}, error) {
			return nil, wantErr
		})
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, guard.State("consent_logs"))

	_, err := guard.Do(context.Background(), "consent_logs", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestGuard_BreakersAreIndependent(t *testing.T) {
	guard := resilience.NewGuard(resilience.GuardConfig{})

	for i := 0; i < 5; i++ {
		_, _ = guard.Do(context.Background(), "flaky", func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("boom")
		})
	}
	require.Equal(t, gobreaker.StateOpen, guard.State("flaky"))

	value, err := guard.Do(context.Background(), "healthy", func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, gobreaker.StateClosed, guard.State("healthy"))
}
