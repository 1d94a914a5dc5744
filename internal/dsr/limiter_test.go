package dsr_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
)

func TestHashIdentity_Normalizes(t *testing.T) {
	base := dsr.HashIdentity("alice@example.com")

	assert.Equal(t, base, dsr.HashIdentity("ALICE@example.com"))
	assert.Equal(t, base, dsr.HashIdentity("  alice@example.com  "))
	assert.NotEqual(t, base, dsr.HashIdentity("bob@example.com"))
	assert.Len(t, base, 64)
	assert.NotContains(t, base, "alice")
}

func TestSubmissionLimiter_CeilingEnforced(t *testing.T) {
	limiter := dsr.NewSubmissionLimiter(5, time.Hour)
	identity := dsr.HashIdentity("alice@example.com")

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Check(identity), "submission %d", i+1)
		limiter.Record(identity)
	}

	err := limiter.Check(identity)
	require.Error(t, err)

	var rateErr *dsr.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Greater(t, rateErr.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rateErr.RetryAfter, time.Hour)
}

func TestSubmissionLimiter_IdentitiesIndependent(t *testing.T) {
	limiter := dsr.NewSubmissionLimiter(2, time.Hour)
	alice := dsr.HashIdentity("alice@example.com")
	bob := dsr.HashIdentity("bob@example.com")

	limiter.Record(alice)
	limiter.Record(alice)

	require.Error(t, limiter.Check(alice))
	assert.NoError(t, limiter.Check(bob))
}

func TestSubmissionLimiter_WindowSlides(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	limiter := dsr.NewSubmissionLimiter(2, time.Hour)
	limiter.SetClock(func() time.Time { return now })
	identity := dsr.HashIdentity("alice@example.com")

	limiter.Record(identity)
	now = now.Add(30 * time.Minute)
	limiter.Record(identity)
	require.Error(t, limiter.Check(identity))

	// The first submission drops out of the window; one slot frees up.
	now = now.Add(31 * time.Minute)
	assert.NoError(t, limiter.Check(identity))
}

func TestSubmissionLimiter_Defaults(t *testing.T) {
	limiter := dsr.NewSubmissionLimiter(0, 0)
	identity := dsr.HashIdentity("alice@example.com")

	for i := 0; i < dsr.DefaultSubmissionLimit; i++ {
		require.NoError(t, limiter.Check(identity))
		limiter.Record(identity)
	}
	assert.Error(t, limiter.Check(identity))
}
