package dsr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Submission rate limit defaults.
const (
	DefaultSubmissionLimit  = 5
	DefaultSubmissionWindow = time.Hour
)

// RateLimitError is returned when a requester identity has exceeded the
// submission ceiling within the rolling window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("submission limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

// HashIdentity derives the rate-limit and audit key from a requester email.
// Only this one-way hash is ever stored or compared; the raw address is not.
func HashIdentity(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// SubmissionLimiter bounds submissions per hashed requester identity within a
// rolling window. Check is called before any side effect; Record only after a
// successful submission.
type SubmissionLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	seen   map[string][]time.Time
	clock  func() time.Time
}

// NewSubmissionLimiter creates a limiter with the given ceiling and window.
// Non-positive values fall back to the defaults.
func NewSubmissionLimiter(limit int, window time.Duration) *SubmissionLimiter {
	if limit <= 0 {
		limit = DefaultSubmissionLimit
	}
	if window <= 0 {
		window = DefaultSubmissionWindow
	}
	return &SubmissionLimiter{
		limit:  limit,
		window: window,
		seen:   make(map[string][]time.Time),
		clock:  time.Now,
	}
}

// Check reports whether another submission is admissible for the identity.
// When the ceiling is reached it returns a *RateLimitError carrying the time
// until the oldest counted submission leaves the window.
func (l *SubmissionLimiter) Check(identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	recent := l.prune(identity, now)
	if len(recent) >= l.limit {
		retry := recent[0].Add(l.window).Sub(now)
		return &RateLimitError{RetryAfter: retry}
	}
	return nil
}

// Record counts a successful submission against the identity.
func (l *SubmissionLimiter) Record(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.seen[identity] = append(l.prune(identity, now), now)
}

// prune drops entries outside the rolling window. Caller holds the lock.
func (l *SubmissionLimiter) prune(identity string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	var recent []time.Time
	for _, t := range l.seen[identity] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(l.seen, identity)
	} else {
		l.seen[identity] = recent
	}
	return recent
}

// SetClock overrides the time source. Intended for tests.
func (l *SubmissionLimiter) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}
