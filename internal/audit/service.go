package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestMeta carries the transport metadata of the action being audited.
// Raw values are hashed before persistence and then discarded.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// HashValue returns the hex-encoded SHA-256 of a value, or "" for empty
// input. Used for IP addresses and user agents so no raw PII is at rest.
func HashValue(v string) string {
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// Service records audit entries. A failed write is logged but does not fail
// the audited operation; the trail is evidence, not a gatekeeper.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	clock  func() time.Time
}

// NewService creates a new audit service.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		clock:  time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Service) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Record appends an entry for an action on a request. Meta is hashed; actorID
// may be nil for system/requester actions.
func (s *Service) Record(ctx context.Context, requestID string, action Action, actorID *string, note string, metadata map[string]interface{}, meta RequestMeta) {
	entry := &Entry{
		ID:            "aud_" + uuid.New().String()[:22],
		RequestID:     requestID,
		Action:        action,
		ActorID:       actorID,
		Note:          note,
		Metadata:      metadata,
		IPHash:        HashValue(meta.IP),
		UserAgentHash: HashValue(meta.UserAgent),
		CreatedAt:     s.clock(),
	}

	if _, err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Error().
			Err(err).
			Str("request_id", requestID).
			Str("action", string(action)).
			Msg("failed to append audit entry")
	}
}

// Query retrieves the audit trail matching the filters.
func (s *Service) Query(ctx context.Context, filters Filters) ([]*Entry, int, error) {
	return s.repo.Query(ctx, filters)
}

// Trail returns every entry for one request, oldest first.
func (s *Service) Trail(ctx context.Context, requestID string) ([]*Entry, error) {
	entries, _, err := s.repo.Query(ctx, Filters{RequestID: requestID})
	return entries, err
}

// EraseRequestLogs removes all entries for a request. This is the only
// permitted deletion path, reserved for erasure-of-evidence obligations.
func (s *Service) EraseRequestLogs(ctx context.Context, requestID string) (int, error) {
	count, err := s.repo.DeleteByRequest(ctx, requestID)
	if err != nil {
		return 0, err
	}
	s.logger.Info().
		Str("request_id", requestID).
		Int("deleted", count).
		Msg("audit trail erased for request")
	return count, nil
}
