package dsr

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/models"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
)

// Validation constants.
const (
	MaxDetailsLength = 2000
	MaxNoteLength    = 2000
)

// emailRegex validates the basic shape of an email address.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Roles that satisfy the elevated-capability requirement for assignment.
var elevatedRoles = map[string]bool{
	"admin": true,
	"dpo":   true,
}

// Actor identifies who performed an operation. A zero Actor means the system
// or the requester themselves.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IDPtr() *string {
	if a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}

// SubmitInput carries everything needed to open a request. Transport metadata
// is passed in explicitly so the engine stays testable without an HTTP layer.
type SubmitInput struct {
	Type       RequestType
	Email      string
	UserID     *string
	Regulation Regulation
	Details    string
	Meta       audit.RequestMeta
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// ServiceConfig holds configuration for creating a Service.
type ServiceConfig struct {
	Repository Repository
	Audit      *audit.Service
	Limiter    *SubmissionLimiter
	Events     Events
	Logger     zerolog.Logger
}

// Service is the lifecycle engine. It owns the state machine and is the
// single mutator of a request's status and timestamps.
type Service struct {
	repo    Repository
	audit   *audit.Service
	limiter *SubmissionLimiter
	events  Events
	logger  zerolog.Logger
	clock   func() time.Time
}

// NewService creates a new lifecycle engine.
func NewService(cfg ServiceConfig) *Service {
	events := cfg.Events
	if events == nil {
		events = NopEvents{}
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewSubmissionLimiter(DefaultSubmissionLimit, DefaultSubmissionWindow)
	}
	return &Service{
		repo:    cfg.Repository,
		audit:   cfg.Audit,
		limiter: limiter,
		events:  events,
		logger:  cfg.Logger,
		clock:   time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Service) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Submit validates and opens a new request. The rate limit is checked before
// any persistence so a rejected submission leaves no trace.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*Request, error) {
	if fieldErrors := s.validateSubmitInput(&input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	identity := HashIdentity(input.Email)
	if err := s.limiter.Check(identity); err != nil {
		return nil, err
	}

	now := s.clock()
	req := &Request{
		ID:                "dsr_" + uuid.New().String()[:22],
		Type:              input.Type,
		Status:            StatusPendingVerification,
		RequesterEmail:    input.Email,
		UserID:            input.UserID,
		Regulation:        input.Regulation,
		Details:           input.Details,
		VerificationToken: newSecret(),
		SubmittedAt:       now,
		SLADays:           SLADays(input.Regulation),
		SLADeadline:       DueDate(now, input.Regulation),
		IPHash:            audit.HashValue(input.Meta.IP),
		UserAgentHash:     audit.HashValue(input.Meta.UserAgent),
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}
	s.limiter.Record(identity)

	s.audit.Record(ctx, req.ID, audit.ActionSubmit, nil, "", map[string]interface{}{
		"type":         string(req.Type),
		"regulation":   string(req.Regulation),
		"sla_days":     req.SLADays,
		"sla_deadline": req.SLADeadline,
	}, input.Meta)
	s.events.Submitted(ctx, req)

	s.logger.Info().
		Str("request_id", req.ID).
		Str("type", string(req.Type)).
		Str("regulation", string(req.Regulation)).
		Time("sla_deadline", req.SLADeadline).
		Msg("dsr request submitted")

	return req, nil
}

// VerifyEmail consumes a verification token. The lookup is scoped to
// pending_verification, so each token succeeds at most once.
func (s *Service) VerifyEmail(ctx context.Context, token string, meta audit.RequestMeta) (*Request, error) {
	req, err := s.repo.GetByVerificationToken(ctx, token)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatusIf(ctx, req.ID, StatusPendingVerification, StatusVerified, nil)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	updated.VerifiedAt = &now
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, updated.ID, audit.ActionVerify, nil, "", nil, meta)
	s.events.StatusChanged(ctx, updated, StatusPendingVerification, StatusVerified)
	return updated, nil
}

// Transition moves a request to a new status. A same-state transition is a
// no-op success. Completing a request past its deadline still succeeds but is
// flagged as an SLA breach in the audit metadata.
func (s *Service) Transition(ctx context.Context, id string, next Status, actor Actor, meta audit.RequestMeta) error {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if req.Status == next {
		return nil
	}
	if !next.Valid() || !req.Status.CanTransitionTo(next) {
		return &TransitionError{RequestID: id, From: req.Status, To: next}
	}

	now := s.clock()
	metadata := map[string]interface{}{
		"from": string(req.Status),
		"to":   string(next),
	}

	// completed_at rides on the conditional update itself, so a completed
	// request can never be stored without its timestamp.
	var completedAt *time.Time
	if next == StatusCompleted {
		completedAt = &now
		if now.After(req.SLADeadline) {
			metadata["sla_breached"] = true
		}
	}

	updated, err := s.repo.UpdateStatusIf(ctx, id, req.Status, next, completedAt)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			// Lost the race to another worker; the stored status moved on.
			return &TransitionError{RequestID: id, From: req.Status, To: next}
		}
		return err
	}

	s.audit.Record(ctx, id, audit.ActionStatusChange, actor.IDPtr(), "", metadata, meta)
	s.events.StatusChanged(ctx, updated, req.Status, next)
	if next == StatusCompleted {
		s.events.Completed(ctx, updated)
	}
	return nil
}

// Assign records the staff member responsible for a request. The assignee
// must hold an elevated role.
func (s *Service) Assign(ctx context.Context, id string, assignee Actor, actor Actor, meta audit.RequestMeta) error {
	if !elevatedRoles[assignee.Role] {
		return ErrInvalidAssignee
	}

	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	req.ProcessedBy = assignee.IDPtr()
	if err := s.repo.Update(ctx, req); err != nil {
		return err
	}

	s.audit.Record(ctx, id, audit.ActionAssign, actor.IDPtr(), "", map[string]interface{}{
		"assignee": assignee.ID,
	}, meta)
	return nil
}

// AddNote appends a timestamped, attributed note. Prior notes are never
// overwritten.
func (s *Service) AddNote(ctx context.Context, id, text string, author Actor, meta audit.RequestMeta) error {
	if text == "" || len(text) > MaxNoteLength {
		return &ValidationError{Errors: []models.FieldError{
			{Field: "note", Message: fmt.Sprintf("must be between 1 and %d characters", MaxNoteLength)},
		}}
	}

	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	who := author.ID
	if who == "" {
		who = "system"
	}
	req.AdminNotes += fmt.Sprintf("[%s %s] %s\n", s.clock().Format(time.RFC3339), who, text)
	if err := s.repo.Update(ctx, req); err != nil {
		return err
	}

	s.audit.Record(ctx, id, audit.ActionNoteAdded, author.IDPtr(), text, nil, meta)
	return nil
}

// BeginErasure validates that a request is eligible for erasure and moves it
// to in_progress. Only erasure-type requests in verified or in_progress state
// qualify.
func (s *Service) BeginErasure(ctx context.Context, id string, actor Actor, meta audit.RequestMeta) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Type != TypeErasure {
		return nil, ErrNotErasable
	}
	if req.Status != StatusVerified && req.Status != StatusInProgress {
		return nil, ErrNotErasable
	}

	if req.Status == StatusVerified {
		if err := s.Transition(ctx, id, StatusInProgress, actor, meta); err != nil {
			return nil, err
		}
		req, err = s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	s.events.ErasureExecute(ctx, req)
	return req, nil
}

// EnsureExportable returns the request if its status allows export
// generation (verified, in_progress, or completed).
func (s *Service) EnsureExportable(ctx context.Context, id string) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case StatusVerified, StatusInProgress, StatusCompleted:
		return req, nil
	default:
		return nil, ErrNotExportable
	}
}

// CompleteWithNote transitions a request to completed and appends a summary
// note in one pass. Used by the erasure orchestrator after a live run.
func (s *Service) CompleteWithNote(ctx context.Context, id, note string, actor Actor, meta audit.RequestMeta) error {
	if err := s.Transition(ctx, id, StatusCompleted, actor, meta); err != nil {
		return err
	}
	return s.AddNote(ctx, id, note, actor, meta)
}

// EraseEvidence scrubs the PII-bearing fields of a request and removes its
// audit trail. Triggered externally when the logs themselves fall under an
// erasure obligation.
func (s *Service) EraseEvidence(ctx context.Context, id string) (int, error) {
	if err := s.repo.ScrubPII(ctx, id); err != nil {
		return 0, err
	}
	return s.audit.EraseRequestLogs(ctx, id)
}

// Get retrieves a request by ID.
func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	return s.repo.Get(ctx, id)
}

// List retrieves requests matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters, limit, offset int) ([]*Request, error) {
	return s.repo.List(ctx, filters, limit, offset)
}

// Stats counts requests grouped by the given column.
func (s *Service) Stats(ctx context.Context, column string) (map[string]int, error) {
	return s.repo.StatsBy(ctx, column)
}

// validateSubmitInput validates the submission input.
func (s *Service) validateSubmitInput(input *SubmitInput) []models.FieldError {
	var errs []models.FieldError

	if !input.Type.Valid() {
		errs = append(errs, models.FieldError{Field: "type", Message: "must be one of the seven data subject rights"})
	}

	if input.Email == "" {
		errs = append(errs, models.FieldError{Field: "email", Message: "is required"})
	} else if !emailRegex.MatchString(input.Email) {
		errs = append(errs, models.FieldError{Field: "email", Message: "must be a valid email address"})
	}

	if !input.Regulation.Valid() {
		errs = append(errs, models.FieldError{Field: "regulation", Message: "must be a supported regulation"})
	}

	if len(input.Details) > MaxDetailsLength {
		errs = append(errs, models.FieldError{Field: "details", Message: fmt.Sprintf("must be at most %d characters", MaxDetailsLength)})
	}

	return errs
}

// newSecret returns an opaque single-purpose secret.
func newSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
