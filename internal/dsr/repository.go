package dsr

import (
	"context"
	"time"
)

// ListFilters narrows List results. Nil fields are ignored.
type ListFilters struct {
	Status      *Status
	Type        *RequestType
	Regulation  *Regulation
	OverdueOnly bool
}

// Repository defines the interface for request persistence.
type Repository interface {
	// Create persists a new request.
	Create(ctx context.Context, req *Request) error

	// Get retrieves a request by ID.
	// Returns ErrRequestNotFound if it does not exist.
	Get(ctx context.Context, id string) (*Request, error)

	// GetByVerificationToken retrieves a request by its verification token.
	// The lookup is scoped to pending_verification so a stale token can never
	// resurrect a terminal request.
	GetByVerificationToken(ctx context.Context, token string) (*Request, error)

	// Update persists all mutable fields of an existing request.
	Update(ctx context.Context, req *Request) error

	// UpdateStatusIf atomically moves a request from the expected status to
	// next and returns the updated record. A non-nil completedAt is stamped
	// in the same write so a completed request can never lack its timestamp.
	// Returns ErrRequestNotFound when no row matches (unknown ID or
	// concurrent status change).
	UpdateStatusIf(ctx context.Context, id string, expected, next Status, completedAt *time.Time) (*Request, error)

	// List retrieves requests matching the filters, newest first.
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]*Request, error)

	// StatsBy counts requests grouped by one of: status, type, regulation.
	StatsBy(ctx context.Context, column string) (map[string]int, error)

	// ScrubPII blanks the PII-bearing fields of a request while retaining the
	// record itself as compliance evidence.
	ScrubPII(ctx context.Context, id string) error
}
