package dsr

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

// NewInMemoryRepository creates a new in-memory request repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		requests: make(map[string]*Request),
	}
}

// Create persists a new request.
func (r *InMemoryRepository) Create(_ context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[req.ID]; ok {
		return errors.New("duplicate request id")
	}
	cpy := *req
	r.requests[req.ID] = &cpy
	return nil
}

// Get retrieves a request by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cpy := *req
	return &cpy, nil
}

// GetByVerificationToken retrieves a pending request by verification token.
func (r *InMemoryRepository) GetByVerificationToken(_ context.Context, token string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, req := range r.requests {
		if req.VerificationToken == token && req.Status == StatusPendingVerification {
			cpy := *req
			return &cpy, nil
		}
	}
	return nil, ErrRequestNotFound
}

// Update persists all mutable fields of an existing request.
func (r *InMemoryRepository) Update(_ context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[req.ID]; !ok {
		return ErrRequestNotFound
	}
	cpy := *req
	r.requests[req.ID] = &cpy
	return nil
}

// UpdateStatusIf atomically moves a request from expected to next, stamping
// completed_at in the same step when provided.
func (r *InMemoryRepository) UpdateStatusIf(_ context.Context, id string, expected, next Status, completedAt *time.Time) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok || req.Status != expected {
		return nil, ErrRequestNotFound
	}
	req.Status = next
	if completedAt != nil {
		stamp := *completedAt
		req.CompletedAt = &stamp
	}
	cpy := *req
	return &cpy, nil
}

// List retrieves requests matching the filters, newest first.
func (r *InMemoryRepository) List(_ context.Context, filters ListFilters, limit, offset int) ([]*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var out []*Request
	for _, req := range r.requests {
		if filters.Status != nil && req.Status != *filters.Status {
			continue
		}
		if filters.Type != nil && req.Type != *filters.Type {
			continue
		}
		if filters.Regulation != nil && req.Regulation != *filters.Regulation {
			continue
		}
		if filters.OverdueOnly && !req.Overdue(now) {
			continue
		}
		cpy := *req
		out = append(out, &cpy)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})

	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// StatsBy counts requests grouped by status, type, or regulation.
func (r *InMemoryRepository) StatsBy(_ context.Context, column string) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int)
	for _, req := range r.requests {
		switch column {
		case "status":
			stats[string(req.Status)]++
		case "type":
			stats[string(req.Type)]++
		case "regulation":
			stats[string(req.Regulation)]++
		default:
			return nil, errors.New("unsupported stats column: " + column)
		}
	}
	return stats, nil
}

// ScrubPII blanks the PII-bearing fields while retaining the record.
func (r *InMemoryRepository) ScrubPII(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	req.RequesterEmail = ""
	req.UserID = nil
	req.Details = ""
	req.AdminNotes = ""
	req.IPHash = ""
	req.UserAgentHash = ""
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
