package audit

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Append stores a new entry and returns its ID.
func (r *InMemoryRepository) Append(_ context.Context, entry *Entry) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *entry
	r.entries = append(r.entries, &cpy)
	return cpy.ID, nil
}

// Query retrieves entries matching the filters, oldest first.
func (r *InMemoryRepository) Query(_ context.Context, filters Filters) ([]*Entry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Entry
	for _, e := range r.entries {
		if filters.RequestID != "" && e.RequestID != filters.RequestID {
			continue
		}
		if filters.Action != "" && e.Action != filters.Action {
			continue
		}
		if filters.ActorID != "" && (e.ActorID == nil || *e.ActorID != filters.ActorID) {
			continue
		}
		cpy := *e
		matched = append(matched, &cpy)
	}

	total := len(matched)
	offset := filters.Offset
	if offset > total {
		offset = total
	}
	matched = matched[offset:]
	if filters.Limit > 0 && len(matched) > filters.Limit {
		matched = matched[:filters.Limit]
	}
	return matched, total, nil
}

// DeleteByRequest removes every entry for a request and returns the count.
func (r *InMemoryRepository) DeleteByRequest(_ context.Context, requestID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*Entry
	deleted := 0
	for _, e := range r.entries {
		if e.RequestID == requestID {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
