package userdata

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository. It backs
// tests and local development where no database is available.
type InMemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	comments map[string]*Comment
	consents map[string]*ConsentRecord
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		accounts: make(map[string]*Account),
		comments: make(map[string]*Comment),
		consents: make(map[string]*ConsentRecord),
	}
}

// SeedAccount stores an account, overwriting any existing entry with the
// same id.
func (r *InMemoryRepository) SeedAccount(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := a
	r.accounts[a.ID] = &copied
}

// SeedComment stores a comment.
func (r *InMemoryRepository) SeedComment(c Comment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := c
	r.comments[c.ID] = &copied
}

// SeedConsent stores a consent record.
func (r *InMemoryRepository) SeedConsent(c ConsentRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := c
	r.consents[c.ID] = &copied
}

func (r *InMemoryRepository) FindAccount(_ context.Context, userID, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if userID != "" {
		if a, ok := r.accounts[userID]; ok {
			copied := *a
			return &copied, nil
		}
		return nil, ErrAccountNotFound
	}

	needle := strings.ToLower(strings.TrimSpace(email))
	for _, a := range r.accounts {
		if strings.ToLower(a.Email) == needle {
			copied := *a
			return &copied, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *InMemoryRepository) AnonymizeAccount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.Email = "anonymized+" + a.ID + "@invalid"
	a.DisplayName = "Deleted User"
	a.Locale = ""
	a.Anonymized = true
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) ListCommentsByAuthor(_ context.Context, authorID string) ([]Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Comment
	for _, c := range r.comments {
		if c.AuthorID == authorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) RedactCommentsByAuthor(_ context.Context, authorID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, c := range r.comments {
		if c.AuthorID == authorID && !c.Redacted {
			c.Body = ""
			c.Redacted = true
			count++
		}
	}
	return count, nil
}

func (r *InMemoryRepository) ListConsentsByUser(_ context.Context, userID string) ([]ConsentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ConsentRecord
	for _, c := range r.consents {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) DeleteConsentsByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, c := range r.consents {
		if c.UserID == userID {
			delete(r.consents, id)
			count++
		}
	}
	return count, nil
}
