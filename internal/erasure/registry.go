// Package erasure runs pluggable data-erasure handlers against one request,
// in dry-run or live mode, isolating per-handler failures.
package erasure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
)

// AffectedItem describes one record a handler erased or would erase.
type AffectedItem struct {
	Store string `json:"store"`
	Kind  string `json:"kind"`
	ID    string `json:"id"`
}

// HandlerFunc is the callback contract for an erasure handler. When dryRun is
// true the handler must not mutate state and returns what would be affected.
// An empty result means nothing matched (skipped, not failed).
type HandlerFunc func(ctx context.Context, req *dsr.Request, dryRun bool) ([]AffectedItem, error)

// Handler is one registered unit of erasure work. Handlers execute in
// ascending priority order; a higher priority number runs later. The default
// account anonymizer registers at priority 100 so dependent handlers see
// intact identifiers.
type Handler struct {
	Key         string
	Label       string
	Description string
	Priority    int
	Fn          HandlerFunc
}

// Registry holds the erasure handlers. It is populated at startup by the
// owning module and by external collaborators.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. The key must be unique and the callback non-nil.
func (r *Registry) Register(h Handler) error {
	if h.Key == "" {
		return errors.New("handler key is required")
	}
	if h.Fn == nil {
		return errors.New("handler callback is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Key]; exists {
		return fmt.Errorf("handler %q already registered", h.Key)
	}
	r.handlers[h.Key] = h
	return nil
}

// Handlers returns all handlers sorted ascending by priority, with key order
// as a stable tiebreak.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
