// Package export collects the subject's data through pluggable providers,
// packages it into a downloadable archive, and manages secure single-use
// delivery of that archive.
package export

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
)

// ProviderFunc returns the data bundle one provider contributes to an
// export. A nil or empty bundle means the provider has nothing for this
// subject and its section is omitted from the package.
type ProviderFunc func(ctx context.Context, req *dsr.Request) (map[string]interface{}, error)

// Provider is one registered export data source. Providers are invoked in
// ascending priority order, key order as a stable tiebreak.
type Provider struct {
	Key      string
	Label    string
	Priority int
	Fn       ProviderFunc
}

// Registry holds the export providers. It is populated at startup by the
// owning module and by external collaborators.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. The key must be unique and the callback non-nil.
func (r *Registry) Register(p Provider) error {
	if p.Key == "" {
		return errors.New("provider key is required")
	}
	if p.Fn == nil {
		return errors.New("provider callback is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Key]; exists {
		return fmt.Errorf("provider %q already registered", p.Key)
	}
	r.providers[p.Key] = p
	return nil
}

// Providers returns all providers sorted ascending by priority.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
