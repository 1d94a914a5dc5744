package export

import (
	"context"
	"sync"
	"time"
)

// InMemoryDeliveryRepository is an in-memory DeliveryRepository for tests
// and single-process deployments.
type InMemoryDeliveryRepository struct {
	mu         sync.RWMutex
	deliveries map[string]*Delivery
}

var _ DeliveryRepository = (*InMemoryDeliveryRepository)(nil)

// NewInMemoryDeliveryRepository creates an empty repository.
func NewInMemoryDeliveryRepository() *InMemoryDeliveryRepository {
	return &InMemoryDeliveryRepository{deliveries: make(map[string]*Delivery)}
}

func (r *InMemoryDeliveryRepository) Put(_ context.Context, d *Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *d
	r.deliveries[d.RequestID] = &copied
	return nil
}

func (r *InMemoryDeliveryRepository) Get(_ context.Context, requestID string) (*Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deliveries[requestID]
	if !ok {
		return nil, ErrDeliveryNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *InMemoryDeliveryRepository) Delete(_ context.Context, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deliveries[requestID]; !ok {
		return ErrDeliveryNotFound
	}
	delete(r.deliveries, requestID)
	return nil
}

func (r *InMemoryDeliveryRepository) ListExpired(_ context.Context, now time.Time) ([]*Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Delivery
	for _, d := range r.deliveries {
		if now.After(d.ExpiresAt) {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}
