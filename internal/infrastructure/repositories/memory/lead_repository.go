package memory

import (
	"context"
	"fmt"
	"sync"

	"finsite/internal/core/domain"
)

type MemoryLeadRepository struct {
	leads map[string]*domain.Lead
	order []string
	mu    sync.RWMutex
}

func NewMemoryLeadRepository() *MemoryLeadRepository {
	return &MemoryLeadRepository{
		leads: make(map[string]*domain.Lead),
	}
}

func (r *MemoryLeadRepository) CreateLead(ctx context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.leads[lead.ID]; exists {
		return fmt.Errorf("lead already exists: %s", lead.ID)
	}

	r.leads[lead.ID] = lead
	r.order = append(r.order, lead.ID)
	return nil
}

func (r *MemoryLeadRepository) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, exists := r.leads[id]
	if !exists {
		return nil, domain.ErrLeadNotFound
	}
	return lead, nil
}

// ListLeads returns the newest leads first
func (r *MemoryLeadRepository) ListLeads(ctx context.Context, limit int) ([]*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.order) {
		limit = len(r.order)
	}
	out := make([]*domain.Lead, 0, limit)
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.leads[r.order[i]])
	}
	return out, nil
}
