package memory

import (
	"context"
	"sync"
	"time"

	"finsite/internal/core/domain"
)

type MemoryAlertRepository struct {
	alerts   []*domain.PerformanceAlert
	maxItems int
	mu       sync.RWMutex
}

func NewMemoryAlertRepository(maxItems int) *MemoryAlertRepository {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &MemoryAlertRepository{maxItems: maxItems}
}

func (r *MemoryAlertRepository) SaveAlerts(ctx context.Context, alerts []*domain.PerformanceAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts = append(r.alerts, alerts...)
	if over := len(r.alerts) - r.maxItems; over > 0 {
		r.alerts = append(r.alerts[:0:0], r.alerts[over:]...)
	}
	return nil
}

func (r *MemoryAlertRepository) ListAlertsSince(ctx context.Context, since time.Time) ([]*domain.PerformanceAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.PerformanceAlert
	for _, a := range r.alerts {
		if !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryAlertRepository) PruneAlerts(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.alerts[:0:0]
	for _, a := range r.alerts {
		if !a.CreatedAt.Before(before) {
			kept = append(kept, a)
		}
	}
	removed := len(r.alerts) - len(kept)
	r.alerts = kept
	return removed, nil
}
