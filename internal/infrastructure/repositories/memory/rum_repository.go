package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"finsite/internal/core/domain"
)

// DefaultMaxItems bounds each in-memory collection
const DefaultMaxItems = 50000

// MemoryRUMRepository keeps records ordered by receive time. When the bound
// is reached the oldest records are evicted first.
type MemoryRUMRepository struct {
	records  []*domain.RUMRecord
	maxItems int
	mu       sync.RWMutex
}

func NewMemoryRUMRepository(maxItems int) *MemoryRUMRepository {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &MemoryRUMRepository{maxItems: maxItems}
}

func (r *MemoryRUMRepository) SaveRecords(ctx context.Context, records []*domain.RUMRecord) error {
	if len(records) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		r.insert(rec)
	}
	if over := len(r.records) - r.maxItems; over > 0 {
		r.records = append(r.records[:0:0], r.records[over:]...)
	}
	return nil
}

// insert keeps the slice sorted; batches almost always arrive in order so
// the common case is a plain append.
func (r *MemoryRUMRepository) insert(rec *domain.RUMRecord) {
	n := len(r.records)
	if n == 0 || !rec.ReceivedAt.Before(r.records[n-1].ReceivedAt) {
		r.records = append(r.records, rec)
		return
	}
	i := sort.Search(n, func(i int) bool {
		return r.records[i].ReceivedAt.After(rec.ReceivedAt)
	})
	r.records = append(r.records, nil)
	copy(r.records[i+1:], r.records[i:])
	r.records[i] = rec
}

func (r *MemoryRUMRepository) ListSince(ctx context.Context, since time.Time) ([]*domain.RUMRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := sort.Search(len(r.records), func(i int) bool {
		return !r.records[i].ReceivedAt.Before(since)
	})
	out := make([]*domain.RUMRecord, len(r.records)-i)
	copy(out, r.records[i:])
	return out, nil
}

func (r *MemoryRUMRepository) Prune(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.Search(len(r.records), func(i int) bool {
		return !r.records[i].ReceivedAt.Before(before)
	})
	if i > 0 {
		r.records = append(r.records[:0:0], r.records[i:]...)
	}
	return i, nil
}

// Len reports the number of stored records
func (r *MemoryRUMRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *MemoryRUMRepository) Ping(ctx context.Context) error {
	return nil
}
