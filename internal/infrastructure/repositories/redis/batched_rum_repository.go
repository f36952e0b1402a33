package redis

import (
	"context"
	"time"

	"finsite/internal/core/domain"
	"finsite/pkg/batch"

	"go.uber.org/zap"
)

// BatchedRUMRepository queues record writes and pipelines them to Redis in
// groups. Reads go straight to the underlying repository, so a record is
// visible to summaries once its batch has flushed.
type BatchedRUMRepository struct {
	*RedisRUMRepository
	batcher *batch.Batcher[*domain.RUMRecord]
}

func NewBatchedRUMRepository(base *RedisRUMRepository, batchSize int, interval time.Duration, logger *zap.Logger) *BatchedRUMRepository {
	processor := batch.ProcessorFunc[*domain.RUMRecord](base.SaveRecords)
	onError := func(err error, items int) {
		logger.Error("failed to flush RUM records to Redis",
			zap.Error(err),
			zap.Int("records", items),
		)
	}
	return &BatchedRUMRepository{
		RedisRUMRepository: base,
		batcher:            batch.New(batchSize, interval, processor, onError),
	}
}

// SaveRecords queues the records for the next pipelined write
func (r *BatchedRUMRepository) SaveRecords(ctx context.Context, records []*domain.RUMRecord) error {
	for _, rec := range records {
		r.batcher.Add(rec)
	}
	return nil
}

// Flush writes everything queued so far
func (r *BatchedRUMRepository) Flush(ctx context.Context) error {
	return r.batcher.Flush(ctx)
}

// Stop ends background flushing after a final write
func (r *BatchedRUMRepository) Stop(ctx context.Context) error {
	return r.batcher.Stop(ctx)
}
