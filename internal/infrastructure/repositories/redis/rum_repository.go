package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finsite/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRUMRepository stores records and alerts in sorted sets scored by
// time, so range reads and retention pruning are single commands.
type RedisRUMRepository struct {
	client   *redis.Client
	maxItems int64
	logger   *zap.Logger
}

func NewRedisRUMRepository(client *redis.Client, maxItems int, logger *zap.Logger) *RedisRUMRepository {
	return &RedisRUMRepository{
		client:   client,
		maxItems: int64(maxItems),
		logger:   logger,
	}
}

func (r *RedisRUMRepository) SaveRecords(ctx context.Context, records []*domain.RUMRecord) error {
	if len(records) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		members = append(members, redis.Z{Score: score(rec.ReceivedAt), Member: data})
	}

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, recordsKey, members...)
	if r.maxItems > 0 {
		pipe.ZRemRangeByRank(ctx, recordsKey, 0, -(r.maxItems + 1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save records in Redis: %w", err)
	}
	return nil
}

func (r *RedisRUMRepository) ListSince(ctx context.Context, since time.Time) ([]*domain.RUMRecord, error) {
	raw, err := r.client.ZRangeByScore(ctx, recordsKey, &redis.ZRangeBy{
		Min: minScore(since),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read records from Redis: %w", err)
	}

	out := make([]*domain.RUMRecord, 0, len(raw))
	for _, item := range raw {
		rec, err := decodeRecord(item)
		if err != nil {
			r.logger.Warn("skipping unreadable record", zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisRUMRepository) Prune(ctx context.Context, before time.Time) (int, error) {
	n, err := r.client.ZRemRangeByScore(ctx, recordsKey, "-inf", maxScoreBefore(before)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	return int(n), nil
}

func (r *RedisRUMRepository) SaveAlerts(ctx context.Context, alerts []*domain.PerformanceAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(alerts))
	for _, a := range alerts {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		members = append(members, redis.Z{Score: score(a.CreatedAt), Member: data})
	}

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, alertsKey, members...)
	if r.maxItems > 0 {
		pipe.ZRemRangeByRank(ctx, alertsKey, 0, -(r.maxItems + 1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save alerts in Redis: %w", err)
	}
	return nil
}

func (r *RedisRUMRepository) ListAlertsSince(ctx context.Context, since time.Time) ([]*domain.PerformanceAlert, error) {
	raw, err := r.client.ZRangeByScore(ctx, alertsKey, &redis.ZRangeBy{
		Min: minScore(since),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts from Redis: %w", err)
	}

	out := make([]*domain.PerformanceAlert, 0, len(raw))
	for _, item := range raw {
		a, err := decodeAlert(item)
		if err != nil {
			r.logger.Warn("skipping unreadable alert", zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *RedisRUMRepository) PruneAlerts(ctx context.Context, before time.Time) (int, error) {
	n, err := r.client.ZRemRangeByScore(ctx, alertsKey, "-inf", maxScoreBefore(before)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	return int(n), nil
}

func (r *RedisRUMRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
