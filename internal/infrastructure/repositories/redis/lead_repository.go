package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"finsite/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

type RedisLeadRepository struct {
	client *redis.Client
}

func NewRedisLeadRepository(client *redis.Client) *RedisLeadRepository {
	return &RedisLeadRepository{client: client}
}

func (r *RedisLeadRepository) CreateLead(ctx context.Context, lead *domain.Lead) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	ok, err := r.client.SetNX(ctx, leadKey(lead.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set lead in Redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("lead already exists: %s", lead.ID)
	}

	err = r.client.ZAdd(ctx, leadIndexKey, redis.Z{
		Score:  score(lead.CreatedAt),
		Member: lead.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index lead: %w", err)
	}
	return nil
}

func (r *RedisLeadRepository) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	raw, err := r.client.Get(ctx, leadKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead from Redis: %w", err)
	}
	return decodeLead(raw)
}

// ListLeads returns the newest leads first
func (r *RedisLeadRepository) ListLeads(ctx context.Context, limit int) ([]*domain.Lead, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.ZRevRange(ctx, leadIndexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = leadKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}

	out := make([]*domain.Lead, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		lead, err := decodeLead([]byte(s))
		if err != nil {
			continue
		}
		out = append(out, lead)
	}
	return out, nil
}
