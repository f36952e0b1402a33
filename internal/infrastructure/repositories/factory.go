package repositories

import (
	"context"

	"finsite/internal/core/ports"
	"finsite/internal/infrastructure/repositories/memory"
	redisrepo "finsite/internal/infrastructure/repositories/redis"
	"finsite/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	cfg         *config.Config
	useRedis    bool
	redisClient *redis.Client
	batched     *redisrepo.BatchedRUMRepository
	logger      *zap.Logger
}

// NewRepositoryFactory connects to Redis when enabled and falls back to
// in-memory storage when it cannot.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger) *RepositoryFactory {
	factory := &RepositoryFactory{
		cfg:      cfg,
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(ctx,
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warn("failed to connect to Redis, falling back to memory repositories",
				zap.Error(err),
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory
}

// Backend names the storage in use
func (f *RepositoryFactory) Backend() string {
	if f.useRedis {
		return BackendRedis
	}
	return BackendMemory
}

// RedisClient returns the shared client, or nil on the memory backend
func (f *RepositoryFactory) RedisClient() redis.UniversalClient {
	if !f.useRedis || f.redisClient == nil {
		return nil
	}
	return f.redisClient
}

// Repositories is the set handed to the services
type Repositories struct {
	Records ports.RUMRepository
	Alerts  ports.AlertRepository
	Leads   ports.LeadRepository
	Health  ports.Pinger
}

// Create builds every repository on the selected backend
func (f *RepositoryFactory) Create() Repositories {
	if f.useRedis && f.redisClient != nil {
		base := redisrepo.NewRedisRUMRepository(f.redisClient, f.cfg.RUM.MemoryMaxItems, f.logger)
		f.batched = redisrepo.NewBatchedRUMRepository(base,
			f.cfg.RUM.WriteBatchSize,
			f.cfg.RUM.WriteFlushEvery,
			f.logger,
		)
		return Repositories{
			Records: f.batched,
			Alerts:  base,
			Leads:   redisrepo.NewRedisLeadRepository(f.redisClient),
			Health:  base,
		}
	}

	records := memory.NewMemoryRUMRepository(f.cfg.RUM.MemoryMaxItems)
	return Repositories{
		Records: records,
		Alerts:  memory.NewMemoryAlertRepository(f.cfg.RUM.MemoryMaxItems),
		Leads:   memory.NewMemoryLeadRepository(),
		Health:  records,
	}
}

// Close flushes pending writes and closes the Redis connection if used
func (f *RepositoryFactory) Close(ctx context.Context) error {
	if f.batched != nil {
		if err := f.batched.Stop(ctx); err != nil {
			f.logger.Warn("failed to flush pending RUM records", zap.Error(err))
		}
	}
	return redisrepo.CloseRedisClient(f.redisClient)
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
