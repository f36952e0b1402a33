package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix            = "finsite:"
	schemaVersionKey     = keyPrefix + "schema:version"
	currentSchemaVersion = 1
)

// Migration is one versioned schema step
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
}

// Migrate runs every migration newer than the stored schema version
func Migrate(ctx context.Context, client *redis.Client, logger *zap.Logger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		logger.Debug("schema is up to date",
			zap.Int("current_version", currentVersion),
			zap.Int("target_version", currentSchemaVersion),
		)
		return nil
	}

	for _, m := range pendingMigrations(currentVersion) {
		logger.Info("running migration", zap.Int("version", m.Version))

		if err := m.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if err := setSchemaVersion(ctx, client, m.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	logger.Info("all migrations completed", zap.Int("final_version", currentSchemaVersion))
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func pendingMigrations(current int) []Migration {
	var out []Migration
	for _, m := range migrations() {
		if m.Version > current {
			out = append(out, m)
		}
	}
	return out
}

func migrations() []Migration {
	return []Migration{
		{
			// Leads are listed through a created-at index; rebuild it from
			// any lead keys already present.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client) error {
				iter := client.Scan(ctx, 0, leadKey("*"), 100).Iterator()
				for iter.Next(ctx) {
					raw, err := client.Get(ctx, iter.Val()).Bytes()
					if errors.Is(err, redis.Nil) {
						continue
					}
					if err != nil {
						return err
					}
					lead, err := decodeLead(raw)
					if err != nil {
						continue
					}
					err = client.ZAdd(ctx, leadIndexKey, redis.Z{
						Score:  float64(lead.CreatedAt.UnixMilli()),
						Member: lead.ID,
					}).Err()
					if err != nil {
						return err
					}
				}
				return iter.Err()
			},
		},
	}
}
