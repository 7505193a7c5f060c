package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const currentSchemaVersion = 2

// Migration represents a schema migration of the settings hash.
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client, key string) error
}

func schemaVersionKey(key string) string {
	return key + ":schema:version"
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, client *redis.Client, key string, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client, key)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Debugw("settings schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running settings migration", "version", migration.Version)
		}
		if err := migration.Up(ctx, client, key); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, key, migration.Version); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", migration.Version, err)
		}
	}

	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client, key string) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey(key)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, key string, version int) error {
	return client.Set(ctx, schemaVersionKey(key), version, 0).Err()
}

// getMigrations returns all migrations in order
func getMigrations() []Migration {
	return []Migration{
		{
			// Version 1 stored the whole snapshot as one JSON string.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client, key string) error {
				return nil
			},
		},
		{
			// Version 2 splits the snapshot into hash fields.
			Version: 2,
			Up: func(ctx context.Context, client *redis.Client, key string) error {
				typ, err := client.Type(ctx, key).Result()
				if err != nil {
					return err
				}
				if typ != "string" {
					return nil
				}

				raw, err := client.Get(ctx, key).Result()
				if err != nil {
					return err
				}
				settings, err := decodeLegacySnapshot(raw)
				if err != nil {
					return err
				}
				fields, err := encodeFields(settings)
				if err != nil {
					return err
				}

				_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					pipe.HSet(ctx, key, fields)
					return nil
				})
				return err
			},
		},
	}
}
