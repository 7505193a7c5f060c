package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ClientOptions is the subset of connection tuning exposed in config. Timeout
// bounds dialing and each command round trip.
type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

const defaultTimeout = 3 * time.Second

func (o ClientOptions) redisOptions() *redis.Options {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &redis.Options{
		Addr:         o.Address,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
}

// OpenSettingsClient connects, verifies the server answers and migrates the
// settings hash at key. The client is closed again on any failure.
func OpenSettingsClient(ctx context.Context, opts ClientOptions, key string, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(opts.redisOptions())

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Address, err)
	}
	if err := Migrate(ctx, client, key, logger); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to migrate settings at %s: %w", key, err)
	}

	logger.Infow("connected to Redis", "address", opts.Address, "db", opts.DB, "key", key)
	return client, nil
}
