package repositories

import (
	"context"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"
	"weylus/internal/infrastructure/reliability"
	"weylus/internal/infrastructure/repositories/memory"
	redisrepo "weylus/internal/infrastructure/repositories/redis"
	"weylus/pkg/circuitbreaker"
	"weylus/pkg/config"
	"weylus/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates the settings store with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	redisKey    string
	initial     domain.Settings
	retry       retry.Config
	breaker     circuitbreaker.Config
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when the redis backend is selected.
// If Redis is unreachable it falls back to in-memory settings.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis: cfg.Settings.Backend == "redis",
		redisKey: cfg.Settings.Redis.Key,
		initial:  cfg.InitialSettings(),
		logger:   logger,
	}

	res := cfg.Settings.Resilience
	factory.retry = retry.DefaultConfig()
	factory.retry.MaxAttempts = res.MaxAttempts
	if res.RetryDelay > 0 {
		factory.retry.InitialDelay = res.RetryDelay
	}
	factory.breaker = circuitbreaker.DefaultConfig()
	factory.breaker.FailureThreshold = res.FailureThreshold
	factory.breaker.Timeout = res.OpenTimeout

	if factory.useRedis {
		r := cfg.Settings.Redis
		ctx, cancel := context.WithTimeout(context.Background(), 2*r.Timeout)
		client, err := redisrepo.OpenSettingsClient(ctx, redisrepo.ClientOptions{
			Address:  r.Address,
			Password: r.Password,
			DB:       r.DB,
			PoolSize: r.PoolSize,
			Timeout:  r.Timeout,
		}, r.Key, logger)
		cancel()
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory settings",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis settings store")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory settings store")
	}

	return factory
}

// CreateSettingsStore creates the settings store (Redis or memory with
// fallback). The Redis store is wrapped with retries and a circuit breaker.
func (f *RepositoryFactory) CreateSettingsStore() ports.SettingsStore {
	if f.useRedis && f.redisClient != nil {
		store := redisrepo.NewRedisSettingsRepository(f.redisClient, f.redisKey, f.logger)
		return reliability.NewSettingsStore(store, f.retry, f.breaker, f.logger)
	}
	return memory.NewMemorySettingsRepository(f.initial)
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
