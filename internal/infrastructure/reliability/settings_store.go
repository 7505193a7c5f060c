package reliability

import (
	"context"
	"errors"
	"fmt"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"
	"weylus/pkg/circuitbreaker"
	"weylus/pkg/retry"

	"go.uber.org/zap"
)

// SettingsStore wraps a remote ports.SettingsStore with retries and a circuit
// breaker. While the breaker is open calls fail fast with an error wrapping
// domain.ErrSettingsStore.
type SettingsStore struct {
	store   ports.SettingsStore
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

var _ ports.SettingsStore = (*SettingsStore)(nil)

func NewSettingsStore(
	store ports.SettingsStore,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *SettingsStore {
	if retryConfig.Retryable == nil {
		retryConfig.Retryable = isTransient
	}
	s := &SettingsStore{
		store:   store,
		retry:   retryConfig,
		breaker: circuitbreaker.New(cbConfig),
		logger:  logger,
	}
	s.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("settings store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})
	return s
}

// isTransient retries backend failures but not cancellation.
func isTransient(err error) bool {
	return errors.Is(err, domain.ErrSettingsStore) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (s *SettingsStore) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := s.breaker.Execute(func() error {
		return retry.Do(ctx, s.retry, fn)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %s rejected: %v", domain.ErrSettingsStore, op, err)
	}
	return err
}

func (s *SettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	var settings domain.Settings
	err := s.call(ctx, "load", func(ctx context.Context) error {
		var err error
		settings, err = s.store.Load(ctx)
		return err
	})
	return settings, err
}

func (s *SettingsStore) Save(ctx context.Context, settings domain.Settings) error {
	return s.call(ctx, "save", func(ctx context.Context) error {
		return s.store.Save(ctx, settings)
	})
}

func (s *SettingsStore) Clear(ctx context.Context) error {
	return s.call(ctx, "clear", s.store.Clear)
}

// Ping bypasses retries so health checks report the backend as it is, but a
// successful ping still counts toward closing the breaker.
func (s *SettingsStore) Ping(ctx context.Context) error {
	err := s.breaker.Execute(func() error { return s.store.Ping(ctx) })
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %v", domain.ErrSettingsStore, err)
	}
	return err
}

// Watch subscribes once; subscription errors are not retried.
func (s *SettingsStore) Watch(ctx context.Context) (<-chan domain.Settings, error) {
	return s.store.Watch(ctx)
}

// BreakerStats reports the breaker for health endpoints.
func (s *SettingsStore) BreakerStats() circuitbreaker.Stats {
	return s.breaker.Stats()
}
