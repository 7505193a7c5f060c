package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"weylus/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

type pingStore struct {
	err error
}

func (p pingStore) Load(ctx context.Context) (domain.Settings, error) {
	return domain.DefaultSettings(), nil
}

func (p pingStore) Save(ctx context.Context, s domain.Settings) error {
	return nil
}

func (p pingStore) Watch(ctx context.Context) (<-chan domain.Settings, error) {
	return nil, errors.New("not supported")
}

func (p pingStore) Clear(ctx context.Context) error {
	return nil
}

func (p pingStore) Ping(ctx context.Context) error {
	return p.err
}

func TestHealthChecker_AllHealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddSettingsStoreCheck(pingStore{}, time.Second)
	h.AddSessionCheck(domain.Disconnected)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["settings_store"])
	assert.Equal(t, "healthy", status.Checks["session"])
	assert.True(t, h.IsReady(context.Background()))
}

func TestHealthChecker_SessionErrorIsDegraded(t *testing.T) {
	h := NewHealthChecker()
	h.AddSettingsStoreCheck(pingStore{}, time.Second)
	h.AddSessionCheck(func() domain.ConnectionState {
		return domain.Failed("max reconnect attempts exceeded", domain.ErrExhaustedRetries)
	})

	status := h.CheckAll(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Checks["session"], "max reconnect attempts exceeded")
	assert.True(t, h.IsReady(context.Background()))
}

func TestHealthChecker_StoreDownIsUnhealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddSettingsStoreCheck(pingStore{err: errors.New("connection refused")}, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "connection refused", status.Checks["settings_store"])
	assert.False(t, h.IsReady(context.Background()))
}
