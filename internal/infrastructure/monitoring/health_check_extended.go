package monitoring

import (
	"context"
	"fmt"
	"time"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"
)

// AddSettingsStoreCheck adds a check that the settings backend is reachable.
func (h *HealthChecker) AddSettingsStoreCheck(store ports.SettingsStore, timeout time.Duration) {
	h.AddCheck("settings_store", func(ctx context.Context) (bool, error) {
		if err := store.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout, true)
}

// AddSessionCheck reports the remote session as degraded while it is in the
// Error state. A disconnected client is still healthy.
func (h *HealthChecker) AddSessionCheck(state func() domain.ConnectionState) {
	h.AddCheck("session", func(ctx context.Context) (bool, error) {
		s := state()
		if s.Kind == domain.StateError {
			return false, fmt.Errorf("session failed: %s", s.Message)
		}
		return true, nil
	}, time.Second, false)
}

// IsReady checks if the client can serve its control API.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status != "unhealthy"
}
