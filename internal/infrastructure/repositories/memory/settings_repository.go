package memory

import (
	"context"
	"sync"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"
)

// MemorySettingsRepository keeps settings for the lifetime of the process.
type MemorySettingsRepository struct {
	mu       sync.RWMutex
	settings domain.Settings
	watchers map[int]chan domain.Settings
	nextID   int
}

var _ ports.SettingsStore = (*MemorySettingsRepository)(nil)

// NewMemorySettingsRepository starts from initial; Clear restores the
// application defaults, not initial.
func NewMemorySettingsRepository(initial domain.Settings) *MemorySettingsRepository {
	return &MemorySettingsRepository{
		settings: cloneSettings(initial),
		watchers: make(map[int]chan domain.Settings),
	}
}

func (r *MemorySettingsRepository) Load(ctx context.Context) (domain.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSettings(r.settings), nil
}

func (r *MemorySettingsRepository) Save(ctx context.Context, settings domain.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings = cloneSettings(settings)
	r.notifyLocked()
	return nil
}

func (r *MemorySettingsRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings = domain.DefaultSettings()
	r.notifyLocked()
	return nil
}

func (r *MemorySettingsRepository) Ping(ctx context.Context) error {
	return nil
}

// Watch delivers the latest snapshot after every change. A slow reader only
// sees the most recent one.
func (r *MemorySettingsRepository) Watch(ctx context.Context) (<-chan domain.Settings, error) {
	ch := make(chan domain.Settings, 1)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = ch
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers, id)
		close(ch)
		r.mu.Unlock()
	}()
	return ch, nil
}

func (r *MemorySettingsRepository) notifyLocked() {
	for _, ch := range r.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- cloneSettings(r.settings)
	}
}

func cloneSettings(s domain.Settings) domain.Settings {
	if s.Servers != nil {
		s.Servers = append([]domain.ServerConnection(nil), s.Servers...)
	}
	return s
}
