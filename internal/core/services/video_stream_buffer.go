package services

import (
	"sync"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"

	"go.uber.org/zap"
)

// QualityAdaptationConfig holds the tunable thresholds of automatic quality
// adaptation.
type QualityAdaptationConfig struct {
	Enabled            bool
	DropRateThreshold  float64 // percent; above it a window is bad
	RecoverDropRate    float64 // percent; below it a window may be good
	LatencyThresholdMs int64
	ComfortFactor      float64 // good windows need latency <= threshold*factor
	GoodWindows        int     // consecutive good windows before stepping up
}

func DefaultQualityAdaptationConfig() QualityAdaptationConfig {
	return QualityAdaptationConfig{
		Enabled:            true,
		DropRateThreshold:  20,
		RecoverDropRate:    2,
		LatencyThresholdMs: 150,
		ComfortFactor:      0.5,
		GoodWindows:        3,
	}
}

// VideoStreamBuffer decouples network frame arrival from render cadence. When
// full, the oldest frame is dropped so the newest screen state always wins.
type VideoStreamBuffer struct {
	queue   *boundedQueue[domain.Frame]
	monitor *PerformanceMonitor
	logger  *zap.SugaredLogger

	mu          sync.Mutex
	adaptation  QualityAdaptationConfig
	negotiator  ports.QualityNegotiator
	userConfig  domain.VideoConfig
	current     domain.VideoConfig
	goodWindows int
}

func NewVideoStreamBuffer(
	capacity int,
	monitor *PerformanceMonitor,
	adaptation QualityAdaptationConfig,
	logger *zap.SugaredLogger,
) *VideoStreamBuffer {
	if capacity <= 0 || capacity > domain.MaxFrameBufferSize {
		capacity = domain.MaxFrameBufferSize
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg := domain.DefaultVideoConfig()
	return &VideoStreamBuffer{
		queue:      newBoundedQueue[domain.Frame](capacity),
		monitor:    monitor,
		logger:     logger,
		adaptation: adaptation,
		userConfig: cfg,
		current:    cfg,
	}
}

// SetNegotiator registers who applies adaptation decisions to the session.
func (b *VideoStreamBuffer) SetNegotiator(n ports.QualityNegotiator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.negotiator = n
}

// Push enqueues a frame. It always accepts; on overflow the oldest frame is
// discarded and counted as dropped.
func (b *VideoStreamBuffer) Push(frame domain.Frame) bool {
	evicted, dropped := b.queue.Push(frame)
	if dropped {
		if b.monitor != nil {
			b.monitor.RecordDrop()
		}
		b.logger.Debugw("frame buffer full, dropped oldest frame",
			"dropped_sequence", evicted.Sequence,
			"sequence", frame.Sequence,
		)
	}
	return true
}

// Pop returns the oldest buffered frame, or false when empty. It never blocks.
func (b *VideoStreamBuffer) Pop() (domain.Frame, bool) {
	return b.queue.Pop()
}

func (b *VideoStreamBuffer) Len() int {
	return b.queue.Len()
}

func (b *VideoStreamBuffer) Cap() int {
	return b.queue.Cap()
}

// Dropped is the number of frames evicted on overflow since creation.
func (b *VideoStreamBuffer) Dropped() uint64 {
	return b.queue.Dropped()
}

// Ready is signalled when a frame has been pushed.
func (b *VideoStreamBuffer) Ready() <-chan struct{} {
	return b.queue.Ready()
}

// Clear discards buffered frames, e.g. when the session ends.
func (b *VideoStreamBuffer) Clear() int {
	return b.queue.Clear()
}

// SetUserConfig installs the user's video preferences. The quality tier in cfg
// is the ceiling for automatic upgrades and adaptation restarts from it.
func (b *VideoStreamBuffer) SetUserConfig(cfg domain.VideoConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userConfig = cfg
	b.current = cfg
	b.goodWindows = 0
}

// CurrentConfig is the video configuration currently requested from the host.
func (b *VideoStreamBuffer) CurrentConfig() domain.VideoConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *VideoStreamBuffer) SetAdaptation(cfg QualityAdaptationConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adaptation = cfg
	b.goodWindows = 0
}

// AdaptQuality evaluates one metrics window. A bad window steps quality down one
// tier and/or enables low latency mode; a run of good windows steps it back up
// one tier, never above the user's setting. It returns the new configuration
// and whether it changed.
func (b *VideoStreamBuffer) AdaptQuality(m domain.PerformanceMetrics) (domain.VideoConfig, bool) {
	b.mu.Lock()
	a := b.adaptation
	if !a.Enabled || m.TotalFrames == 0 {
		cfg := b.current
		b.mu.Unlock()
		return cfg, false
	}

	prev := b.current
	next := prev
	dropRate := m.DropRate()
	latencyBad := a.LatencyThresholdMs > 0 && m.LatencyMs > a.LatencyThresholdMs

	switch {
	case dropRate > a.DropRateThreshold || latencyBad:
		b.goodWindows = 0
		next.Quality = prev.Quality.Lower()
		if latencyBad || next.Quality == prev.Quality {
			next.LowLatencyMode = true
		}
	case dropRate < a.RecoverDropRate && float64(m.LatencyMs) <= float64(a.LatencyThresholdMs)*a.ComfortFactor:
		b.goodWindows++
		if b.goodWindows >= a.GoodWindows {
			b.goodWindows = 0
			if prev.Quality < b.userConfig.Quality {
				next.Quality = prev.Quality.Higher()
				if next.Quality == b.userConfig.Quality {
					next.LowLatencyMode = b.userConfig.LowLatencyMode
				}
			}
		}
	default:
		b.goodWindows = 0
	}

	if next.Quality > b.userConfig.Quality {
		next.Quality = b.userConfig.Quality
	}
	changed := next != prev
	b.current = next
	negotiator := b.negotiator
	b.mu.Unlock()

	if changed {
		b.logger.Infow("video quality adapted",
			"from", prev.Quality.String(),
			"to", next.Quality.String(),
			"low_latency_mode", next.LowLatencyMode,
			"drop_rate", dropRate,
			"latency_ms", m.LatencyMs,
		)
		if negotiator != nil {
			negotiator.NegotiateVideoConfig(next)
		}
	}
	return next, changed
}
