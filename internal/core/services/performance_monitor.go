package services

import (
	"context"
	"sync"
	"time"

	"weylus/internal/core/domain"
)

// PerformanceMonitor aggregates frame arrival and render events into
// non-overlapping measurement windows.
type PerformanceMonitor struct {
	mu sync.Mutex

	totalFrames    int
	droppedFrames  int
	bytes          int64
	latencySum     time.Duration
	latencySamples int

	latest domain.PerformanceMetrics

	now func() time.Time
}

func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{now: time.Now}
}

// RecordFrame counts one frame that arrived from the network.
func (p *PerformanceMonitor) RecordFrame(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalFrames++
	p.bytes += int64(size)
}

// RecordDrop counts one frame that will never be rendered.
func (p *PerformanceMonitor) RecordDrop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.droppedFrames++
}

// RecordRendered samples the arrival-to-render delay of a frame.
func (p *PerformanceMonitor) RecordRendered(frame domain.Frame) {
	if frame.ArrivalTime.IsZero() {
		return
	}
	delay := p.now().Sub(frame.ArrivalTime)
	if delay < 0 {
		delay = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.latencySum += delay
	p.latencySamples++
}

// Collect closes the current window, returns its metrics and resets the
// counters.
func (p *PerformanceMonitor) Collect(window time.Duration) domain.PerformanceMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	seconds := window.Seconds()
	m := domain.PerformanceMetrics{
		DroppedFrames: p.droppedFrames,
		TotalFrames:   p.totalFrames,
		Timestamp:     p.now(),
	}
	if seconds > 0 {
		m.FPS = int(float64(p.totalFrames) / seconds)
		m.BitrateMbps = float64(p.bytes) * 8 / 1e6 / seconds
	}
	if p.latencySamples > 0 {
		m.LatencyMs = (p.latencySum / time.Duration(p.latencySamples)).Milliseconds()
	}

	p.totalFrames = 0
	p.droppedFrames = 0
	p.bytes = 0
	p.latencySum = 0
	p.latencySamples = 0
	p.latest = m
	return m
}

// Latest returns the most recently completed window.
func (p *PerformanceMonitor) Latest() domain.PerformanceMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Run collects a window every interval and hands it to each sink, until ctx
// is done.
func (p *PerformanceMonitor) Run(ctx context.Context, interval time.Duration, sinks ...func(domain.PerformanceMetrics)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := p.Collect(interval)
			for _, sink := range sinks {
				sink(m)
			}
		}
	}
}
