package services

import (
	"context"
	"testing"
	"time"

	"weylus/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(now *time.Time) *PerformanceMonitor {
	p := NewPerformanceMonitor()
	p.now = func() time.Time { return *now }
	return p
}

func TestPerformanceMonitor_DropRate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := newTestMonitor(&now)

	for i := 0; i < 12; i++ {
		p.RecordFrame(1000)
	}
	for i := 0; i < 3; i++ {
		p.RecordDrop()
	}

	m := p.Collect(time.Second)
	assert.Equal(t, 12, m.TotalFrames)
	assert.Equal(t, 3, m.DroppedFrames)
	assert.InDelta(t, 25.0, m.DropRate(), 1e-9)
	assert.Equal(t, 12, m.FPS)
	assert.InDelta(t, 0.096, m.BitrateMbps, 1e-9)
	assert.Equal(t, now, m.Timestamp)
}

func TestPerformanceMonitor_WindowsDoNotOverlap(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := newTestMonitor(&now)

	p.RecordFrame(10)
	p.RecordDrop()
	first := p.Collect(time.Second)
	require.Equal(t, 1, first.TotalFrames)

	second := p.Collect(time.Second)
	assert.Zero(t, second.TotalFrames)
	assert.Zero(t, second.DroppedFrames)
	assert.Zero(t, second.DropRate())
	assert.Equal(t, second, p.Latest())
}

func TestPerformanceMonitor_Latency(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := newTestMonitor(&now)

	p.RecordRendered(domain.Frame{ArrivalTime: now.Add(-40 * time.Millisecond)})
	p.RecordRendered(domain.Frame{ArrivalTime: now.Add(-60 * time.Millisecond)})
	p.RecordRendered(domain.Frame{})

	m := p.Collect(time.Second)
	assert.Equal(t, int64(50), m.LatencyMs)
}

func TestPerformanceMonitor_Run(t *testing.T) {
	p := NewPerformanceMonitor()
	p.RecordFrame(100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	windows := make(chan domain.PerformanceMetrics, 4)
	go p.Run(ctx, 10*time.Millisecond, func(m domain.PerformanceMetrics) {
		select {
		case windows <- m:
		default:
		}
	})

	select {
	case m := <-windows:
		assert.Equal(t, 1, m.TotalFrames)
	case <-time.After(time.Second):
		t.Fatal("no metrics window delivered")
	}
}
