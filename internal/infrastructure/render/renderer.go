// Package render drains the video stream buffer at the negotiated frame rate
// and hands frames to the presentation layer.
package render

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"weylus/internal/core/domain"

	"go.uber.org/zap"
)

// FrameSource is the buffer the renderer drains.
type FrameSource interface {
	Pop() (domain.Frame, bool)
	CurrentConfig() domain.VideoConfig
}

// Recorder receives render-side performance samples.
type Recorder interface {
	RecordRendered(frame domain.Frame)
	RecordDrop()
}

// KeyframeRequester asks the host for a fresh keyframe.
type KeyframeRequester interface {
	RequestKeyframe(source uint32) bool
}

// Sink presents a frame. Decoding and drawing live behind it.
type Sink interface {
	Present(frame domain.Frame) error
}

// DiscardSink presents nothing. Useful for headless sessions.
type DiscardSink struct{}

func (DiscardSink) Present(domain.Frame) error { return nil }

type Stats struct {
	Rendered           uint64 `json:"rendered"`
	Skipped            uint64 `json:"skipped"`
	WaitingForKeyframe bool   `json:"waiting_for_keyframe"`
}

// Renderer renders at most one frame per tick. After a gap in the sequence
// it skips delta frames until the next keyframe, since they cannot be
// decoded without their reference.
type Renderer struct {
	source    FrameSource
	recorder  Recorder
	sink      Sink
	keyframes KeyframeRequester
	logger    *zap.SugaredLogger

	mu       sync.Mutex
	haveLast bool
	lastSeq  uint64
	waiting  bool

	rendered atomic.Uint64
	skipped  atomic.Uint64
}

func NewRenderer(source FrameSource, recorder Recorder, sink Sink, keyframes KeyframeRequester, logger *zap.SugaredLogger) *Renderer {
	if sink == nil {
		sink = DiscardSink{}
	}
	return &Renderer{
		source:    source,
		recorder:  recorder,
		sink:      sink,
		keyframes: keyframes,
		logger:    logger,
		waiting:   true,
	}
}

// Run ticks at the frame interval of the current video configuration until
// ctx is done. Interval changes are picked up on the next tick.
func (r *Renderer) Run(ctx context.Context) {
	interval := r.source.CurrentConfig().FrameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
			if next := r.source.CurrentConfig().FrameInterval(); next != interval {
				r.logger.Debugw("render interval changed", "from", interval.String(), "to", next.String())
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// Tick pops until one frame is rendered or the buffer is empty. It reports
// whether a frame was rendered.
func (r *Renderer) Tick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		frame, ok := r.source.Pop()
		if !ok {
			return false
		}

		if r.haveLast && frame.Sequence != r.lastSeq+1 && !r.waiting {
			r.waiting = true
			r.logger.Debugw("sequence gap, waiting for keyframe",
				"expected", r.lastSeq+1,
				"sequence", frame.Sequence,
			)
		}
		r.haveLast = true
		r.lastSeq = frame.Sequence

		if r.waiting && !frame.Keyframe {
			r.skipped.Add(1)
			r.recorder.RecordDrop()
			if r.keyframes != nil {
				r.keyframes.RequestKeyframe(frame.Source)
			}
			continue
		}
		r.waiting = false

		if err := r.sink.Present(frame); err != nil {
			r.logger.Debugw("failed to present frame", "sequence", frame.Sequence, "error", err)
		}
		r.recorder.RecordRendered(frame)
		r.rendered.Add(1)
		return true
	}
}

// Reset forgets the reference frame, e.g. when a new connection starts its
// own sequence numbering.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.haveLast = false
	r.lastSeq = 0
	r.waiting = true
}

func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	waiting := r.waiting
	r.mu.Unlock()
	return Stats{
		Rendered:           r.rendered.Load(),
		Skipped:            r.skipped.Load(),
		WaitingForKeyframe: waiting,
	}
}
