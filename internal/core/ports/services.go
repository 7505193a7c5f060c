package ports

import (
	"context"

	"weylus/internal/core/domain"
)

// SettingsStore is the persisted user preferences store. The session core only
// reads from it.
type SettingsStore interface {
	Load(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, settings domain.Settings) error
	// Watch delivers a snapshot on every change until ctx is done.
	Watch(ctx context.Context) (<-chan domain.Settings, error)
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
}

// KeepAlive keeps the process in the foreground while a session is connected.
// disconnect ends the session; it must not be called from within Start.
type KeepAlive interface {
	Start(displayName string, disconnect func())
	Stop()
}

// QualityNegotiator applies a new video configuration to the live session.
type QualityNegotiator interface {
	NegotiateVideoConfig(cfg domain.VideoConfig)
}

// SessionMetrics receives session telemetry.
type SessionMetrics interface {
	RecordTransition(from, to domain.StateKind)
	RecordReconnectAttempt()
	RecordHandshake(ok bool, seconds float64)
	RecordFrameDropped(reason string)
	RecordInput(accepted bool)
	RecordQualityChange(quality domain.VideoQuality)
	ObservePerformance(m domain.PerformanceMetrics)
}

// NopSessionMetrics discards everything.
type NopSessionMetrics struct{}

func (NopSessionMetrics) RecordTransition(from, to domain.StateKind)      {}
func (NopSessionMetrics) RecordReconnectAttempt()                         {}
func (NopSessionMetrics) RecordHandshake(ok bool, seconds float64)        {}
func (NopSessionMetrics) RecordFrameDropped(reason string)                {}
func (NopSessionMetrics) RecordInput(accepted bool)                       {}
func (NopSessionMetrics) RecordQualityChange(quality domain.VideoQuality) {}
func (NopSessionMetrics) ObservePerformance(m domain.PerformanceMetrics)  {}
