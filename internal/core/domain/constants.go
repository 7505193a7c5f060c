package domain

import "time"

const (
	DefaultPort          = 1701
	WebSocketTimeout     = 10 * time.Second
	ReconnectDelay       = 2 * time.Second
	MaxReconnectAttempts = 5

	DefaultMaxWidth    = 1920
	DefaultMaxHeight   = 1080
	DefaultFrameRate   = 60
	DefaultBitrate     = 10_000_000
	MaxFrameBufferSize = 5

	PressureCurvePoints               = 100
	DefaultPalmRejectionSizeThreshold = 20.0 // mm
	MinPalmRejectionSizeThreshold     = 6.0  // mm

	ClientName = "Weylus Go"
)
