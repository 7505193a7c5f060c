package ports

import (
	"time"

	"weylus/internal/core/domain"
)

// MessageCodec serializes client messages and parses host messages.
type MessageCodec interface {
	EncodeInput(sample domain.InputSample) ([]byte, error)
	EncodeVideoConfig(cfg domain.VideoConfig) ([]byte, error)
	// EncodeKeyframeRequest builds a binary request for a fresh keyframe of
	// the given media source.
	EncodeKeyframeRequest(source uint32) ([]byte, error)
	// DecodeControl parses a text message. Malformed or unknown messages
	// return an error wrapping domain.ErrProtocol.
	DecodeControl(data []byte) (domain.ControlMessage, error)
	// NewFrameDecoder returns a decoder for one connection's binary stream.
	NewFrameDecoder() FrameDecoder
}

// FrameDecoder parses binary video messages. Corrupt input returns an error
// wrapping domain.ErrCorruptFrame.
type FrameDecoder interface {
	Decode(data []byte, arrival time.Time) (domain.Frame, error)
}
