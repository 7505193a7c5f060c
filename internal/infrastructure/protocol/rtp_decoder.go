package protocol

import (
	"encoding/binary"
	"fmt"
	"time"

	"weylus/internal/core/domain"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// CaptureTimeExtensionID is the RTP header extension carrying the host
// capture time as big-endian unix milliseconds.
const CaptureTimeExtensionID = 1

// Dynamic payload types the host assigns to each video codec.
const (
	PayloadTypeVP8  uint8 = 96
	PayloadTypeH264 uint8 = 102
)

// RTPFrameDecoder turns binary host messages, one RTP packet each, into
// frames. It keeps per-connection state and is not safe for concurrent use.
type RTPFrameDecoder struct {
	packet   rtp.Packet
	started  bool
	highest  uint64
	lastSSRC uint32
}

func NewRTPFrameDecoder() *RTPFrameDecoder {
	return &RTPFrameDecoder{}
}

func (d *RTPFrameDecoder) Decode(data []byte, arrival time.Time) (domain.Frame, error) {
	if err := d.packet.Unmarshal(data); err != nil {
		return d.corrupt(data, "invalid rtp packet: %v", err)
	}
	if d.packet.Version != 2 {
		return d.corrupt(data, "unsupported rtp version %d", d.packet.Version)
	}
	if len(d.packet.Payload) == 0 {
		return d.corrupt(data, "empty payload")
	}

	d.lastSSRC = d.packet.SSRC
	frame := domain.Frame{
		Sequence:    d.unwrap(d.packet.SequenceNumber),
		Source:      d.packet.SSRC,
		CaptureTime: arrival,
		ArrivalTime: arrival,
		Keyframe:    isKeyframe(d.packet.PayloadType, d.packet.Payload),
		Payload:     append([]byte(nil), d.packet.Payload...),
	}
	if ext := d.packet.GetExtension(CaptureTimeExtensionID); len(ext) == 8 {
		frame.CaptureTime = time.UnixMilli(int64(binary.BigEndian.Uint64(ext)))
	}
	return frame, nil
}

func (d *RTPFrameDecoder) corrupt(data []byte, format string, args ...interface{}) (domain.Frame, error) {
	source := d.lastSSRC
	if len(data) >= 12 {
		source = binary.BigEndian.Uint32(data[8:12])
	}
	return domain.Frame{Source: source}, fmt.Errorf("%w: %s", domain.ErrCorruptFrame, fmt.Sprintf(format, args...))
}

// unwrap extends the 16-bit RTP sequence number across wraparounds.
// Reordered packets map behind the highest number seen so far.
func (d *RTPFrameDecoder) unwrap(seq uint16) uint64 {
	if !d.started {
		d.started = true
		d.highest = uint64(seq)
		return d.highest
	}

	diff := int16(seq - uint16(d.highest))
	ext := int64(d.highest) + int64(diff)
	if ext < 0 {
		return uint64(seq)
	}
	if diff > 0 {
		d.highest = uint64(ext)
	}
	return uint64(ext)
}

// isKeyframe reports whether the packet starts a frame decodable on its
// own. Unknown payload types never count as keyframes.
func isKeyframe(payloadType uint8, payload []byte) bool {
	switch payloadType {
	case PayloadTypeVP8:
		return isVP8Keyframe(payload)
	case PayloadTypeH264:
		return isH264Keyframe(payload)
	default:
		return false
	}
}

// A VP8 key frame header is ten bytes, so shorter packets cannot start one.
const minVP8KeyframePacket = 11

func isVP8Keyframe(payload []byte) bool {
	if len(payload) < minVP8KeyframePacket {
		return false
	}
	var vp8 codecs.VP8Packet
	frame, err := vp8.Unmarshal(payload)
	if err != nil || vp8.S != 1 || vp8.PID != 0 || len(frame) == 0 {
		return false
	}
	// P bit of the frame tag: zero marks a key frame.
	return frame[0]&0x01 == 0
}

const (
	naluTypeMask = 0x1F
	naluIDR      = 5
	naluSTAPA    = 24
	naluFUA      = 28
	fuStartBit   = 0x80
)

func isH264Keyframe(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	switch payload[0] & naluTypeMask {
	case naluIDR:
		return true
	case naluSTAPA:
		// Aggregated NAL units, each behind a 16-bit size.
		for rest := payload[1:]; len(rest) > 2; {
			size := int(binary.BigEndian.Uint16(rest))
			rest = rest[2:]
			if size == 0 || size > len(rest) {
				return false
			}
			if rest[0]&naluTypeMask == naluIDR {
				return true
			}
			rest = rest[size:]
		}
		return false
	case naluFUA:
		return len(payload) > 1 &&
			payload[1]&fuStartBit != 0 &&
			payload[1]&naluTypeMask == naluIDR
	default:
		return false
	}
}
