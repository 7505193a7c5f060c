package protocol

import (
	"encoding/json"
	"fmt"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"
	"weylus/pkg/utils"

	"github.com/pion/rtcp"
)

// maxTypeInError bounds how much of an unknown host type ends up in errors.
const maxTypeInError = 32

// Client message types.
const (
	TypeConfig  = "config"
	TypePointer = "pointer"
)

// Envelope wraps every text message exchanged with the host.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ConfigPayload is the body of a config message.
type ConfigPayload struct {
	MaxWidth       int                 `json:"max_width"`
	MaxHeight      int                 `json:"max_height"`
	FrameRate      int                 `json:"frame_rate"`
	Quality        domain.VideoQuality `json:"quality"`
	Bitrate        int                 `json:"bitrate"`
	LowLatencyMode bool                `json:"low_latency_mode"`
}

type messagePayload struct {
	Message string `json:"message"`
}

// Codec speaks JSON envelopes for control traffic, RTP for video and RTCP
// for keyframe requests.
type Codec struct{}

var _ ports.MessageCodec = Codec{}

func NewCodec() Codec {
	return Codec{}
}

func (Codec) EncodeInput(sample domain.InputSample) ([]byte, error) {
	return encode(TypePointer, sample)
}

func (Codec) EncodeVideoConfig(cfg domain.VideoConfig) ([]byte, error) {
	return encode(TypeConfig, ConfigPayload{
		MaxWidth:       cfg.MaxWidth,
		MaxHeight:      cfg.MaxHeight,
		FrameRate:      cfg.FrameRate,
		Quality:        cfg.Quality,
		Bitrate:        cfg.Quality.Bitrate(),
		LowLatencyMode: cfg.LowLatencyMode,
	})
}

// EncodeKeyframeRequest returns an RTCP picture loss indication for source.
func (Codec) EncodeKeyframeRequest(source uint32) ([]byte, error) {
	return rtcp.Marshal([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: source},
	})
}

func (Codec) DecodeControl(data []byte) (domain.ControlMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.ControlMessage{}, fmt.Errorf("%w: invalid envelope: %v", domain.ErrProtocol, err)
	}

	msg := domain.ControlMessage{Type: domain.ControlType(env.Type)}
	switch msg.Type {
	case domain.ControlConfigOK, domain.ControlPong:
	case domain.ControlConfigError, domain.ControlError:
		if len(env.Payload) > 0 {
			var p messagePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return domain.ControlMessage{}, fmt.Errorf("%w: invalid %s payload: %v", domain.ErrProtocol, env.Type, err)
			}
			msg.Message = p.Message
		}
	case "":
		return domain.ControlMessage{}, fmt.Errorf("%w: missing message type", domain.ErrProtocol)
	default:
		return domain.ControlMessage{}, fmt.Errorf("%w: unknown message type %q", domain.ErrProtocol, utils.TruncateString(env.Type, maxTypeInError))
	}
	return msg, nil
}

func (Codec) NewFrameDecoder() ports.FrameDecoder {
	return NewRTPFrameDecoder()
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
