package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"weylus/internal/core/domain"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_EncodeVideoConfig(t *testing.T) {
	cfg := domain.DefaultVideoConfig()
	cfg.Quality = domain.QualityMedium
	cfg.LowLatencyMode = true

	data, err := NewCodec().EncodeVideoConfig(cfg)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeConfig, env.Type)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "MEDIUM", payload["quality"])
	assert.Equal(t, float64(10_000_000), payload["bitrate"])
	assert.Equal(t, true, payload["low_latency_mode"])
	assert.Equal(t, float64(cfg.FrameRate), payload["frame_rate"])
}

func TestCodec_EncodeInput(t *testing.T) {
	data, err := NewCodec().EncodeInput(domain.InputSample{
		PointerID:   3,
		PointerType: domain.PointerPen,
		X:           0.25,
		Y:           0.75,
		Pressure:    0.5,
		Phase:       domain.PhaseMove,
	})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypePointer, env.Type)
	assert.JSONEq(t,
		`{"pointer_id":3,"pointer_type":"pen","x":0.25,"y":0.75,"pressure":0.5,"contact_size_mm":0,"timestamp_ms":0,"phase":"move"}`,
		string(env.Payload),
	)
}

func TestCodec_DecodeControl(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    domain.ControlMessage
		wantErr bool
	}{
		{
			name:  "config accepted",
			input: `{"type":"config_ok"}`,
			want:  domain.ControlMessage{Type: domain.ControlConfigOK},
		},
		{
			name:  "config rejected",
			input: `{"type":"config_error","payload":{"message":"unsupported resolution"}}`,
			want:  domain.ControlMessage{Type: domain.ControlConfigError, Message: "unsupported resolution"},
		},
		{
			name:  "host error",
			input: `{"type":"error","payload":{"message":"input device busy"}}`,
			want:  domain.ControlMessage{Type: domain.ControlError, Message: "input device busy"},
		},
		{
			name:  "pong",
			input: `{"type":"pong"}`,
			want:  domain.ControlMessage{Type: domain.ControlPong},
		},
		{name: "not json", input: `{"type":`, wantErr: true},
		{name: "missing type", input: `{"payload":{}}`, wantErr: true},
		{name: "unknown type", input: `{"type":"teleport"}`, wantErr: true},
		{name: "bad payload", input: `{"type":"error","payload":"oops"}`, wantErr: true},
	}

	codec := NewCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.DecodeControl([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrProtocol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodec_DecodeControl_TruncatesUnknownType(t *testing.T) {
	long := strings.Repeat("x", 500)
	_, err := Codec{}.DecodeControl([]byte(`{"type":"` + long + `"}`))
	require.ErrorIs(t, err, domain.ErrProtocol)
	assert.NotContains(t, err.Error(), long)
	assert.Contains(t, err.Error(), strings.Repeat("x", maxTypeInError-3)+"...")
}

func TestCodec_EncodeKeyframeRequest(t *testing.T) {
	data, err := NewCodec().EncodeKeyframeRequest(0xCAFE)
	require.NoError(t, err)

	packets, err := rtcp.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, packets, 1)

	pli, ok := packets[0].(*rtcp.PictureLossIndication)
	require.True(t, ok)
	assert.Equal(t, uint32(0xCAFE), pli.MediaSSRC)
}
