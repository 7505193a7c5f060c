package domain

import (
	"fmt"
	"strings"
)

type PointerPhase int

const (
	PhaseDown PointerPhase = iota
	PhaseMove
	PhaseUp
	PhaseCancel
)

func (p PointerPhase) String() string {
	switch p {
	case PhaseDown:
		return "down"
	case PhaseMove:
		return "move"
	case PhaseUp:
		return "up"
	case PhaseCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Ends reports whether the phase lifts the pointer.
func (p PointerPhase) Ends() bool {
	return p == PhaseUp || p == PhaseCancel
}

func (p PointerPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PointerPhase) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "down":
		*p = PhaseDown
	case "move":
		*p = PhaseMove
	case "up":
		*p = PhaseUp
	case "cancel":
		*p = PhaseCancel
	default:
		return fmt.Errorf("unknown pointer phase %q", text)
	}
	return nil
}

type PointerType string

const (
	PointerPen   PointerType = "pen"
	PointerTouch PointerType = "touch"
	PointerMouse PointerType = "mouse"
)

// InputSample is one raw pointer sample. X and Y are normalized to [0,1] of
// the streamed surface.
type InputSample struct {
	PointerID     int64        `json:"pointer_id"`
	PointerType   PointerType  `json:"pointer_type,omitempty"`
	X             float64      `json:"x"`
	Y             float64      `json:"y"`
	Pressure      float64      `json:"pressure"`
	ContactSizeMm float64      `json:"contact_size_mm"`
	TimestampMs   int64        `json:"timestamp_ms"`
	Phase         PointerPhase `json:"phase"`
}

// PalmRejectionConfig is the per-user input filter configuration.
type PalmRejectionConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	Sensitivity int  `json:"sensitivity" yaml:"sensitivity"`
}

func DefaultPalmRejectionConfig() PalmRejectionConfig {
	return PalmRejectionConfig{Enabled: true, Sensitivity: 50}
}
