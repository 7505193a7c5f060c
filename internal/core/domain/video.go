package domain

import (
	"fmt"
	"strings"
	"time"
)

type VideoQuality int

const (
	QualityLow VideoQuality = iota
	QualityMedium
	QualityHigh
	QualityUltra
)

// Bitrate returns the target bitrate of the tier in bits per second.
func (q VideoQuality) Bitrate() int {
	switch q {
	case QualityLow:
		return 5_000_000
	case QualityMedium:
		return 10_000_000
	case QualityHigh:
		return 20_000_000
	case QualityUltra:
		return 50_000_000
	default:
		return DefaultBitrate
	}
}

// Lower returns the next tier down, or q itself at the bottom.
func (q VideoQuality) Lower() VideoQuality {
	if q <= QualityLow {
		return QualityLow
	}
	return q - 1
}

// Higher returns the next tier up, or q itself at the top.
func (q VideoQuality) Higher() VideoQuality {
	if q >= QualityUltra {
		return QualityUltra
	}
	return q + 1
}

func (q VideoQuality) String() string {
	switch q {
	case QualityLow:
		return "LOW"
	case QualityMedium:
		return "MEDIUM"
	case QualityHigh:
		return "HIGH"
	case QualityUltra:
		return "ULTRA"
	default:
		return "UNKNOWN"
	}
}

func ParseVideoQuality(s string) (VideoQuality, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return QualityLow, nil
	case "MEDIUM":
		return QualityMedium, nil
	case "HIGH":
		return QualityHigh, nil
	case "ULTRA":
		return QualityUltra, nil
	default:
		return QualityHigh, fmt.Errorf("unknown video quality %q", s)
	}
}

func (q VideoQuality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *VideoQuality) UnmarshalText(text []byte) error {
	parsed, err := ParseVideoQuality(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// UnmarshalYAML lets yaml.v2 configs spell tiers by name.
func (q *VideoQuality) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return q.UnmarshalText([]byte(s))
}

func (q VideoQuality) MarshalYAML() (interface{}, error) {
	return q.String(), nil
}

// VideoConfig is an immutable snapshot; changes replace it wholesale.
type VideoConfig struct {
	MaxWidth       int          `json:"max_width" yaml:"max_width"`
	MaxHeight      int          `json:"max_height" yaml:"max_height"`
	FrameRate      int          `json:"frame_rate" yaml:"frame_rate"`
	Quality        VideoQuality `json:"quality" yaml:"quality"`
	LowLatencyMode bool         `json:"low_latency_mode" yaml:"low_latency_mode"`
}

func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		FrameRate: DefaultFrameRate,
		Quality:   QualityHigh,
	}
}

// FrameInterval is the render period implied by FrameRate.
func (c VideoConfig) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / DefaultFrameRate
	}
	return time.Second / time.Duration(c.FrameRate)
}
