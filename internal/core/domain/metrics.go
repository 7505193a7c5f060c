package domain

import "time"

// PerformanceMetrics is one non-overlapping measurement window.
type PerformanceMetrics struct {
	FPS           int       `json:"fps"`
	LatencyMs     int64     `json:"latency_ms"`
	BitrateMbps   float64   `json:"bitrate_mbps"`
	DroppedFrames int       `json:"dropped_frames"`
	TotalFrames   int       `json:"total_frames"`
	Timestamp     time.Time `json:"timestamp"`
}

// DropRate is the percentage of dropped frames in the window.
func (m PerformanceMetrics) DropRate() float64 {
	if m.TotalFrames <= 0 {
		return 0
	}
	return float64(m.DroppedFrames) / float64(m.TotalFrames) * 100
}
