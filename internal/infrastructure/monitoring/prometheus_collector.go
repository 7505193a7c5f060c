package monitoring

import (
	"weylus/internal/core/domain"
	"weylus/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var allStates = []domain.StateKind{
	domain.StateDisconnected,
	domain.StateConnecting,
	domain.StateConnected,
	domain.StateDisconnecting,
	domain.StateError,
}

type PrometheusCollector struct {
	factory promauto.Factory

	// Session lifecycle
	connectionState   *prometheus.GaugeVec
	transitionsTotal  *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	handshakesTotal   *prometheus.CounterVec
	handshakeDuration prometheus.Histogram

	// Video
	framesDropped *prometheus.CounterVec
	videoQuality  prometheus.Gauge
	videoBitrate  prometheus.Gauge
	qualityChange *prometheus.CounterVec
	fps           prometheus.Gauge
	receiveRate   prometheus.Gauge
	dropRate      prometheus.Gauge
	renderLatency prometheus.Histogram

	// Input
	inputSamples *prometheus.CounterVec
}

var _ ports.SessionMetrics = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the session metrics with reg. A nil reg
// uses the default registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	p := &PrometheusCollector{
		factory: factory,

		connectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weylus_connection_state",
			Help: "Current connection state (1 for the active state)",
		}, []string{"state"}),

		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weylus_state_transitions_total",
			Help: "Total number of connection state transitions",
		}, []string{"from", "to"}),

		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "weylus_reconnect_attempts_total",
			Help: "Total number of scheduled reconnect attempts that were started",
		}),

		handshakesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weylus_handshakes_total",
			Help: "Total number of session handshakes by result",
		}, []string{"result"}),

		handshakeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "weylus_handshake_duration_seconds",
			Help:    "Duration of session handshakes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weylus_frames_dropped_total",
			Help: "Total number of frames dropped before rendering by reason",
		}, []string{"reason"}),

		videoQuality: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weylus_video_quality_tier",
			Help: "Requested video quality tier (0=LOW .. 3=ULTRA)",
		}),

		videoBitrate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weylus_video_target_bitrate_bps",
			Help: "Target bitrate of the requested quality tier in bits per second",
		}),

		qualityChange: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weylus_video_quality_changes_total",
			Help: "Total number of negotiated quality changes by target tier",
		}, []string{"quality"}),

		fps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weylus_video_fps",
			Help: "Frames received per second in the last window",
		}),

		receiveRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weylus_video_receive_mbps",
			Help: "Received video bitrate in the last window",
		}),

		dropRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weylus_video_drop_rate_percent",
			Help: "Percentage of frames dropped in the last window",
		}),

		renderLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "weylus_render_latency_seconds",
			Help:    "Average arrival-to-render latency per window",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.15, 0.25, 0.5, 1},
		}),

		inputSamples: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weylus_input_samples_total",
			Help: "Total number of pointer samples by filter result",
		}, []string{"result"}),
	}

	p.setState(domain.StateDisconnected)
	return p
}

// RegisterBufferOverflow exports the frame buffer's eviction counter.
func (p *PrometheusCollector) RegisterBufferOverflow(dropped func() uint64) {
	p.factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "weylus_frame_buffer_overflow_total",
		Help: "Total number of frames evicted from the full frame buffer",
	}, func() float64 { return float64(dropped()) })
}

func (p *PrometheusCollector) setState(current domain.StateKind) {
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		p.connectionState.WithLabelValues(s.String()).Set(v)
	}
}

func (p *PrometheusCollector) RecordTransition(from, to domain.StateKind) {
	p.transitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	p.setState(to)
}

func (p *PrometheusCollector) RecordReconnectAttempt() {
	p.reconnectAttempts.Inc()
}

func (p *PrometheusCollector) RecordHandshake(ok bool, seconds float64) {
	result := "failure"
	if ok {
		result = "success"
	}
	p.handshakesTotal.WithLabelValues(result).Inc()
	p.handshakeDuration.Observe(seconds)
}

func (p *PrometheusCollector) RecordFrameDropped(reason string) {
	p.framesDropped.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordInput(accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	p.inputSamples.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) RecordQualityChange(quality domain.VideoQuality) {
	p.qualityChange.WithLabelValues(quality.String()).Inc()
	p.videoQuality.Set(float64(quality))
	p.videoBitrate.Set(float64(quality.Bitrate()))
}

func (p *PrometheusCollector) ObservePerformance(m domain.PerformanceMetrics) {
	p.fps.Set(float64(m.FPS))
	p.receiveRate.Set(m.BitrateMbps)
	p.dropRate.Set(m.DropRate())
	if m.TotalFrames > 0 {
		p.renderLatency.Observe(float64(m.LatencyMs) / 1000)
	}
}
