package services

import (
	"fmt"
	"math"
	"sync"

	"weylus/internal/core/domain"
)

// PressureCurve is a monotonic mapping of [0,1] pressure sampled at a fixed
// number of points and linearly interpolated between them.
type PressureCurve struct {
	points []float64
}

// NewPressureCurve samples fn at domain.PressureCurvePoints evenly spaced
// inputs. fn must be non-decreasing; outputs are clamped to [0,1].
func NewPressureCurve(fn func(float64) float64) (*PressureCurve, error) {
	n := domain.PressureCurvePoints
	points := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)
		points[i] = clamp01(fn(x))
		if i > 0 && points[i] < points[i-1] {
			return nil, fmt.Errorf("pressure curve is not monotonic at %.3f", x)
		}
	}
	return &PressureCurve{points: points}, nil
}

// NewGammaCurve returns the curve p^gamma. gamma <= 0 falls back to identity.
func NewGammaCurve(gamma float64) *PressureCurve {
	if gamma <= 0 || math.IsNaN(gamma) {
		gamma = 1
	}
	curve, _ := NewPressureCurve(func(x float64) float64 { return math.Pow(x, gamma) })
	return curve
}

func IdentityCurve() *PressureCurve {
	return NewGammaCurve(1)
}

func (c *PressureCurve) Apply(pressure float64) float64 {
	if c == nil || len(c.points) == 0 {
		return clamp01(pressure)
	}
	pos := clamp01(pressure) * float64(len(c.points)-1)
	i := int(pos)
	if i >= len(c.points)-1 {
		return c.points[len(c.points)-1]
	}
	frac := pos - float64(i)
	return c.points[i] + (c.points[i+1]-c.points[i])*frac
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SizeThreshold maps a 0..100 sensitivity to the largest contact size that is
// still accepted. Higher sensitivity rejects smaller contacts.
func SizeThreshold(sensitivity int) float64 {
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > 100 {
		sensitivity = 100
	}
	span := domain.DefaultPalmRejectionSizeThreshold - domain.MinPalmRejectionSizeThreshold
	return domain.DefaultPalmRejectionSizeThreshold - span*float64(sensitivity)/100
}

// InputEventFilter drops palm and incidental contacts before they reach the
// wire. A pointer rejected once stays rejected until it lifts.
type InputEventFilter struct {
	mu        sync.Mutex
	config    domain.PalmRejectionConfig
	threshold float64
	curve     *PressureCurve
	rejected  map[int64]bool
}

func NewInputEventFilter(config domain.PalmRejectionConfig, curve *PressureCurve) *InputEventFilter {
	if curve == nil {
		curve = IdentityCurve()
	}
	return &InputEventFilter{
		config:    config,
		threshold: SizeThreshold(config.Sensitivity),
		curve:     curve,
		rejected:  make(map[int64]bool),
	}
}

// SetConfig replaces the palm rejection configuration. Pointers already down
// keep their decision.
func (f *InputEventFilter) SetConfig(config domain.PalmRejectionConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = config
	f.threshold = SizeThreshold(config.Sensitivity)
}

func (f *InputEventFilter) SetCurve(curve *PressureCurve) {
	if curve == nil {
		curve = IdentityCurve()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.curve = curve
}

func (f *InputEventFilter) Config() domain.PalmRejectionConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// Filter classifies a sample. Contact size is judged only on Down; a pointer
// whose Down was rejected stays rejected through its Up or Cancel. Samples of
// a pointer whose Down was never seen pass through. Accepted samples are
// returned with their pressure remapped; rejected ones report ok == false.
func (f *InputEventFilter) Filter(sample domain.InputSample) (domain.InputSample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var reject bool
	if sample.Phase == domain.PhaseDown {
		reject = f.config.Enabled && sample.ContactSizeMm > f.threshold
		if reject {
			f.rejected[sample.PointerID] = true
		} else {
			delete(f.rejected, sample.PointerID)
		}
	} else {
		reject = f.rejected[sample.PointerID]
	}

	if sample.Phase.Ends() {
		delete(f.rejected, sample.PointerID)
	}

	if reject {
		return sample, false
	}
	sample.Pressure = f.curve.Apply(sample.Pressure)
	return sample, true
}

// Reset forgets all sticky pointer state, e.g. after the session drops.
func (f *InputEventFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = make(map[int64]bool)
}
