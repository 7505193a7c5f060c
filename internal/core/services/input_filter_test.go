package services

import (
	"testing"

	"weylus/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(id int64, phase domain.PointerPhase, sizeMm, pressure float64) domain.InputSample {
	return domain.InputSample{
		PointerID:     id,
		PointerType:   domain.PointerPen,
		X:             0.5,
		Y:             0.5,
		Pressure:      pressure,
		ContactSizeMm: sizeMm,
		Phase:         phase,
	}
}

func TestSizeThreshold(t *testing.T) {
	tests := []struct {
		sensitivity int
		want        float64
	}{
		{0, 20},
		{50, 13},
		{100, 6},
		{-10, 20},
		{150, 6},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, SizeThreshold(tt.sensitivity), 1e-9, "sensitivity %d", tt.sensitivity)
	}
}

func TestInputEventFilter_RejectsLargeContacts(t *testing.T) {
	f := NewInputEventFilter(domain.PalmRejectionConfig{Enabled: true, Sensitivity: 50}, nil)

	_, ok := f.Filter(sample(1, domain.PhaseDown, 25, 0.5))
	assert.False(t, ok, "palm-sized contact should be rejected")

	out, ok := f.Filter(sample(2, domain.PhaseDown, 5, 0.5))
	assert.True(t, ok, "pen-sized contact should pass")
	assert.InDelta(t, 0.5, out.Pressure, 1e-9)
}

func TestInputEventFilter_Disabled(t *testing.T) {
	f := NewInputEventFilter(domain.PalmRejectionConfig{Enabled: false, Sensitivity: 100}, nil)

	_, ok := f.Filter(sample(1, domain.PhaseDown, 40, 0.5))
	assert.True(t, ok)
}

func TestInputEventFilter_RejectionIsStickyUntilLift(t *testing.T) {
	f := NewInputEventFilter(domain.DefaultPalmRejectionConfig(), nil)

	_, ok := f.Filter(sample(7, domain.PhaseDown, 25, 0.5))
	require.False(t, ok)

	// Contact shrinks but the pointer was already classified as a palm.
	_, ok = f.Filter(sample(7, domain.PhaseMove, 4, 0.5))
	assert.False(t, ok)

	_, ok = f.Filter(sample(7, domain.PhaseUp, 4, 0))
	assert.False(t, ok, "lift of a rejected pointer is dropped too")

	// The same id touching down again is judged afresh.
	_, ok = f.Filter(sample(7, domain.PhaseDown, 4, 0.5))
	assert.True(t, ok)
}

func TestInputEventFilter_SizeJudgedOnlyAtTouchDown(t *testing.T) {
	f := NewInputEventFilter(domain.DefaultPalmRejectionConfig(), nil)

	steps := []domain.InputSample{
		sample(4, domain.PhaseDown, 5, 0.5),
		sample(4, domain.PhaseMove, 15, 0.6),
		sample(4, domain.PhaseMove, 4, 0.6),
		sample(4, domain.PhaseUp, 4, 0),
	}
	for i, s := range steps {
		_, ok := f.Filter(s)
		assert.True(t, ok, "step %d (%s) of an accepted stroke must pass", i, s.Phase)
	}
}

func TestInputEventFilter_PointerWithoutDownPasses(t *testing.T) {
	f := NewInputEventFilter(domain.DefaultPalmRejectionConfig(), nil)

	_, ok := f.Filter(sample(9, domain.PhaseMove, 40, 0.5))
	assert.True(t, ok)
	_, ok = f.Filter(sample(9, domain.PhaseUp, 40, 0))
	assert.True(t, ok)
}

func TestInputEventFilter_CancelClearsState(t *testing.T) {
	f := NewInputEventFilter(domain.DefaultPalmRejectionConfig(), nil)

	f.Filter(sample(3, domain.PhaseDown, 30, 0.5))
	_, ok := f.Filter(sample(3, domain.PhaseCancel, 30, 0))
	assert.False(t, ok)

	_, ok = f.Filter(sample(3, domain.PhaseMove, 5, 0.5))
	assert.True(t, ok)
}

func TestInputEventFilter_Reset(t *testing.T) {
	f := NewInputEventFilter(domain.DefaultPalmRejectionConfig(), nil)
	f.Filter(sample(1, domain.PhaseDown, 30, 0.5))

	f.Reset()

	_, ok := f.Filter(sample(1, domain.PhaseMove, 5, 0.5))
	assert.True(t, ok)
}

func TestInputEventFilter_SetConfig(t *testing.T) {
	f := NewInputEventFilter(domain.PalmRejectionConfig{Enabled: true, Sensitivity: 0}, nil)

	_, ok := f.Filter(sample(1, domain.PhaseDown, 15, 0.5))
	assert.True(t, ok)

	f.SetConfig(domain.PalmRejectionConfig{Enabled: true, Sensitivity: 100})
	assert.Equal(t, 100, f.Config().Sensitivity)

	_, ok = f.Filter(sample(2, domain.PhaseDown, 15, 0.5))
	assert.False(t, ok)
}

func TestPressureCurve(t *testing.T) {
	identity := IdentityCurve()
	for _, p := range []float64{0, 0.25, 0.5, 0.9, 1} {
		assert.InDelta(t, p, identity.Apply(p), 1e-6)
	}

	assert.Equal(t, 0.0, identity.Apply(-0.5))
	assert.Equal(t, 1.0, identity.Apply(1.5))

	soft := NewGammaCurve(2)
	assert.InDelta(t, 0.25, soft.Apply(0.5), 1e-3)
	assert.Less(t, soft.Apply(0.3), soft.Apply(0.6))
}

func TestNewPressureCurve_RejectsNonMonotonic(t *testing.T) {
	_, err := NewPressureCurve(func(x float64) float64 { return 1 - x })
	assert.Error(t, err)

	curve, err := NewPressureCurve(func(x float64) float64 { return x * 2 })
	require.NoError(t, err)
	assert.Equal(t, 1.0, curve.Apply(0.75), "outputs are clamped")
}

func TestInputEventFilter_AppliesCurve(t *testing.T) {
	f := NewInputEventFilter(domain.DefaultPalmRejectionConfig(), NewGammaCurve(2))

	out, ok := f.Filter(sample(1, domain.PhaseDown, 5, 0.5))
	require.True(t, ok)
	assert.InDelta(t, 0.25, out.Pressure, 1e-3)
}
