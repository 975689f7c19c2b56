package alignment

import (
	"errors"
	"testing"

	"sar-coreg/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions(testWindow).Validate())

	tests := []struct {
		name   string
		modify func(o *Options)
	}{
		{"degree too low", func(o *Options) { o.Degree = 0 }},
		{"degree too high", func(o *Options) { o.Degree = 4 }},
		{"negative iterations", func(o *Options) { o.MaxIterations = -1 }},
		{"zero critical value", func(o *Options) { o.CriticalValue = 0 }},
		{"unknown weighting", func(o *Options) { o.Weighting = Weighting(7) }},
		{"empty window", func(o *Options) { o.Window = geometry.NewWindow(0, 0, 0, 100) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions(testWindow)
			tt.modify(&opts)
			err := opts.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidOptions))

			_, err = NewEstimator(opts)
			assert.True(t, errors.Is(err, ErrInvalidOptions))
		})
	}
}

func TestCriticalValueFromAlpha(t *testing.T) {
	cv, err := CriticalValueFromAlpha(0.05)
	require.NoError(t, err)
	assert.InDelta(t, 1.959964, cv, 1e-6)

	cv, err = CriticalValueFromAlpha(0.001)
	require.NoError(t, err)
	assert.InDelta(t, DefaultCriticalValue, cv, 1e-9)

	for _, alpha := range []float64{0, 1, -0.1, 2} {
		_, err := CriticalValueFromAlpha(alpha)
		assert.Error(t, err, "alpha %g", alpha)
	}
}

func TestParseWeighting(t *testing.T) {
	for in, want := range map[string]Weighting{
		"":           WeightNone,
		"none":       WeightNone,
		"Linear":     WeightLinear,
		" QUADRATIC": WeightQuadratic,
	} {
		got, err := ParseWeighting(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseWeighting("cubic")
	assert.Error(t, err)

	var w Weighting
	require.NoError(t, w.UnmarshalText([]byte("quadratic")))
	assert.Equal(t, WeightQuadratic, w)
	text, err := w.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "quadratic", string(text))
}

func TestEstimationErrorUnwraps(t *testing.T) {
	err := &EstimationError{Iteration: 3, Observations: 5, Err: ErrSingularSystem}
	assert.True(t, errors.Is(err, ErrSingularSystem))
	assert.Contains(t, err.Error(), "5 observations")
	assert.Contains(t, err.Error(), "iteration 3")
}
