package gum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	n, err := ns.Estimate([]float64{1, 2, 3, 4}, "x")
	require.NoError(t, err)
	assert.Equal(t, 2.5, n.Value())
	// s = sqrt(5/3), u = s/2
	assert.InDelta(t, math.Sqrt(5.0/3.0)/2, n.Uncertainty(), 1e-15)
	assert.Equal(t, Finite(3), n.DoF())
	assert.True(t, n.IsElementary())

	_, err = ns.Estimate([]float64{1}, "one")
	assert.ErrorIs(t, err, ErrTooFewSamples)
}

func TestEstimateDigitized(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")

	t.Run("identical readings use the digitization floor", func(t *testing.T) {
		n, err := ns.EstimateDigitized([]float64{20.51, 20.51, 20.51, 20.51}, 0.01, "T")
		require.NoError(t, err)
		assert.InDelta(t, 20.51, n.Value(), 1e-12)
		assert.InDelta(t, 0.01/math.Sqrt(12), n.Uncertainty(), 1e-15)
		assert.Equal(t, Finite(3), n.DoF())
	})

	t.Run("scatter above floor is kept", func(t *testing.T) {
		n, err := ns.EstimateDigitized([]float64{20.0, 20.5, 21.0, 20.5}, 0.01, "T")
		require.NoError(t, err)
		plain, err := ns.Estimate([]float64{20.0, 20.5, 21.0, 20.5}, "T")
		require.NoError(t, err)
		assert.Equal(t, plain.Uncertainty(), n.Uncertainty())
	})

	t.Run("larger term wins, no quadrature sum", func(t *testing.T) {
		xs := []float64{1.0, 1.2, 1.0, 1.2}
		plain, err := ns.Estimate(xs, "V")
		require.NoError(t, err)
		// s/√n = 0.0577 and digit/√12 = 0.0289 for digit 0.1.
		n, err := ns.EstimateDigitized(xs, 0.1, "V")
		require.NoError(t, err)
		want := math.Max(plain.Uncertainty(), 0.1/math.Sqrt(12))
		assert.InDelta(t, want, n.Uncertainty(), 1e-15)
		assert.Less(t, n.Uncertainty(), math.Hypot(plain.Uncertainty(), 0.1/math.Sqrt(12)))
	})

	t.Run("too few", func(t *testing.T) {
		_, err := ns.EstimateDigitized([]float64{1}, 0.01, "T")
		assert.ErrorIs(t, err, ErrTooFewSamples)
	})
}

func TestKFactor(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1.959964, KFactor(Infinite, 0.95), 1e-6)
	assert.InDelta(t, 2.228139, KFactor(Finite(10), 0.95), 1e-6)
	assert.InDelta(t, 12.706205, KFactor(Finite(1), 0.95), 1e-5)

	ns := NewNamespace("")
	x, err := ns.Elementary(1, 0.5, Finite(10), "x")
	require.NoError(t, err)
	u, k := Expanded(x, 0.95)
	assert.InDelta(t, 2.228139, k, 1e-6)
	assert.InDelta(t, 0.5*k, u, 1e-12)
}
