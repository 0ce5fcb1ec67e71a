package fit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bridge-cli/internal/gum"
)

func points(t *testing.T, ns *gum.Namespace, vals, us []float64, dof gum.DoF) []*gum.Number {
	t.Helper()
	out := make([]*gum.Number, len(vals))
	for i := range vals {
		n, err := ns.Elementary(vals[i], us[i], dof, "y")
		require.NoError(t, err)
		out[i] = n
	}
	return out
}

func TestLineWLS_ExactLine(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	xs := []float64{-1, 0, 1, 2}
	ys := points(t, ns, []float64{1, 3, 5, 7}, []float64{0.1, 0.1, 0.2, 0.2}, gum.Finite(10))

	line, err := LineWLS(xs, ys)
	require.NoError(t, err)
	assert.False(t, line.Degenerate)
	assert.Equal(t, 4, line.N)
	assert.InDelta(t, 3.0, line.Intercept.Value(), 1e-12)
	assert.InDelta(t, 2.0, line.Slope.Value(), 1e-12)
}

func TestLineWLS_EqualWeightsMatchesOLS(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	xs := []float64{0, 1, 2}
	u := 0.3
	ys := points(t, ns, []float64{1, 2.2, 2.9}, []float64{u, u, u}, gum.Infinite)

	line, err := LineWLS(xs, ys)
	require.NoError(t, err)
	// OLS slope = Sxy/Sxx about the mean; u(b) = u/sqrt(Sxx).
	assert.InDelta(t, 0.95, line.Slope.Value(), 1e-12)
	assert.InDelta(t, u/1.4142135623730951, line.Slope.Uncertainty(), 1e-12)
	// Intercept at x=0: u(a)² = u²(1/n + mean²/Sxx) = u²(1/3 + 1/2).
	assert.InDelta(t, u*0.9128709291752769, line.Intercept.Uncertainty(), 1e-12)
}

func TestLineWLS_DegenerateIsWeightedMean(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	xs := []float64{23.1, 23.1, 23.1}
	ys := points(t, ns, []float64{10, 12, 11}, []float64{1, 2, 1}, gum.Finite(5))

	line, err := LineWLS(xs, ys)
	require.NoError(t, err)
	assert.True(t, line.Degenerate)

	wm, err := WeightedMean(ys)
	require.NoError(t, err)
	assert.InDelta(t, wm.Value(), line.Intercept.Value(), 1e-12)
	assert.InDelta(t, wm.Uncertainty(), line.Intercept.Uncertainty(), 1e-12)
	assert.InDelta(t, wm.DoF().Float(), line.Intercept.DoF().Float(), 1e-9)

	// w = 1, 1/4, 1 → mean = (10 + 3 + 11)/2.25
	assert.InDelta(t, 24.0/2.25, line.Intercept.Value(), 1e-12)
	assert.Equal(t, 0.0, line.Slope.Value())
	assert.Equal(t, 0.0, line.Slope.Uncertainty())
}

func TestLineWLS_PropagatesSharedInput(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	// Every y carries the same reference offset; the slope cannot depend on it.
	ref, err := ns.Elementary(0, 0.5, gum.Finite(8), "ref")
	require.NoError(t, err)
	raw := points(t, ns, []float64{1, 2, 3}, []float64{0.1, 0.1, 0.1}, gum.Infinite)
	ys := make([]*gum.Number, len(raw))
	for i, r := range raw {
		ys[i] = gum.Add(r, ref)
	}

	line, err := LineWLS([]float64{0, 1, 2}, ys)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, gum.Sensitivity(line.Slope, ref), 1e-12)
	assert.InDelta(t, 1.0, gum.Sensitivity(line.Intercept, ref), 1e-12)
	assert.False(t, line.Intercept.DoF().IsInf())
}

func TestLineWLS_Errors(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")

	_, err := LineWLS(nil, nil)
	assert.ErrorIs(t, err, ErrNoData)

	ys := points(t, ns, []float64{1, 2}, []float64{0.1, 0.1}, gum.Infinite)
	_, err = LineWLS([]float64{1}, ys)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	exact := []*gum.Number{gum.Constant(1), gum.Constant(2)}
	_, err = LineWLS([]float64{0, 1}, exact)
	assert.ErrorIs(t, err, ErrZeroWeight)
}

func TestLineWLS_SinglePoint(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	ys := points(t, ns, []float64{5}, []float64{0.2}, gum.Finite(3))
	line, err := LineWLS([]float64{1}, ys)
	require.NoError(t, err)
	assert.True(t, line.Degenerate)
	assert.Same(t, ys[0], line.Intercept)
}
