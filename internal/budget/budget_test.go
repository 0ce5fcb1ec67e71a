package budget

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bridge-cli/internal/gum"
)

func elem(t *testing.T, ns *gum.Namespace, v, u float64, dof gum.DoF, label string) *gum.Number {
	t.Helper()
	n, err := ns.Elementary(v, u, dof, label)
	require.NoError(t, err)
	return n
}

func TestLines_SortedByContribution(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	a := elem(t, ns, 2, 0.1, gum.Finite(4), "a")
	b := elem(t, ns, 3, 0.5, gum.Infinite, "b")
	c := elem(t, ns, 1, 0.2, gum.Finite(9), "c")
	r := gum.Add(gum.Mul(a, b), c) // r = a·b + c

	lines := New(r).Add(a, b, c).Lines()
	require.Len(t, lines, 3)
	// |∂r/∂b·u_b| = 2·0.5 = 1; |∂r/∂a·u_a| = 3·0.1 = 0.3; c → 0.2
	assert.Equal(t, []string{"b", "a", "c"}, []string{lines[0].Label, lines[1].Label, lines[2].Label})
	assert.InDelta(t, 2.0, lines[0].Sensitivity, 1e-15)
	assert.InDelta(t, 1.0, lines[0].Contribution, 1e-15)
	assert.Equal(t, gum.Finite(4), lines[1].DoF)
}

func TestLines_SignedContributionAndStableTies(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	x := elem(t, ns, 1, 0.3, gum.Infinite, "x")
	y := elem(t, ns, 1, 0.3, gum.Infinite, "y")
	r := gum.Sub(x, y)

	lines := New(r).Add(x, y).Lines()
	assert.Equal(t, "x", lines[0].Label)
	assert.Equal(t, "y", lines[1].Label)
	assert.InDelta(t, -0.3, lines[1].Contribution, 1e-15)

	lines = New(r).Add(y, x).Lines()
	assert.Equal(t, "y", lines[0].Label)
}

func TestLines_ZeroUncertaintyInfluence(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	exact := elem(t, ns, 5, 0, gum.Infinite, "exact")
	x := elem(t, ns, 1, 0.1, gum.Infinite, "x")
	r := gum.Mul(exact, x)

	lines := New(r).Add(exact, x).Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "exact", lines[1].Label)
	assert.Equal(t, 0.0, lines[1].Sensitivity)
	assert.Equal(t, 0.0, lines[1].Contribution)
}

func TestAdd_DeduplicatesAndExpands(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	a := elem(t, ns, 1, 0.1, gum.Infinite, "a")
	b := elem(t, ns, 2, 0.1, gum.Infinite, "b")
	sum := gum.Add(a, b)
	r := gum.Mul(sum, a)

	bld := New(r).Add(a, a, gum.WithLabel(a, "a again"), sum, b)
	assert.Equal(t, 2, bld.Len())

	lines := bld.Lines()
	assert.InDelta(t, 0.0, Check(lines, r), 1e-9)
}

func TestCheck_FullBudgetMatchesVariance(t *testing.T) {
	t.Parallel()
	ns := gum.NewNamespace("")
	r0 := elem(t, ns, 1e9, 1e5, gum.Finite(20), "R0")
	alpha := elem(t, ns, 1e-6, 1e-8, gum.Finite(10), "alpha")
	temp := elem(t, ns, 23.5, 0.05, gum.Finite(10), "T")
	tref := elem(t, ns, 23, 0.01, gum.Finite(5), "TRef")
	rd := elem(t, ns, 0.5, 0.01, gum.Finite(8), "Rd")

	dT := gum.Sub(temp, tref)
	r := gum.Add(gum.Mul(r0, gum.Shift(gum.Mul(alpha, dT), 1)), rd)
	// Reuse dT so the same inputs appear along several paths.
	r = gum.Add(r, gum.Scale(dT, 1e3))

	lines := Full(r)
	assert.Len(t, lines, 5)
	assert.Less(t, Check(lines, r), 1e-9)

	partial := New(r).Add(r0).Lines()
	assert.Greater(t, Check(partial, r), 1e-9)
}

func TestCheck_ZeroResult(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, Check(nil, gum.Constant(3)))
	assert.False(t, math.IsNaN(Check(Full(gum.Constant(3)), gum.Constant(3))))
}
