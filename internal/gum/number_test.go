package gum

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elem(t *testing.T, ns *Namespace, v, u float64, dof DoF, label string) *Number {
	t.Helper()
	n, err := ns.Elementary(v, u, dof, label)
	require.NoError(t, err)
	return n
}

func TestElementary_RoundTrip(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("run-1")

	tests := []struct {
		name string
		v, u float64
		dof  DoF
	}{
		{"finite", 1.2345e9, 1.7e5, Finite(20)},
		{"infinite", -3.25, 0.01, Infinite},
		{"exact", 7, 0, Finite(4)},
		{"fractional dof", 0.001, 1e-9, Finite(7.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := elem(t, ns, tt.v, tt.u, tt.dof, tt.name)
			assert.Equal(t, tt.v, n.Value())
			assert.Equal(t, tt.u, n.Uncertainty())
			assert.Equal(t, tt.dof, n.DoF())
			assert.Equal(t, tt.name, n.Label())
			assert.True(t, n.IsElementary())
			assert.Same(t, ns, n.Namespace())
		})
	}
}

func TestElementary_Rejects(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")

	_, err := ns.Elementary(1, -0.1, Infinite, "neg")
	assert.ErrorIs(t, err, ErrInvalidUncertainty)

	_, err = ns.Elementary(1, math.NaN(), Infinite, "nan")
	assert.ErrorIs(t, err, ErrInvalidUncertainty)

	_, err = ns.Elementary(1, 0.1, Finite(0), "zero dof")
	assert.ErrorIs(t, err, ErrInvalidDoF)
}

func TestSensitivity_SelfAndForeign(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 2, 0.1, Finite(5), "x")
	y := elem(t, ns, 3, 0.2, Finite(5), "y")
	z := elem(t, ns, 4, 0.3, Finite(5), "z")

	assert.Equal(t, 1.0, Sensitivity(x, x))
	assert.Equal(t, 0.0, Sensitivity(x, y))

	p := Mul(x, y)
	assert.InDelta(t, 3.0, Sensitivity(p, x), 1e-15)
	assert.InDelta(t, 2.0, Sensitivity(p, y), 1e-15)
	assert.Equal(t, 0.0, Sensitivity(p, z))
	assert.Equal(t, 0.0, Sensitivity(p, p), "derived nodes are not inputs")
}

func TestConstant(t *testing.T) {
	t.Parallel()
	c := Constant(42)
	assert.Equal(t, 42.0, c.Value())
	assert.Equal(t, 0.0, c.Uncertainty())
	assert.True(t, c.DoF().IsInf())
	assert.False(t, c.IsElementary())
	assert.Empty(t, Ancestors(c))
}

func TestAdd_SharedAncestorIsSummedOnce(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 1, 0.5, Infinite, "x")

	twoX := Add(x, x)
	assert.Equal(t, 2.0, twoX.Value())
	assert.InDelta(t, 2.0, Sensitivity(twoX, x), 1e-15)
	assert.InDelta(t, 1.0, twoX.Uncertainty(), 1e-15)
	assert.Len(t, Ancestors(twoX), 1)

	zero := Sub(x, x)
	assert.Equal(t, 0.0, zero.Uncertainty())
	assert.Len(t, Ancestors(zero), 1, "cancelled ancestor must still be tracked")
}

func TestAdd_VarianceWithCovariance(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 10, 0.3, Finite(9), "x")
	y := elem(t, ns, 4, 0.2, Finite(12), "y")
	z := elem(t, ns, -2, 0.4, Infinite, "z")

	a := Mul(x, y)
	b, err := Div(x, z)
	require.NoError(t, err)
	c := Add(y, z)

	for _, pair := range [][2]*Number{{a, b}, {a, c}, {b, c}, {a, a}} {
		s := Add(pair[0], pair[1])
		want := pair[0].Uncertainty()*pair[0].Uncertainty() +
			pair[1].Uncertainty()*pair[1].Uncertainty() +
			2*Covariance(pair[0], pair[1])
		got := s.Uncertainty() * s.Uncertainty()
		assert.InEpsilon(t, want, got, 1e-12)
	}
}

func TestCovariance_Independent(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 1, 0.1, Infinite, "x")
	y := elem(t, ns, 2, 0.2, Infinite, "y")
	assert.Equal(t, 0.0, Covariance(Scale(x, 3), Shift(y, 1)))
	assert.Equal(t, 0.0, Correlation(x, Constant(1)))
}

func TestCorrelation_Identical(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 1, 0.1, Infinite, "x")
	assert.InDelta(t, 1.0, Correlation(Scale(x, 2), x), 1e-12)
	assert.InDelta(t, -1.0, Correlation(Neg(x), x), 1e-12)
}

func TestDoF_WelchSatterthwaite(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 1, 1, Finite(4), "x")
	y := elem(t, ns, 1, 1, Finite(4), "y")

	// Two equal terms: (2)^2 / (1/4 + 1/4) = 8.
	s := Add(x, y)
	assert.InDelta(t, 8.0, s.DoF().Float(), 1e-12)
	assert.False(t, s.DoF().IsInf())
}

func TestDoF_InfiniteIffAllContributingInfinite(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	inf1 := elem(t, ns, 1, 0.2, Infinite, "inf1")
	inf2 := elem(t, ns, 1, 0.3, Infinite, "inf2")
	finExact := elem(t, ns, 1, 0, Finite(3), "exact finite")
	fin := elem(t, ns, 1, 1e-6, Finite(3), "tiny finite")

	assert.True(t, Add(inf1, inf2).DoF().IsInf())
	assert.True(t, Add(inf1, finExact).DoF().IsInf(), "zero-weight finite term does not count")
	assert.False(t, Add(inf1, fin).DoF().IsInf(), "any contributing finite term makes dof finite")
	assert.True(t, Constant(3).DoF().IsInf())
	assert.True(t, Scale(fin, 0).DoF().IsInf(), "zero variance is infinite")
}

func TestDiv_ByZero(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 1, 0.1, Infinite, "x")
	zero := elem(t, ns, 0, 0.1, Infinite, "I")

	_, err := Div(x, zero)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "div", de.Op)
	assert.Equal(t, "I", de.Label)
}

func TestSqrt(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 4, 0.4, Finite(10), "x")

	r, err := Sqrt(x)
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.Value())
	assert.InDelta(t, 0.25, Sensitivity(r, x), 1e-15)
	assert.InDelta(t, 0.1, r.Uncertainty(), 1e-15)

	neg := elem(t, ns, -1, 0.1, Infinite, "neg")
	_, err = Sqrt(neg)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "sqrt", de.Op)

	z, err := Sqrt(Constant(0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, z.Value())
	assert.Equal(t, 0.0, z.Uncertainty())

	fuzzyZero := elem(t, ns, 0, 0.1, Infinite, "z")
	_, err = Sqrt(fuzzyZero)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 0.0, de.Value)
}

func TestPow(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 3, 0.1, Infinite, "x")

	sq, err := PowConst(x, 2)
	require.NoError(t, err)
	assert.Equal(t, 9.0, sq.Value())
	assert.InDelta(t, 6.0, Sensitivity(sq, x), 1e-12)

	e := elem(t, ns, 2, 0.01, Infinite, "e")
	p, err := Pow(x, e)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, p.Value(), 1e-12)
	assert.InDelta(t, 6.0, Sensitivity(p, x), 1e-12)
	assert.InDelta(t, 9*math.Log(3), Sensitivity(p, e), 1e-12)

	_, err = Pow(Neg(x), e)
	assert.Error(t, err)
}

func TestAbs(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, -2, 0.1, Infinite, "x")
	a := Abs(x)
	assert.Equal(t, 2.0, a.Value())
	assert.Equal(t, -1.0, Sensitivity(a, x))
	assert.InDelta(t, 0.1, a.Uncertainty(), 1e-15)
}

func TestOperations_DoNotMutateOperands(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 5, 0.5, Finite(8), "x")
	y := elem(t, ns, 2, 0.1, Finite(3), "y")
	xp := len(x.partials)

	_ = Add(x, y)
	_ = Mul(x, y)
	_, _ = Div(x, y)
	_ = LinearCombination([]float64{2, 3}, []*Number{x, y})

	assert.Equal(t, xp, len(x.partials))
	assert.Equal(t, 5.0, x.Value())
	assert.Equal(t, 0.5, x.Uncertainty())
	assert.Equal(t, 1.0, Sensitivity(x, x))
}

func TestLinearCombination_AndMean(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 1, 0.3, Infinite, "x")
	y := elem(t, ns, 3, 0.4, Infinite, "y")

	m := Mean([]*Number{x, y})
	assert.Equal(t, 2.0, m.Value())
	assert.InDelta(t, 0.25, m.Uncertainty(), 1e-15)

	lc := LinearCombination([]float64{1, 1, -1}, []*Number{x, y, x})
	assert.Equal(t, 3.0, lc.Value())
	assert.Equal(t, 0.0, Sensitivity(lc, x))
	assert.InDelta(t, 0.4, lc.Uncertainty(), 1e-15)

	assert.Equal(t, 0.0, Sum().Value())
}

func TestWithLabel_KeepsIdentity(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 1, 0.3, Infinite, "x")
	r := WithLabel(x, "renamed")
	assert.Equal(t, "renamed", r.Label())
	assert.True(t, SameInput(x, r))
	assert.Equal(t, 1.0, Sensitivity(Scale(x, 1), r))
	assert.Equal(t, "x", x.Label())
}

func TestNamespace_Label(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "V1_0 R42", NewNamespace("R42").Label("V1_0"))
	assert.Equal(t, "V1_0", NewNamespace("").Label("V1_0"))
	assert.NotEqual(t, NewNamespace("a").ID(), NewNamespace("a").ID())
}

func TestNewAnonymousNamespace(t *testing.T) {
	t.Parallel()
	a, b := NewAnonymousNamespace(), NewAnonymousNamespace()
	assert.Equal(t, a.ID()[:8], a.Tag())
	assert.Equal(t, "V1_0 "+a.ID()[:8], a.Label("V1_0"))
	assert.NotEqual(t, a.Label("V1_0"), b.Label("V1_0"))

	x, err := a.Elementary(1, 0.1, Infinite, a.Label("x"))
	require.NoError(t, err)
	assert.Same(t, a, x.Namespace())
}

func TestAncestors_CreationOrder(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	a := elem(t, ns, 1, 0.1, Infinite, "a")
	b := elem(t, ns, 1, 0.1, Infinite, "b")
	c := elem(t, ns, 1, 0.1, Infinite, "c")
	got := Ancestors(Add(Mul(c, a), b))
	require.Len(t, got, 3)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
	assert.Same(t, c, got[2])
}

func TestNumber_MarshalJSON(t *testing.T) {
	t.Parallel()
	ns := NewNamespace("")
	x := elem(t, ns, 1.5, 0.25, Finite(6), "x")

	b, err := json.Marshal(x)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":1.5,"uncert":0.25,"dof":6,"label":"x"}`, string(b))

	var q Quantity
	require.NoError(t, json.Unmarshal(b, &q))
	assert.Equal(t, QuantityOf(x), q)
}
