// Package fit fits straight lines to uncertain data.
package fit

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bridge-cli/internal/gum"
)

var (
	// ErrNoData is returned for an empty data set.
	ErrNoData = eris.New("fit: no data")
	// ErrLengthMismatch is returned when x and y differ in length.
	ErrLengthMismatch = eris.New("fit: x and y lengths differ")
	// ErrZeroWeight is returned when a y value with zero uncertainty is
	// combined with others; its weight would be infinite.
	ErrZeroWeight = eris.New("fit: y value has zero uncertainty")
)

// Line is the result of a straight-line fit y = Intercept + Slope·x.
type Line struct {
	Intercept *gum.Number
	Slope     *gum.Number
	// Degenerate is set when x has no spread and Intercept is the weighted
	// mean of y.
	Degenerate bool
	N          int
}

// LineWLS fits y = a + b·x by weighted least squares with weights 1/u(y)².
// The uncertainty of x is taken to be negligible.
//
// a and b are returned as linear combinations of the ys, so their
// uncertainties, degrees of freedom and correlations with any input shared by
// the ys are propagated rather than estimated from residuals.
func LineWLS(xs []float64, ys []*gum.Number) (Line, error) {
	if len(xs) != len(ys) {
		return Line{}, eris.Wrapf(ErrLengthMismatch, "%d x, %d y", len(xs), len(ys))
	}
	if len(ys) == 0 {
		return Line{}, ErrNoData
	}
	if len(ys) == 1 {
		return Line{Intercept: ys[0], Slope: gum.Constant(0), Degenerate: true, N: 1}, nil
	}

	w, err := weights(ys)
	if err != nil {
		return Line{}, err
	}

	if !hasSpread(xs) {
		return Line{Intercept: weightedMean(w, ys), Slope: gum.Constant(0), Degenerate: true, N: len(ys)}, nil
	}

	var s, sx, sxx float64
	for k, x := range xs {
		s += w[k]
		sx += w[k] * x
		sxx += w[k] * x * x
	}
	det := s*sxx - sx*sx
	if det <= 0 {
		return Line{Intercept: weightedMean(w, ys), Slope: gum.Constant(0), Degenerate: true, N: len(ys)}, nil
	}

	a := make([]float64, len(ys))
	b := make([]float64, len(ys))
	for k, x := range xs {
		a[k] = w[k] * (sxx - sx*x) / det
		b[k] = w[k] * (s*x - sx) / det
	}
	return Line{
		Intercept: gum.LinearCombination(a, ys),
		Slope:     gum.LinearCombination(b, ys),
		N:         len(ys),
	}, nil
}

// WeightedMean returns Σ w_k·y_k / Σ w_k with w_k = 1/u(y_k)².
func WeightedMean(ys []*gum.Number) (*gum.Number, error) {
	if len(ys) == 0 {
		return nil, ErrNoData
	}
	if len(ys) == 1 {
		return ys[0], nil
	}
	w, err := weights(ys)
	if err != nil {
		return nil, err
	}
	return weightedMean(w, ys), nil
}

func weights(ys []*gum.Number) ([]float64, error) {
	w := make([]float64, len(ys))
	for k, y := range ys {
		u := y.Uncertainty()
		if u == 0 {
			return nil, eris.Wrapf(ErrZeroWeight, "point %d (%s)", k, y.Label())
		}
		w[k] = 1 / (u * u)
	}
	return w, nil
}

func weightedMean(w []float64, ys []*gum.Number) *gum.Number {
	var s float64
	for _, wk := range w {
		s += wk
	}
	c := make([]float64, len(w))
	for k, wk := range w {
		c[k] = wk / s
	}
	return gum.LinearCombination(c, ys)
}

func hasSpread(xs []float64) bool {
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	scale := math.Max(math.Abs(lo), math.Abs(hi))
	return hi-lo > 1e-12*math.Max(scale, 1)
}
