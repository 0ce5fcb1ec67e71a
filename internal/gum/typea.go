package gum

import (
	"math"

	"github.com/rotisserie/eris"
)

// ErrTooFewSamples is returned by the Type-A estimators for fewer than two
// observations.
var ErrTooFewSamples = eris.New("gum: at least two samples are required")

// Estimate returns an elementary input whose value is the sample mean, whose
// uncertainty is the standard deviation of the mean, and whose degrees of
// freedom are n-1.
func (ns *Namespace) Estimate(samples []float64, label string) (*Number, error) {
	n := len(samples)
	if n < 2 {
		return nil, eris.Wrapf(ErrTooFewSamples, "%s: got %d", label, n)
	}
	mean, sd := meanSD(samples)
	return ns.Elementary(mean, sd/math.Sqrt(float64(n)), Finite(float64(n-1)), label)
}

// EstimateDigitized is Estimate for readings quantised to step digit. The
// rounding error of a single reading, digit/√12, is a lower bound on the
// standard uncertainty: averaging readings that all round to the same digit
// does not resolve below it. The result is max(s/√n, digit/√12). The two
// terms are not added in quadrature, so a scatter well above the
// resolution is reported unchanged.
func (ns *Namespace) EstimateDigitized(samples []float64, digit float64, label string) (*Number, error) {
	n := len(samples)
	if n < 2 {
		return nil, eris.Wrapf(ErrTooFewSamples, "%s: got %d", label, n)
	}
	if digit < 0 {
		return nil, eris.Errorf("gum: %s: negative digitization step %v", label, digit)
	}
	mean, sd := meanSD(samples)
	u := sd / math.Sqrt(float64(n))
	if floor := digit / math.Sqrt(12); u < floor {
		u = floor
	}
	return ns.Elementary(mean, u, Finite(float64(n-1)), label)
}

func meanSD(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
