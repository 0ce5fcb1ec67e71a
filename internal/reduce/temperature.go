package reduce

import (
	"github.com/sells-group/bridge-cli/internal/gum"
	"github.com/sells-group/bridge-cli/internal/model"
)

// RToT converts a resistive-sensor reading r to a temperature, inverting
// r/r0 = 1 + α(T−t0) + β(T−t0)².
func RToT(alpha, beta, r, r0, t0 *gum.Number) (*gum.Number, error) {
	ratio, err := gum.Div(r, r0)
	if err != nil {
		return nil, err
	}
	if beta.Value() == 0 {
		x, err := gum.Div(gum.Shift(ratio, -1), alpha)
		if err != nil {
			return nil, err
		}
		return gum.Add(x, t0), nil
	}

	// βT² + bT + c = 0
	b := gum.Sub(alpha, gum.Scale(gum.Mul(beta, t0), 2))
	c := gum.Sub(
		gum.Add(gum.Shift(gum.Neg(gum.Mul(alpha, t0)), 1), gum.Mul(beta, gum.Mul(t0, t0))),
		ratio,
	)
	disc := gum.Sub(gum.Mul(b, b), gum.Scale(gum.Mul(beta, c), 4))
	root, err := gum.Sqrt(disc)
	if err != nil {
		return nil, err
	}
	return gum.Div(gum.Sub(root, b), gum.Scale(beta, 2))
}

// sensorCorrectionParam selects the DVM resistance-range correction for a
// raw reading.
func sensorCorrectionParam(raw float64) string {
	switch {
	case raw < 120:
		return model.ParamCorrection100r
	case raw < 12e3:
		return model.ParamCorrection10k
	}
	return model.ParamCorrection100k
}
