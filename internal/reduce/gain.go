package reduce

import (
	"math"

	"github.com/sells-group/bridge-cli/internal/model"
)

// Gain codes of the ratio DVM, keyed by the decade of the applied voltage.
var (
	gainCodesAuto = map[int]string{
		-1: "Vgain_0.1r0.1",
		0:  "Vgain_1r1",
		1:  "Vgain_10r10",
		2:  "Vgain_100r100",
	}
	gainCodesFixed = map[int]string{
		-1: "Vgain_0.5r1",
		0:  "Vgain_1r10",
		1:  "Vgain_10r100",
		2:  "Vgain_100r100",
	}
)

// decade returns the power of ten nearest to |v|.
func decade(v float64) int {
	return int(math.Round(math.Log10(math.Abs(v))))
}

// GainCodes returns the gain-correction codes applied to the V1 and V2
// readings. In FIXED mode the larger setting is read on its auto range and
// the smaller on the range fixed by the larger.
func GainCodes(mode model.RangeMode, v1Set, v2Set float64) (g1, g2 string, ok bool) {
	d1, d2 := decade(v1Set), decade(v2Set)
	t1, t2 := gainCodesAuto, gainCodesAuto
	if mode == model.RangeFixed {
		if math.Round(v1Set) >= math.Round(math.Abs(v2Set)) {
			t2 = gainCodesFixed
		} else {
			t1 = gainCodesFixed
		}
	}
	g1, ok1 := t1[d1]
	g2, ok2 := t2[d2]
	return g1, g2, ok1 && ok2
}
