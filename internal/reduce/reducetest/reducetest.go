// Package reducetest provides a simulated bridge run and the profile tables
// it needs.
package reducetest

import (
	"time"

	"github.com/sells-group/bridge-cli/internal/gum"
	"github.com/sells-group/bridge-cli/internal/model"
	"github.com/sells-group/bridge-cli/internal/profile"
)

const (
	Comment = "R1: HRC 1G monitored by GMH1, R2: Std 1G monitored by GMH2"
	// R2Actual is the standard's value including the 0.5 Ω link.
	R2Actual = 1e9 + 0.5
)

// Q is a quantity with infinite degrees of freedom.
func Q(v, u float64) gum.Quantity { return gum.Quantity{Value: v, Uncertainty: u} }

// Tables holds the standard, a Pt100 sensor and every instrument a run
// references.
func Tables() *profile.Tables {
	t := profile.NewTables()
	t.AddResistor(&model.ResistorProfile{
		Name:    "Std 1G",
		R0LV:    gum.Quantity{Value: 1e9, Uncertainty: 1e3, DoF: gum.Finite(20)},
		TRefLV:  Q(20.5, 0.01),
		VRefLV:  Q(10, 0),
		R0HV:    gum.Quantity{Value: 1e9, Uncertainty: 1e3, DoF: gum.Finite(20)},
		TRefHV:  Q(20.5, 0.01),
		VRefHV:  Q(100, 0),
		Alpha:   Q(0, 1e-7),
		Beta:    Q(0, 0),
		Gamma:   Q(0, 1e-9),
		TSensor: model.TSensorNone,
	})
	t.AddResistor(&model.ResistorProfile{
		Name:    "Pt 100r",
		R0LV:    Q(100, 1e-4),
		TRefLV:  Q(0, 0),
		Alpha:   Q(3.9e-3, 1e-6),
		Beta:    Q(0, 0),
		TSensor: model.TSensorNone,
	})
	t.AddInstrument(&model.InstrumentProfile{Description: "DVM A", Params: map[string]gum.Quantity{
		"Vgain_1r1":     Q(1, 1e-6),
		"Vgain_10r10":   Q(1, 1e-6),
		"Vgain_100r100": Q(1, 1e-6),
	}})
	t.AddInstrument(&model.InstrumentProfile{Description: "DVM B", Params: map[string]gum.Quantity{
		model.ParamLinearityPert: {Value: 0, Uncertainty: 1e-9, DoF: gum.Finite(8)},
		model.ParamLinearityVdav: {Value: 0, Uncertainty: 1e-9, DoF: gum.Finite(8)},
	}})
	for _, d := range []string{"GMH 1", "GMH 2"} {
		t.AddInstrument(&model.InstrumentProfile{Description: d, Params: map[string]gum.Quantity{
			model.ParamTCorrection: Q(0, 0.01),
		}})
	}
	for _, d := range []string{"DVM C", "DVM D"} {
		t.AddInstrument(&model.InstrumentProfile{Description: d, Params: map[string]gum.Quantity{
			model.ParamCorrection100r: Q(0, 1e-6),
			model.ParamCorrection10k:  Q(0, 1e-6),
			model.ParamCorrection100k: Q(0, 1e-6),
		}})
	}
	return t
}

// Block simulates a block on a bridge whose detector reads
// (V1·R2 + V2·R1)/(R1+R2), so the reduction recovers R1 = rho·R2.
func Block(index int, v, rho float64) model.Block {
	r1 := rho * R2Actual
	s := r1 / (r1 + R2Actual)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(index) * time.Hour)
	settings := [][2]float64{{v, -v}, {-v, v}, {v, -v}, {v, -v * 1.001}}
	gmh := []float64{20.50, 20.51, 20.50, 20.51}

	b := model.Block{Index: index}
	for i, set := range settings {
		v1, v2 := set[0], set[1]
		ts := t0.Add(time.Duration(i) * time.Minute)
		b.Rows = append(b.Rows, model.Row{
			V1Set:  model.F(v1),
			V2Set:  model.F(-v),
			N:      model.F(20),
			V1:     model.F(v1),
			V1SD:   model.F(1e-6),
			V2:     model.F(v2),
			V2SD:   model.F(1e-6),
			Vd:     model.F(v1*(1-s) + v2*s),
			VdSD:   model.F(1e-8),
			GMH1:   model.F(gmh[i]),
			GMH2:   model.F(gmh[i]),
			DVMT1:  model.F(100 * (1 + 3.9e-3*20.6)),
			DVMT2:  model.F(100 * (1 + 3.9e-3*20.6)),
			TimeV2: model.T(ts),
			TimeVd: model.T(ts.Add(10 * time.Second)),
			TimeV1: model.T(ts.Add(20 * time.Second)),
		})
	}
	return b
}

// Run is a two-level run of HRC 1G against Std 1G with R1 = rho·R2.
func Run(rho float64) *model.RunInput {
	return &model.RunInput{
		RunID:     "run-1",
		Source:    "test.xlsx",
		Comment:   Comment,
		RangeMode: model.RangeAuto,
		Roles: map[string]string{
			model.RoleDVM12: "DVM A",
			model.RoleDVMd:  "DVM B",
			model.RoleGMH1:  "GMH 1",
			model.RoleGMH2:  "GMH 2",
			model.RoleDVMT1: "DVM C",
			model.RoleDVMT2: "DVM D",
		},
		Blocks: []model.Block{Block(0, 10, rho), Block(1, 100, rho)},
		Link: &model.LinkData{
			NomR1: 1e9, NomR2: 1e9, AbsV1: 10, AbsV2: 10,
			Vp: []float64{5e-9, 5.2e-9, 4.8e-9},
			Vn: []float64{-5e-9, -5.2e-9, -4.8e-9},
		},
	}
}
