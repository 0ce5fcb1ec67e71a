package store

import (
	"time"

	"github.com/sells-group/bridge-cli/internal/budget"
	"github.com/sells-group/bridge-cli/internal/gum"
	"github.com/sells-group/bridge-cli/internal/model"
)

var testTime = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)

func q(v, u float64, label string) gum.Quantity {
	return gum.Quantity{Value: v, Uncertainty: u, DoF: gum.Finite(12), Label: label}
}

func sampleOutput() *RunOutput {
	return &RunOutput{
		R1Name: "HRC 1G",
		R2Name: "Std 1G",
		Outcomes: []model.BlockOutcome{
			{Index: 0, Status: model.BlockStatusOK},
			{Index: 1, Status: model.BlockStatusExcluded, Reason: "R1 out of tolerance"},
		},
		Results: []model.ResultRow{
			{
				Block:     0,
				Name:      "HRC 1G",
				Level:     model.LevelLV,
				Time:      testTime,
				R:         q(1.0000005e9, 120, "R1"),
				T:         q(20.5, 0.01, "T1"),
				V:         q(10, 0.001, "V1av"),
				ExpandedU: 250,
				K:         2.1,
				Budget: []budget.Line{
					{Label: "R0_LV", Value: 1e9, Uncertainty: 1e3, DoF: gum.Finite(20), Sensitivity: 1, Contribution: 1e3},
					{Label: "Vd_0", Value: 1e-6, Uncertainty: 1e-8, DoF: gum.Infinite, Sensitivity: 5, Contribution: 5e-8},
				},
			},
		},
		Summaries: []model.SummaryRow{
			{Level: model.LevelLV, N: 1, R: q(1.0000005e9, 130, "R1_LV"), ExpandedU: 270, K: 2.1, Time: testTime},
		},
		Coefficients: &model.CoefficientsRow{
			Alpha: q(1e-6, 1e-7, "alpha"),
			Beta:  q(0, 0, "beta"),
			Gamma: q(0, 0, "gamma"),
		},
	}
}

func sampleProfile(name string) *model.ResistorProfile {
	return &model.ResistorProfile{
		Name:    name,
		R0LV:    q(1e9, 1e3, name+" R0_LV"),
		TRefLV:  q(20.5, 0.01, name+" TRef_LV"),
		VRefLV:  q(10, 0, name+" VRef_LV"),
		R0HV:    q(1e9, 1e3, name+" R0_HV"),
		TRefHV:  q(20.5, 0.01, name+" TRef_HV"),
		VRefHV:  q(100, 0, name+" VRef_HV"),
		TSensor: model.TSensorNone,
		Date:    testTime,
		Source:  "run-1",
	}
}
