package reduce

import (
	"github.com/sells-group/bridge-cli/internal/config"
	"github.com/sells-group/bridge-cli/internal/gum"
	"github.com/sells-group/bridge-cli/internal/model"
)

// Tolerance holds the fractional plausibility limits of a reduction.
type Tolerance struct {
	R1   float64
	R2   float64
	Gain float64
}

// Options configures a Reducer.
type Options struct {
	Tolerance Tolerance
	// RlinkMax is the largest acceptable link resistance, in ohms.
	RlinkMax float64
	// TDefU and TDefDoF describe the probe-positioning term T_def.
	TDefU   float64
	TDefDoF float64
	// TDefDiffDoF is the dof of the probe-disagreement part of T_def1/T_def2.
	TDefDiffDoF float64
	// Digitization is the resolution of the temperature probes, in °C.
	Digitization float64
	// NominalRelU and NominalDoF describe the nominal values on the Rlink sheet.
	NominalRelU float64
	NominalDoF  float64
	DriftDoF    float64
	Coverage    float64
	// RangeMode overrides the range mode recorded with the run.
	RangeMode    model.RangeMode
	UseSensorDVM bool
}

// DefaultOptions returns the options used by the bridge software.
func DefaultOptions() Options {
	return Options{
		Tolerance:    Tolerance{R1: 1, R2: 2e-2, Gain: 0.01},
		RlinkMax:     2000,
		TDefU:        0.01,
		TDefDoF:      3,
		TDefDiffDoF:  7,
		Digitization: 0.01,
		NominalRelU:  1e-4,
		NominalDoF:   8,
		DriftDoF:     8,
		Coverage:     gum.DefaultCoverage,
	}
}

// OptionsFrom builds Options from the analysis configuration. Zero values
// keep their defaults.
func OptionsFrom(cfg config.AnalysisConfig) (Options, error) {
	o := DefaultOptions()
	setPos := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	setPos(&o.Tolerance.R1, cfg.Tolerance.R1)
	setPos(&o.Tolerance.R2, cfg.Tolerance.R2)
	setPos(&o.Tolerance.Gain, cfg.Tolerance.Gain)
	setPos(&o.RlinkMax, cfg.RlinkMax)
	setPos(&o.TDefU, cfg.TDefU)
	setPos(&o.TDefDoF, cfg.TDefDoF)
	setPos(&o.Digitization, cfg.Digitization)
	setPos(&o.NominalRelU, cfg.NominalRelU)
	setPos(&o.NominalDoF, cfg.NominalDoF)
	setPos(&o.DriftDoF, cfg.DriftDoF)
	setPos(&o.Coverage, cfg.CoverageProbability)
	o.UseSensorDVM = cfg.UseSensorDVM
	if cfg.RangeMode != "" {
		m, err := model.ParseRangeMode(cfg.RangeMode)
		if err != nil {
			return o, err
		}
		o.RangeMode = m
	}
	return o, nil
}
