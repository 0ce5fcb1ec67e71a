package model

import (
	"math"
	"slices"
	"time"

	"github.com/sells-group/bridge-cli/internal/gum"
)

// Temperature-sensor kinds that carry no resistive sensor of their own.
const (
	TSensorNone = "none"
	TSensorAny  = "any"
)

// Resistor parameter names as they appear in parameter tables.
const (
	ParamR0LV    = "R0_LV"
	ParamTRefLV  = "TRef_LV"
	ParamVRefLV  = "VRef_LV"
	ParamR0HV    = "R0_HV"
	ParamTRefHV  = "TRef_HV"
	ParamVRefHV  = "VRef_HV"
	ParamAlpha   = "alpha"
	ParamBeta    = "beta"
	ParamGamma   = "gamma"
	ParamDrift   = "drift"
	ParamDate    = "date"
	ParamTSensor = "T_sensor"
)

// ResistorParams lists resistor parameters in table order. T_sensor closes a
// resistor's record.
var ResistorParams = []string{
	ParamR0LV, ParamTRefLV, ParamVRefLV,
	ParamR0HV, ParamTRefHV, ParamVRefHV,
	ParamAlpha, ParamBeta, ParamGamma,
	ParamDate, ParamTSensor,
}

// RequiredParams are the calibration points a reduction cannot do without.
var RequiredParams = []string{
	ParamR0LV, ParamTRefLV, ParamVRefLV,
	ParamR0HV, ParamTRefHV, ParamVRefHV,
}

// ResistorProfile is the calibration record of one resistor.
type ResistorProfile struct {
	Name    string       `json:"name" yaml:"name"`
	R0LV    gum.Quantity `json:"r0_lv" yaml:"r0_lv"`
	TRefLV  gum.Quantity `json:"tref_lv" yaml:"tref_lv"`
	VRefLV  gum.Quantity `json:"vref_lv" yaml:"vref_lv"`
	R0HV    gum.Quantity `json:"r0_hv" yaml:"r0_hv"`
	TRefHV  gum.Quantity `json:"tref_hv" yaml:"tref_hv"`
	VRefHV  gum.Quantity `json:"vref_hv" yaml:"vref_hv"`
	Alpha   gum.Quantity `json:"alpha" yaml:"alpha"`
	Beta    gum.Quantity `json:"beta" yaml:"beta"`
	Gamma   gum.Quantity `json:"gamma" yaml:"gamma"`
	Drift   gum.Quantity `json:"drift,omitempty" yaml:"drift,omitempty"`
	TSensor string       `json:"t_sensor" yaml:"t_sensor"`
	Date    time.Time    `json:"date,omitzero" yaml:"date,omitempty"`
	// Source notes where the profile came from, e.g. the run that characterised it.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// given records the parameters a table loader filled in. nil means the
	// profile was built in code and every parameter counts as given.
	given map[string]bool
}

// TrackParams starts recording which parameters are given. Loaders call it
// before filling a profile from a table.
func (p *ResistorProfile) TrackParams() {
	p.given = make(map[string]bool)
}

// MarkParam records a parameter as given.
func (p *ResistorProfile) MarkParam(name string) {
	if p.given != nil {
		p.given[name] = true
	}
}

// HasParam reports whether a parameter was given.
func (p *ResistorProfile) HasParam(name string) bool {
	return p.given == nil || p.given[name]
}

// Missing returns the required parameters that were not given.
func (p *ResistorProfile) Missing() []string {
	var out []string
	for _, name := range RequiredParams {
		if !p.HasParam(name) {
			out = append(out, name)
		}
	}
	return out
}


// Reference is the calibration point selected for one test voltage.
type Reference struct {
	Level VoltageLevel
	R0    gum.Quantity
	TRef  gum.Quantity
	VRef  gum.Quantity
}

// Reference selects the calibration point whose reference voltage is nearer
// to |v|. A tie selects the low-voltage point.
func (p *ResistorProfile) Reference(v float64) Reference {
	dLV := math.Abs(math.Abs(v) - p.VRefLV.Value)
	dHV := math.Abs(math.Abs(v) - p.VRefHV.Value)
	if dHV < dLV {
		return Reference{Level: LevelHV, R0: p.R0HV, TRef: p.TRefHV, VRef: p.VRefHV}
	}
	return Reference{Level: LevelLV, R0: p.R0LV, TRef: p.TRefLV, VRef: p.VRefLV}
}

// ResistiveSensor returns the name of the resistive temperature sensor
// monitoring this resistor, or "" when there is none.
func (p *ResistorProfile) ResistiveSensor() string {
	switch p.TSensor {
	case "", TSensorNone, TSensorAny:
		return ""
	}
	return p.TSensor
}

// Param returns a numeric resistor parameter by table name. A required
// parameter the loader never saw is reported as absent; the optional
// coefficients default to zero.
func (p *ResistorProfile) Param(name string) (gum.Quantity, bool) {
	if slices.Contains(RequiredParams, name) && !p.HasParam(name) {
		return gum.Quantity{}, false
	}
	switch name {
	case ParamR0LV:
		return p.R0LV, true
	case ParamTRefLV:
		return p.TRefLV, true
	case ParamVRefLV:
		return p.VRefLV, true
	case ParamR0HV:
		return p.R0HV, true
	case ParamTRefHV:
		return p.TRefHV, true
	case ParamVRefHV:
		return p.VRefHV, true
	case ParamAlpha:
		return p.Alpha, true
	case ParamBeta:
		return p.Beta, true
	case ParamGamma:
		return p.Gamma, true
	case ParamDrift:
		return p.Drift, true
	}
	return gum.Quantity{}, false
}

// SetParam sets a numeric resistor parameter by table name. It reports false
// for names that are not numeric resistor parameters.
func (p *ResistorProfile) SetParam(name string, q gum.Quantity) bool {
	switch name {
	case ParamR0LV:
		p.R0LV = q
	case ParamTRefLV:
		p.TRefLV = q
	case ParamVRefLV:
		p.VRefLV = q
	case ParamR0HV:
		p.R0HV = q
	case ParamTRefHV:
		p.TRefHV = q
	case ParamVRefHV:
		p.VRefHV = q
	case ParamAlpha:
		p.Alpha = q
	case ParamBeta:
		p.Beta = q
	case ParamGamma:
		p.Gamma = q
	case ParamDrift:
		p.Drift = q
	default:
		return false
	}
	p.MarkParam(name)
	return true
}

// Instrument roles assigned on the Data sheet.
const (
	RoleDVM12 = "DVM12"
	RoleDVMd  = "DVMd"
	RoleGMH1  = "GMH1"
	RoleGMH2  = "GMH2"
	RoleDVMT1 = "DVMT1"
	RoleDVMT2 = "DVMT2"
)

// Instrument parameter names used by the reduction.
const (
	ParamLinearityPert  = "linearity_pert"
	ParamLinearityVdav  = "linearity_Vdav"
	ParamTCorrection    = "T_correction"
	ParamCorrection100r = "correction_100r"
	ParamCorrection10k  = "correction_10k"
	ParamCorrection100k = "correction_100k"
	// ParamTest closes an instrument's record in a parameter table.
	ParamTest = "test"
)

// InstrumentProfile holds the corrections of one instrument.
type InstrumentProfile struct {
	Description string                  `json:"description" yaml:"description"`
	Params      map[string]gum.Quantity `json:"params" yaml:"params"`
	// Attrs holds the non-numeric entries (address, interface, ...).
	Attrs map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// Param returns a numeric instrument parameter.
func (p *InstrumentProfile) Param(name string) (gum.Quantity, bool) {
	q, ok := p.Params[name]
	return q, ok
}
