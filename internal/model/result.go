package model

import (
	"time"

	"github.com/sells-group/bridge-cli/internal/budget"
	"github.com/sells-group/bridge-cli/internal/gum"
)

// Result is one corrected resistance measurement, produced per block.
type Result struct {
	Block int
	Name  string
	Level VoltageLevel
	Time  time.Time
	R     *gum.Number
	// T is the reported temperature of the resistor, T1 + T_def1.
	T *gum.Number
	// TProbe is the probe average without the definition term; summaries
	// fit against it and add the definition once.
	TProbe    *gum.Number
	V         *gum.Number
	ExpandedU float64
	K         float64
	Budget    []budget.Line
}

// Row snapshots r for persistence.
func (r *Result) Row(runID string) ResultRow {
	return ResultRow{
		RunID:     runID,
		Block:     r.Block,
		Name:      r.Name,
		Level:     r.Level,
		Time:      r.Time,
		R:         gum.QuantityOf(r.R),
		T:         gum.QuantityOf(r.T),
		V:         gum.QuantityOf(r.V),
		ExpandedU: r.ExpandedU,
		K:         r.K,
		Budget:    r.Budget,
	}
}

// ResultRow is the persisted form of a Result.
type ResultRow struct {
	RunID     string        `json:"run_id"`
	Block     int           `json:"block"`
	Name      string        `json:"name"`
	Level     VoltageLevel  `json:"level"`
	Time      time.Time     `json:"time"`
	R         gum.Quantity  `json:"r"`
	T         gum.Quantity  `json:"t"`
	V         gum.Quantity  `json:"v"`
	ExpandedU float64       `json:"expanded_u"`
	K         float64       `json:"k"`
	Budget    []budget.Line `json:"budget,omitempty"`
}

// Summary is the combination of all results of one voltage level.
type Summary struct {
	Level VoltageLevel
	N     int
	// Fitted is false when the temperatures did not vary and R is a plain mean.
	Fitted    bool
	R         *gum.Number
	Slope     *gum.Number // Ω/°C
	T         *gum.Number
	V         *gum.Number
	Time      time.Time
	ExpandedU float64
	K         float64
	TExpanded float64
	TK        float64
	VExpanded float64
	VK        float64
	CMCppm    float64
	CMCOhm    float64
}

// Row snapshots s for persistence.
func (s *Summary) Row(runID string) SummaryRow {
	return SummaryRow{
		RunID:     runID,
		Level:     s.Level,
		N:         s.N,
		Fitted:    s.Fitted,
		R:         gum.QuantityOf(s.R),
		Slope:     gum.QuantityOf(s.Slope),
		T:         gum.QuantityOf(s.T),
		V:         gum.QuantityOf(s.V),
		Time:      s.Time,
		ExpandedU: s.ExpandedU,
		K:         s.K,
		TExpanded: s.TExpanded,
		VExpanded: s.VExpanded,
		CMCppm:    s.CMCppm,
		CMCOhm:    s.CMCOhm,
	}
}

// SummaryRow is the persisted form of a Summary.
type SummaryRow struct {
	RunID     string       `json:"run_id"`
	Level     VoltageLevel `json:"level"`
	N         int          `json:"n"`
	Fitted    bool         `json:"fitted"`
	R         gum.Quantity `json:"r"`
	Slope     gum.Quantity `json:"slope"`
	T         gum.Quantity `json:"t"`
	V         gum.Quantity `json:"v"`
	Time      time.Time    `json:"time"`
	ExpandedU float64      `json:"expanded_u"`
	K         float64      `json:"k"`
	TExpanded float64      `json:"t_expanded"`
	VExpanded float64      `json:"v_expanded"`
	CMCppm    float64      `json:"cmc_ppm"`
	CMCOhm    float64      `json:"cmc_ohm"`
}

// Coefficients are the temperature and voltage coefficients of the resistor
// under test.
type Coefficients struct {
	Alpha *gum.Number // /°C
	Beta  *gum.Number // /°C²
	Gamma *gum.Number // /V
}

// Quantities snapshots c for persistence.
func (c *Coefficients) Quantities() CoefficientsRow {
	return CoefficientsRow{
		Alpha: gum.QuantityOf(c.Alpha),
		Beta:  gum.QuantityOf(c.Beta),
		Gamma: gum.QuantityOf(c.Gamma),
	}
}

// CoefficientsRow is the persisted form of Coefficients.
type CoefficientsRow struct {
	Alpha gum.Quantity `json:"alpha"`
	Beta  gum.Quantity `json:"beta"`
	Gamma gum.Quantity `json:"gamma"`
}
