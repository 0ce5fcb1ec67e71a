package model

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// TimeLayout is the timestamp format written by the bridge software.
const TimeLayout = "02/01/2006 15:04:05"

// VoltageLevel is the low/high test-voltage condition of a result.
type VoltageLevel string

const (
	LevelLV VoltageLevel = "LV"
	LevelHV VoltageLevel = "HV"
)

// RangeMode is the DVM range mode used for the ratio measurement.
type RangeMode string

const (
	RangeAuto  RangeMode = "AUTO"
	RangeFixed RangeMode = "FIXED"
)

// ParseRangeMode accepts any string containing AUTO or FIXED, case-insensitively.
func ParseRangeMode(s string) (RangeMode, error) {
	u := strings.ToUpper(s)
	switch {
	case strings.Contains(u, string(RangeAuto)):
		return RangeAuto, nil
	case strings.Contains(u, string(RangeFixed)):
		return RangeFixed, nil
	}
	return "", eris.Errorf("model: unknown range mode %q", s)
}

// BlockRows is the number of rows the reduction formula consumes per block.
const BlockRows = 4

// Row is one line of raw readings. Missing cells are nil.
type Row struct {
	V1Set *float64 `json:"v1_set,omitempty"`
	V2Set *float64 `json:"v2_set,omitempty"`
	// N is the number of samples averaged into each reading.
	N     *float64 `json:"n,omitempty"`
	V1    *float64 `json:"v1,omitempty"`
	V1SD  *float64 `json:"v1_sd,omitempty"`
	V2    *float64 `json:"v2,omitempty"`
	V2SD  *float64 `json:"v2_sd,omitempty"`
	Vd    *float64 `json:"vd,omitempty"`
	VdSD  *float64 `json:"vd_sd,omitempty"`
	GMH1  *float64 `json:"gmh1,omitempty"`
	GMH2  *float64 `json:"gmh2,omitempty"`
	DVMT1 *float64 `json:"dvmt1,omitempty"`
	DVMT2 *float64 `json:"dvmt2,omitempty"`

	TimeV2 *time.Time `json:"time_v2,omitempty"`
	TimeVd *time.Time `json:"time_vd,omitempty"`
	TimeV1 *time.Time `json:"time_v1,omitempty"`
}

// F returns a pointer to v.
func F(v float64) *float64 { return &v }

// T returns a pointer to t.
func T(t time.Time) *time.Time { return &t }

// Block is one reversal/perturbation group of rows: +V, -V, +V, then +V with
// V2 perturbed. Six-row blocks carry two extra rows of timing and
// temperature data.
type Block struct {
	Index int `json:"index"`
	// SourceRow is the first sheet row of the block, 1-based; 0 when unknown.
	SourceRow int   `json:"source_row,omitempty"`
	Rows      []Row `json:"rows"`
}

// LinkData is the link-resistance measurement recorded for a run.
type LinkData struct {
	NomR1 float64   `json:"nom_r1"`
	NomR2 float64   `json:"nom_r2"`
	AbsV1 float64   `json:"abs_v1"`
	AbsV2 float64   `json:"abs_v2"`
	Vp    []float64 `json:"vp"`
	Vn    []float64 `json:"vn"`
}

// RunInput is everything needed to reduce one run.
type RunInput struct {
	RunID     string            `json:"run_id"`
	Source    string            `json:"source,omitempty"`
	Comment   string            `json:"comment"`
	RangeMode RangeMode         `json:"range_mode"`
	Roles     map[string]string `json:"roles"` // role -> instrument description
	Blocks    []Block           `json:"blocks"`
	Link      *LinkData         `json:"link,omitempty"`
}

// Levels returns the run's LV and HV test voltages, from |V1set| of the
// first row of the first two blocks. With a single block both are equal.
func (in *RunInput) Levels() (lv, hv float64, err error) {
	if len(in.Blocks) == 0 || len(in.Blocks[0].Rows) == 0 || in.Blocks[0].Rows[0].V1Set == nil {
		return 0, 0, eris.New("model: missing initial V1 setting")
	}
	a := math.Abs(*in.Blocks[0].Rows[0].V1Set)
	b := a
	if len(in.Blocks) > 1 {
		if len(in.Blocks[1].Rows) == 0 || in.Blocks[1].Rows[0].V1Set == nil {
			return 0, 0, eris.New("model: missing second V1 setting")
		}
		b = math.Abs(*in.Blocks[1].Rows[0].V1Set)
	}
	return math.Min(a, b), math.Max(a, b), nil
}
