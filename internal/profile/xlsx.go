package profile

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/bridge-cli/internal/gum"
	"github.com/sells-group/bridge-cli/internal/model"
)

// SheetName is the workbook sheet holding the parameter tables.
const SheetName = "Parameters"

// Column offsets of the two tables on the Parameters sheet. Each table has
// description, parameter, value, uncert, dof, label and comment columns.
const (
	resistorCol   = 0 // A..G
	instrumentCol = 8 // I..O
	tableWidth    = 7
)

var headings = map[string]bool{
	"Resistor Info:":      true,
	"Instrument Info:":    true,
	"description":         true,
	"parameter":           true,
	"value":               true,
	"uncert":              true,
	"dof":                 true,
	"label":               true,
	"Comment / Reference": true,
}

// entry is one parameter row of either table.
type entry struct {
	desc, param, value, uncert, dof, label, comment string
}

func entryAt(row []string, col int) entry {
	get := func(i int) string {
		if col+i < len(row) {
			return strings.TrimSpace(row[col+i])
		}
		return ""
	}
	return entry{
		desc: get(0), param: get(1), value: get(2), uncert: get(3),
		dof: get(4), label: get(5), comment: get(6),
	}
}

func (e entry) isHeading() bool {
	return headings[e.desc] || headings[e.param] || headings[e.value]
}

// quantity converts an entry with a numeric value and an uncertainty.
// ok is false for non-numeric entries.
func (e entry) quantity() (q gum.Quantity, ok bool, err error) {
	if e.uncert == "" {
		return gum.Quantity{}, false, nil
	}
	v, perr := strconv.ParseFloat(e.value, 64)
	if perr != nil {
		return gum.Quantity{}, false, nil
	}
	u, perr := strconv.ParseFloat(e.uncert, 64)
	if perr != nil {
		return gum.Quantity{}, false, eris.Wrapf(perr, "profile: %s/%s: bad uncertainty %q", e.desc, e.param, e.uncert)
	}
	dof, derr := gum.ParseDoF(e.dof)
	if derr != nil {
		return gum.Quantity{}, false, eris.Wrapf(derr, "profile: %s/%s", e.desc, e.param)
	}
	return gum.Quantity{Value: v, Uncertainty: u, DoF: dof, Label: e.label}, true, nil
}

// LoadXLSX reads tables from the Parameters sheet of a workbook.
func LoadXLSX(path string) (*Tables, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "profile: open workbook")
	}
	sheet, ok := f.Sheet[SheetName]
	if !ok {
		return nil, eris.Errorf("profile: sheet %q not found in %s", SheetName, path)
	}
	rows := make([][]string, len(sheet.Rows))
	for i, r := range sheet.Rows {
		if r == nil {
			continue
		}
		cells := make([]string, len(r.Cells))
		for j, c := range r.Cells {
			if c != nil {
				cells[j] = c.Value
			}
		}
		rows[i] = cells
	}
	return ParseParameters(rows)
}

// ParseParameters reads the side-by-side resistor (A..G) and instrument
// (I..O) tables. A resistor record closes at its T_sensor row, an instrument
// record at its test row. Heading rows are skipped.
func ParseParameters(rows [][]string) (*Tables, error) {
	t := NewTables()
	var res *model.ResistorProfile
	var inst *model.InstrumentProfile

	for i, row := range rows {
		re := entryAt(row, resistorCol)
		ie := entryAt(row, instrumentCol)
		if re.isHeading() || ie.isHeading() {
			continue
		}

		if ie.desc != "" && ie.param != "" {
			if inst == nil || inst.Description != ie.desc {
				inst = &model.InstrumentProfile{
					Description: ie.desc,
					Params:      make(map[string]gum.Quantity),
					Attrs:       make(map[string]string),
				}
			}
			q, ok, err := ie.quantity()
			if err != nil {
				return nil, eris.Wrapf(err, "row %d", i+1)
			}
			if ok {
				inst.Params[ie.param] = q
			} else {
				inst.Attrs[ie.param] = ie.value
			}
			if ie.param == model.ParamTest {
				t.AddInstrument(inst)
				inst = nil
			}
		}

		if re.desc != "" && re.param != "" {
			if res == nil || res.Name != re.desc {
				res = &model.ResistorProfile{Name: re.desc}
				res.TrackParams()
			}
			if err := setResistorEntry(res, re); err != nil {
				return nil, eris.Wrapf(err, "row %d", i+1)
			}
			if re.param == model.ParamTSensor {
				t.AddResistor(res)
				res = nil
			}
		}
	}

	if res != nil {
		zap.L().Warn("profile: resistor record without T_sensor row ignored", zap.String("name", res.Name))
	}
	if inst != nil {
		zap.L().Warn("profile: instrument record without test row ignored", zap.String("description", inst.Description))
	}
	return t, nil
}

func setResistorEntry(p *model.ResistorProfile, e entry) error {
	switch e.param {
	case model.ParamTSensor:
		p.TSensor = e.value
		if p.TSensor == "" {
			p.TSensor = model.TSensorNone
		}
		return nil
	case model.ParamDate:
		if e.value == "" {
			return nil
		}
		d, err := ParseTime(e.value)
		if err != nil {
			return eris.Wrapf(err, "profile: %s date", p.Name)
		}
		p.Date = d
		return nil
	}

	q, ok, err := e.quantity()
	if err != nil {
		return err
	}
	if !ok {
		// Non-numeric resistor entries other than date and T_sensor carry
		// no information the reduction uses.
		return nil
	}
	p.SetParam(e.param, q)
	return nil
}

// ParseTime reads a timestamp written by the bridge software, an ISO date,
// or an Excel serial date.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{model.TimeLayout, "02/01/2006", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return xlsx.TimeFromExcelTime(f, false), nil
	}
	return time.Time{}, eris.Errorf("profile: unrecognised time %q", s)
}

// Rows renders p as Parameters-sheet rows (columns A..G) for appending a
// newly characterised resistor. ref fills the comment column.
func Rows(p *model.ResistorProfile, runID, ref string) [][]string {
	out := make([][]string, 0, len(model.ResistorParams))
	for _, param := range model.ResistorParams {
		row := []string{p.Name, param, "", "", "", "", ref}
		switch param {
		case model.ParamDate:
			if !p.Date.IsZero() {
				row[2] = p.Date.Format(model.TimeLayout)
			}
		case model.ParamTSensor:
			row[2] = p.TSensor
		default:
			q, _ := p.Param(param)
			row[2] = strconv.FormatFloat(q.Value, 'g', -1, 64)
			row[3] = strconv.FormatFloat(q.Uncertainty, 'g', -1, 64)
			row[4] = q.DoF.Round().String()
			row[5] = Label(p.Name, param, runID)
		}
		out = append(out, row)
	}
	return out
}
