// Package profile holds resistor and instrument calibration tables and
// reads them from YAML files or the Parameters sheet of a bridge workbook.
package profile

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bridge-cli/internal/model"
)

// Tables is the calibration knowledge available to a run. Tables are read
// only during reduction; new resistors are added between runs.
type Tables struct {
	Resistors   map[string]*model.ResistorProfile
	Instruments map[string]*model.InstrumentProfile
}

// NewTables returns empty tables.
func NewTables() *Tables {
	return &Tables{
		Resistors:   make(map[string]*model.ResistorProfile),
		Instruments: make(map[string]*model.InstrumentProfile),
	}
}

// Resistor looks up a resistor profile by name.
func (t *Tables) Resistor(name string) (*model.ResistorProfile, bool) {
	p, ok := t.Resistors[name]
	return p, ok
}

// Instrument looks up an instrument profile by description.
func (t *Tables) Instrument(desc string) (*model.InstrumentProfile, bool) {
	p, ok := t.Instruments[desc]
	return p, ok
}

// AddResistor adds or replaces a resistor profile.
func (t *Tables) AddResistor(p *model.ResistorProfile) {
	t.Resistors[p.Name] = p
}

// AddInstrument adds or replaces an instrument profile.
func (t *Tables) AddInstrument(p *model.InstrumentProfile) {
	t.Instruments[p.Description] = p
}

// ResistorNames returns the resistor names in sorted order.
func (t *Tables) ResistorNames() []string {
	names := make([]string, 0, len(t.Resistors))
	for n := range t.Resistors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// InstrumentNames returns the instrument descriptions in sorted order.
func (t *Tables) InstrumentNames() []string {
	names := make([]string, 0, len(t.Instruments))
	for n := range t.Instruments {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Merge copies every profile of o into t, replacing entries with the same key.
func (t *Tables) Merge(o *Tables) {
	for _, p := range o.Resistors {
		t.AddResistor(p)
	}
	for _, p := range o.Instruments {
		t.AddInstrument(p)
	}
}

// Load reads tables from a YAML file or from the Parameters sheet of an
// XLSX workbook, chosen by extension.
func Load(path string) (*Tables, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".xlsx":
		return LoadXLSX(path)
	}
	return nil, eris.Errorf("profile: unsupported table format %q", path)
}
