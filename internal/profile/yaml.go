package profile

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bridge-cli/internal/model"
)

// file is the YAML layout of a profile table.
type file struct {
	Resistors   []*yaml.Node               `yaml:"resistors"`
	Instruments []*model.InstrumentProfile `yaml:"instruments"`
}

// LoadYAML reads tables from a YAML file.
func LoadYAML(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}
	return ParseYAML(data)
}

// yamlParams maps resistor YAML keys to parameter names.
var yamlParams = map[string]string{
	"r0_lv":   model.ParamR0LV,
	"tref_lv": model.ParamTRefLV,
	"vref_lv": model.ParamVRefLV,
	"r0_hv":   model.ParamR0HV,
	"tref_hv": model.ParamTRefHV,
	"vref_hv": model.ParamVRefHV,
	"alpha":   model.ParamAlpha,
	"beta":    model.ParamBeta,
	"gamma":   model.ParamGamma,
	"drift":   model.ParamDrift,
}

// ParseYAML decodes tables from YAML.
func ParseYAML(data []byte) (*Tables, error) {
	var f struct {
		Resistors   []yaml.Node                `yaml:"resistors"`
		Instruments []*model.InstrumentProfile `yaml:"instruments"`
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "profile: parse yaml")
	}

	t := NewTables()
	for i := range f.Resistors {
		r, err := decodeResistor(&f.Resistors[i])
		if err != nil {
			return nil, eris.Wrapf(err, "profile: resistor %d", i)
		}
		t.AddResistor(r)
	}
	for i, in := range f.Instruments {
		if in == nil || in.Description == "" {
			return nil, eris.Errorf("profile: instrument %d has no description", i)
		}
		t.AddInstrument(in)
	}
	return t, nil
}

// decodeResistor decodes one resistor mapping, recording which parameters
// it lists.
func decodeResistor(node *yaml.Node) (*model.ResistorProfile, error) {
	if node.Kind != yaml.MappingNode {
		return nil, eris.New("not a mapping")
	}
	r := &model.ResistorProfile{}
	if err := node.Decode(r); err != nil {
		return nil, eris.Wrap(err, "decode")
	}
	if r.Name == "" {
		return nil, eris.New("has no name")
	}
	r.TrackParams()
	for i := 0; i+1 < len(node.Content); i += 2 {
		if name, ok := yamlParams[node.Content[i].Value]; ok {
			r.MarkParam(name)
		}
	}
	if r.TSensor == "" {
		r.TSensor = model.TSensorNone
	}
	return r, nil
}

// MarshalYAML encodes t in the layout read by ParseYAML, sorted by name.
// Parameters a loaded profile never listed are left out.
func (t *Tables) MarshalYAML() (any, error) {
	var f file
	for _, n := range t.ResistorNames() {
		node, err := encodeResistor(t.Resistors[n])
		if err != nil {
			return nil, eris.Wrapf(err, "profile: resistor %s", n)
		}
		f.Resistors = append(f.Resistors, node)
	}
	for _, n := range t.InstrumentNames() {
		f.Instruments = append(f.Instruments, t.Instruments[n])
	}
	return f, nil
}

func encodeResistor(r *model.ResistorProfile) (*yaml.Node, error) {
	node := &yaml.Node{}
	if err := node.Encode(r); err != nil {
		return nil, eris.Wrap(err, "encode")
	}
	kept := node.Content[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		if name, ok := yamlParams[node.Content[i].Value]; ok && !r.HasParam(name) {
			continue
		}
		kept = append(kept, node.Content[i], node.Content[i+1])
	}
	node.Content = kept
	return node, nil
}

// SaveYAML writes t to path.
func (t *Tables) SaveYAML(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return eris.Wrap(err, "profile: encode yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "profile: write %s", path)
	}
	return nil
}
