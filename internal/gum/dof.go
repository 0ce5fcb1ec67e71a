package gum

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// legacyInfinite is the sentinel older parameter sheets use for "inf".
const legacyInfinite = 1e6

// DoF is a degrees-of-freedom value: either a finite positive number or
// infinite. The zero value is Infinite.
type DoF struct {
	v      float64
	finite bool
}

// Infinite is the degrees of freedom of an exactly known distribution.
var Infinite = DoF{}

// Finite returns a finite DoF. Values at or above the legacy 1e6 sentinel,
// and +Inf, are normalised to Infinite.
func Finite(v float64) DoF {
	if math.IsInf(v, 1) || v >= legacyInfinite {
		return Infinite
	}
	return DoF{v: v, finite: true}
}

// IsInf reports whether d is infinite.
func (d DoF) IsInf() bool { return !d.finite }

// Float returns d as a float64, +Inf for Infinite.
func (d DoF) Float() float64 {
	if !d.finite {
		return math.Inf(1)
	}
	return d.v
}

// Valid reports whether d is Infinite or a finite value > 0.
func (d DoF) Valid() bool {
	return !d.finite || (d.v > 0 && !math.IsNaN(d.v))
}

// Round returns d rounded to the nearest integer for display; Infinite is
// returned unchanged.
func (d DoF) Round() DoF {
	if !d.finite {
		return d
	}
	return DoF{v: math.Round(d.v), finite: true}
}

func (d DoF) String() string {
	if !d.finite {
		return "inf"
	}
	return strconv.FormatFloat(d.v, 'g', -1, 64)
}

// ParseDoF parses "inf" (any case), "infinity", or a number.
func ParseDoF(s string) (DoF, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "inf", "+inf", "infinity":
		return Infinite, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return DoF{}, eris.Wrapf(err, "gum: parse dof %q", s)
	}
	d := Finite(v)
	if !d.Valid() {
		return DoF{}, eris.Errorf("gum: dof must be positive, got %v", v)
	}
	return d, nil
}

func (d DoF) MarshalJSON() ([]byte, error) {
	if !d.finite {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(d.v)
}

func (d *DoF) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p, err := ParseDoF(s)
		if err != nil {
			return err
		}
		*d = p
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return eris.Wrap(err, "gum: unmarshal dof")
	}
	*d = Finite(v)
	return nil
}

func (d DoF) MarshalYAML() (any, error) {
	if !d.finite {
		return "inf", nil
	}
	return d.v, nil
}

func (d *DoF) UnmarshalYAML(node *yaml.Node) error {
	p, err := ParseDoF(node.Value)
	if err != nil {
		return err
	}
	*d = p
	return nil
}
