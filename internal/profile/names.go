package profile

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	r1Marker      = "R1: "
	r2Marker      = "R2: "
	monitorMarker = " monitored by GMH"
)

var multipliers = map[byte]float64{
	'r': 1,
	'R': 1,
	'k': 1e3,
	'M': 1e6,
	'G': 1e9,
}

// ExtractNames reads the resistor names from a run comment. Each name follows
// its "R1: " or "R2: " marker and ends at " monitored by GMH".
func ExtractNames(comment string) (r1, r2 string, err error) {
	i1 := strings.Index(comment, r1Marker)
	if i1 < 0 {
		return "", "", eris.Errorf("profile: R1 name not found in comment %q", comment)
	}
	i2 := strings.Index(comment, r2Marker)
	if i2 < 0 {
		return "", "", eris.Errorf("profile: R2 name not found in comment %q", comment)
	}
	r1, err = nameAt(comment, i1+len(r1Marker))
	if err != nil {
		return "", "", err
	}
	r2, err = nameAt(comment, i2+len(r2Marker))
	if err != nil {
		return "", "", err
	}
	return r1, r2, nil
}

func nameAt(comment string, start int) (string, error) {
	end := strings.Index(comment[start:], monitorMarker)
	if end < 0 {
		return "", eris.Errorf("profile: no %q after name in comment %q", strings.TrimSpace(monitorMarker), comment)
	}
	name := strings.TrimSpace(comment[start : start+end])
	if name == "" {
		return "", eris.Errorf("profile: empty resistor name in comment %q", comment)
	}
	return name, nil
}

// NominalValue parses the nominal resistance from a name of the form
// "desc nnP": the last word is an integer followed by one of r, R, k, M, G.
func NominalValue(name string) (float64, error) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return 0, eris.New("profile: empty resistor name")
	}
	last := fields[len(fields)-1]
	mult, ok := multipliers[last[len(last)-1]]
	if !ok {
		return 0, eris.Errorf("profile: unknown multiplier in resistor name %q", name)
	}
	digits := strings.TrimFunc(last, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	})
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, eris.Errorf("profile: no nominal value in resistor name %q", name)
	}
	return mult * float64(n), nil
}

// Label builds the label of a newly characterised parameter:
// the name's first word, the parameter and the run id joined by '_'.
func Label(name, param, runID string) string {
	first := name
	if f := strings.Fields(name); len(f) > 0 {
		first = f[0]
	}
	return first + "_" + param + "_" + runID
}
