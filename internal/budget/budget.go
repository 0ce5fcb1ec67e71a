// Package budget assembles uncertainty budgets: the per-input breakdown of a
// result's combined standard uncertainty.
package budget

import (
	"math"
	"sort"

	"github.com/sells-group/bridge-cli/internal/gum"
)

// Line is one row of an uncertainty budget.
type Line struct {
	Label        string  `json:"label" yaml:"label"`
	Value        float64 `json:"value" yaml:"value"`
	Uncertainty  float64 `json:"uncert" yaml:"uncert"`
	DoF          gum.DoF `json:"dof" yaml:"dof"`
	Sensitivity  float64 `json:"sensitivity" yaml:"sensitivity"`
	Contribution float64 `json:"contribution" yaml:"contribution"`
}

// Builder collects the influences of one result. A Builder is scoped to a
// single result and is not safe for concurrent use.
type Builder struct {
	result     *gum.Number
	influences []*gum.Number
}

// New starts a budget for result.
func New(result *gum.Number) *Builder {
	return &Builder{result: result}
}

// Add records influences in order. Derived numbers are expanded into their
// elementary ancestors; an input that is already recorded is skipped.
func (b *Builder) Add(nodes ...*gum.Number) *Builder {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.IsElementary() {
			b.add(n)
			continue
		}
		for _, a := range gum.Ancestors(n) {
			b.add(a)
		}
	}
	return b
}

func (b *Builder) add(n *gum.Number) {
	for _, have := range b.influences {
		if gum.SameInput(have, n) {
			return
		}
	}
	b.influences = append(b.influences, n)
}

// Len returns the number of distinct influences recorded.
func (b *Builder) Len() int { return len(b.influences) }

// Lines returns the budget sorted by descending |contribution|, ties kept in
// the order the influences were added.
func (b *Builder) Lines() []Line {
	lines := make([]Line, len(b.influences))
	for i, in := range b.influences {
		l := Line{
			Label:       in.Label(),
			Value:       in.Value(),
			Uncertainty: in.Uncertainty(),
			DoF:         in.DoF(),
		}
		if in.Uncertainty() > 0 {
			l.Sensitivity = gum.Sensitivity(b.result, in)
			l.Contribution = gum.Component(b.result, in)
		}
		lines[i] = l
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return math.Abs(lines[i].Contribution) > math.Abs(lines[j].Contribution)
	})
	return lines
}

// Full returns the budget of result over all of its elementary ancestors.
func Full(result *gum.Number) []Line {
	return New(result).Add(gum.Ancestors(result)...).Lines()
}

// Check returns |Σ contribution² − u²| / u² for lines against result. It is
// zero for a complete budget; an incomplete one shows the missing share.
func Check(lines []Line, result *gum.Number) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.Contribution * l.Contribution
	}
	v := result.Uncertainty() * result.Uncertainty()
	if v == 0 {
		return sum
	}
	return math.Abs(sum-v) / v
}
