// Package gum implements uncertain numbers and the GUM law of propagation of
// uncertainty.
//
// Every Number carries the partial derivatives of its value with respect to
// the elementary inputs it depends on. Arithmetic merges those maps with the
// chain rule, so correlation between results that share inputs is handled
// exactly. Numbers are immutable and safe for concurrent reads.
package gum

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ErrInvalidUncertainty is returned when an elementary input is declared
// with a negative or non-finite standard uncertainty.
var ErrInvalidUncertainty = eris.New("gum: invalid standard uncertainty")

// ErrInvalidDoF is returned when an elementary input has a non-positive
// finite degrees of freedom.
var ErrInvalidDoF = eris.New("gum: invalid degrees of freedom")

var leafSeq atomic.Uint64

// leaf is the identity of an elementary input.
type leaf struct {
	seq  uint64
	ns   *Namespace
	node *Number
}

// Number is an uncertain quantity. Elementary numbers are created by a
// Namespace; every other Number is derived by an operation in this package.
type Number struct {
	value    float64
	u        float64
	dof      DoF
	label    string
	self     *leaf
	partials map[*leaf]float64
}

// Namespace scopes the elementary inputs of one analysis run. Labels are
// qualified with the namespace tag so that results from concurrent runs
// never alias.
type Namespace struct {
	id  string
	tag string
}

// NewNamespace creates a namespace. tag is appended to every label; when
// empty, no suffix is added.
func NewNamespace(tag string) *Namespace {
	return &Namespace{id: uuid.New().String(), tag: tag}
}

// NewAnonymousNamespace creates a namespace for a run with no tag of its
// own. Its labels carry the first eight characters of the namespace id.
func NewAnonymousNamespace() *Namespace {
	id := uuid.New().String()
	return &Namespace{id: id, tag: id[:8]}
}

// ID returns the namespace's unique id.
func (ns *Namespace) ID() string { return ns.id }

// Tag returns the label suffix used by the namespace.
func (ns *Namespace) Tag() string { return ns.tag }

// Label qualifies name with the namespace tag.
func (ns *Namespace) Label(name string) string {
	if ns.tag == "" {
		return name
	}
	return name + " " + ns.tag
}

// Elementary creates an elementary input. label is used verbatim.
func (ns *Namespace) Elementary(value, u float64, dof DoF, label string) (*Number, error) {
	if u < 0 || math.IsNaN(u) || math.IsInf(u, 0) {
		return nil, eris.Wrapf(ErrInvalidUncertainty, "%s: u=%v", label, u)
	}
	if !dof.Valid() {
		return nil, eris.Wrapf(ErrInvalidDoF, "%s: dof=%v", label, dof)
	}
	l := &leaf{seq: leafSeq.Add(1), ns: ns}
	n := &Number{
		value:    value,
		u:        u,
		dof:      dof,
		label:    label,
		self:     l,
		partials: map[*leaf]float64{l: 1},
	}
	l.node = n
	return n, nil
}

// Constant returns an exactly known number with no elementary ancestors.
func Constant(v float64) *Number {
	return &Number{value: v, partials: map[*leaf]float64{}}
}

// derived builds a Number from a value and merged partials, computing the
// combined uncertainty and effective degrees of freedom.
func derived(value float64, partials map[*leaf]float64) *Number {
	n := &Number{value: value, partials: partials}
	n.u, n.dof = combine(partials)
	return n
}

// Value returns the estimate.
func (n *Number) Value() float64 { return n.value }

// Uncertainty returns the standard uncertainty.
func (n *Number) Uncertainty() float64 { return n.u }

// DoF returns the (effective) degrees of freedom.
func (n *Number) DoF() DoF { return n.dof }

// Label returns the label, which may be empty for intermediate results.
func (n *Number) Label() string { return n.label }

// IsElementary reports whether n is an elementary input.
func (n *Number) IsElementary() bool { return n.self != nil }

// Namespace returns the namespace of an elementary number, nil otherwise.
func (n *Number) Namespace() *Namespace {
	if n.self == nil {
		return nil
	}
	return n.self.ns
}

func (n *Number) String() string {
	label := n.label
	if label == "" {
		label = "<derived>"
	}
	return fmt.Sprintf("%s: %.10g ± %.3g (dof %s)", label, n.value, n.u, n.dof.Round())
}

// WithLabel returns a copy of n carrying label. The copy shares n's
// dependencies; an elementary input stays the same input.
func WithLabel(n *Number, label string) *Number {
	c := *n
	c.label = label
	return &c
}

// Sensitivity returns the partial derivative of n with respect to the
// elementary input wrt. It is 1 when n is wrt, and 0 when n does not depend
// on wrt or wrt is not elementary.
func Sensitivity(n, wrt *Number) float64 {
	if wrt == nil || wrt.self == nil {
		return 0
	}
	return n.partials[wrt.self]
}

// Component returns the signed uncertainty contribution of wrt to n.
func Component(n, wrt *Number) float64 {
	if wrt == nil || wrt.self == nil {
		return 0
	}
	return n.partials[wrt.self] * wrt.u
}

// Ancestors returns the elementary inputs n depends on, in creation order.
func Ancestors(n *Number) []*Number {
	leaves := make([]*leaf, 0, len(n.partials))
	for l := range n.partials {
		leaves = append(leaves, l)
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].seq < leaves[j].seq })
	out := make([]*Number, len(leaves))
	for i, l := range leaves {
		out[i] = l.node
	}
	return out
}

// SameInput reports whether a and b are the same elementary input.
func SameInput(a, b *Number) bool {
	return a != nil && b != nil && a.self != nil && a.self == b.self
}

// combine applies the law of propagation of uncertainty and the
// Welch-Satterthwaite formula to a partials map.
func combine(partials map[*leaf]float64) (float64, DoF) {
	var variance, denom float64
	for l, c := range partials {
		ui := c * l.node.u
		v := ui * ui
		variance += v
		if v == 0 || l.node.dof.IsInf() {
			continue
		}
		denom += v * v / l.node.dof.v
	}
	u := math.Sqrt(variance)
	if variance == 0 || denom == 0 {
		return u, Infinite
	}
	return u, DoF{v: variance * variance / denom, finite: true}
}
