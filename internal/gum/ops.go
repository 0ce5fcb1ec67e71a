package gum

import (
	"math"
)

// DomainError reports an operation evaluated outside its mathematical
// domain, such as a division by zero or the square root of a negative value.
type DomainError struct {
	Op    string
	Label string
	Value float64
}

func (e *DomainError) Error() string {
	label := e.Label
	if label == "" {
		label = "<derived>"
	}
	return "gum: " + e.Op + ": argument outside domain (" + label + " = " + formatFloat(e.Value) + ")"
}

// merge2 returns the partials of ca·a + cb·b. Keys present in both operands
// are summed; every key of either operand is kept, even when the sum is zero.
func merge2(a *Number, ca float64, b *Number, cb float64) map[*leaf]float64 {
	p := make(map[*leaf]float64, len(a.partials)+len(b.partials))
	for l, c := range a.partials {
		p[l] += ca * c
	}
	for l, c := range b.partials {
		p[l] += cb * c
	}
	return p
}

func scale(a *Number, k float64) map[*leaf]float64 {
	p := make(map[*leaf]float64, len(a.partials))
	for l, c := range a.partials {
		p[l] = k * c
	}
	return p
}

// Add returns a + b.
func Add(a, b *Number) *Number {
	return derived(a.value+b.value, merge2(a, 1, b, 1))
}

// Sub returns a - b.
func Sub(a, b *Number) *Number {
	return derived(a.value-b.value, merge2(a, 1, b, -1))
}

// Mul returns a · b.
func Mul(a, b *Number) *Number {
	return derived(a.value*b.value, merge2(a, b.value, b, a.value))
}

// Div returns a / b. A zero divisor is a *DomainError.
func Div(a, b *Number) (*Number, error) {
	if b.value == 0 {
		return nil, &DomainError{Op: "div", Label: b.label, Value: b.value}
	}
	q := a.value / b.value
	return derived(q, merge2(a, 1/b.value, b, -q/b.value)), nil
}

// Neg returns -a.
func Neg(a *Number) *Number {
	return derived(-a.value, scale(a, -1))
}

// Scale returns k · a.
func Scale(a *Number, k float64) *Number {
	return derived(k*a.value, scale(a, k))
}

// Shift returns a + k.
func Shift(a *Number, k float64) *Number {
	return derived(a.value+k, scale(a, 1))
}

// Abs returns |a|. The derivative at zero is taken as 0.
func Abs(a *Number) *Number {
	var d float64
	switch {
	case a.value > 0:
		d = 1
	case a.value < 0:
		d = -1
	}
	return derived(math.Abs(a.value), scale(a, d))
}

// Sqrt returns √a. A negative argument is a *DomainError. So is zero with a
// nonzero uncertainty, which goes past the negative-argument rule: the
// derivative is unbounded there. An exact zero gives an exact zero.
func Sqrt(a *Number) (*Number, error) {
	if a.value < 0 || (a.value == 0 && a.u > 0) {
		return nil, &DomainError{Op: "sqrt", Label: a.label, Value: a.value}
	}
	r := math.Sqrt(a.value)
	if r == 0 {
		return derived(0, scale(a, 0)), nil
	}
	return derived(r, scale(a, 0.5/r)), nil
}

// PowConst returns a^p for a constant exponent p.
func PowConst(a *Number, p float64) (*Number, error) {
	v := math.Pow(a.value, p)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, &DomainError{Op: "pow", Label: a.label, Value: a.value}
	}
	var d float64
	if p != 0 {
		d = p * math.Pow(a.value, p-1)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, &DomainError{Op: "pow", Label: a.label, Value: a.value}
		}
	}
	return derived(v, scale(a, d)), nil
}

// Pow returns a^b. An uncertain exponent requires a > 0.
func Pow(a, b *Number) (*Number, error) {
	if len(b.partials) == 0 {
		return PowConst(a, b.value)
	}
	if a.value <= 0 {
		return nil, &DomainError{Op: "pow", Label: a.label, Value: a.value}
	}
	v := math.Pow(a.value, b.value)
	if math.IsInf(v, 0) {
		return nil, &DomainError{Op: "pow", Label: a.label, Value: a.value}
	}
	da := b.value * math.Pow(a.value, b.value-1)
	db := v * math.Log(a.value)
	return derived(v, merge2(a, da, b, db)), nil
}

// Exp returns e^a.
func Exp(a *Number) *Number {
	v := math.Exp(a.value)
	return derived(v, scale(a, v))
}

// Log returns ln a. A non-positive argument is a *DomainError.
func Log(a *Number) (*Number, error) {
	if a.value <= 0 {
		return nil, &DomainError{Op: "log", Label: a.label, Value: a.value}
	}
	return derived(math.Log(a.value), scale(a, 1/a.value)), nil
}

// LinearCombination returns Σ coeffs[i]·xs[i]. It panics if the slices
// differ in length.
func LinearCombination(coeffs []float64, xs []*Number) *Number {
	if len(coeffs) != len(xs) {
		panic("gum: LinearCombination length mismatch")
	}
	size := 0
	for _, x := range xs {
		size += len(x.partials)
	}
	p := make(map[*leaf]float64, size)
	var v float64
	for i, x := range xs {
		k := coeffs[i]
		v += k * x.value
		for l, c := range x.partials {
			p[l] += k * c
		}
	}
	return derived(v, p)
}

// Sum returns the sum of xs. The sum of no terms is Constant(0).
func Sum(xs ...*Number) *Number {
	coeffs := make([]float64, len(xs))
	for i := range coeffs {
		coeffs[i] = 1
	}
	return LinearCombination(coeffs, xs)
}

// Mean returns the arithmetic mean of xs. It panics on an empty slice.
func Mean(xs []*Number) *Number {
	if len(xs) == 0 {
		panic("gum: Mean of no values")
	}
	coeffs := make([]float64, len(xs))
	w := 1 / float64(len(xs))
	for i := range coeffs {
		coeffs[i] = w
	}
	return LinearCombination(coeffs, xs)
}
