package gum

import "encoding/json"

// Quantity is the serialisable description of an uncertain value: what a
// parameter table stores for an input, or what a report stores for a result.
type Quantity struct {
	Value       float64 `json:"value" yaml:"value"`
	Uncertainty float64 `json:"uncert" yaml:"uncert"`
	DoF         DoF     `json:"dof" yaml:"dof"`
	Label       string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// QuantityOf snapshots n.
func QuantityOf(n *Number) Quantity {
	return Quantity{Value: n.value, Uncertainty: n.u, DoF: n.dof, Label: n.label}
}

// Input creates an elementary input from q. An empty q.Label is replaced by
// fallback.
func (ns *Namespace) Input(q Quantity, fallback string) (*Number, error) {
	label := q.Label
	if label == "" {
		label = fallback
	}
	return ns.Elementary(q.Value, q.Uncertainty, q.DoF, label)
}

// MarshalJSON encodes n as a Quantity.
func (n *Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(QuantityOf(n))
}
