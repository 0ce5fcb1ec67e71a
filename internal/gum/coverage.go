package gum

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultCoverage is the coverage probability used for expanded
// uncertainties unless configured otherwise.
const DefaultCoverage = 0.95

// KFactor returns the two-sided coverage factor for probability p, from the
// Student-t distribution with dof degrees of freedom (normal when infinite).
func KFactor(dof DoF, p float64) float64 {
	q := (1 + p) / 2
	if dof.IsInf() {
		return distuv.UnitNormal.Quantile(q)
	}
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof.Float()}.Quantile(q)
}

// Expanded returns the expanded uncertainty of n at coverage probability p
// together with the coverage factor used.
func Expanded(n *Number, p float64) (u, k float64) {
	k = KFactor(n.dof, p)
	return k * n.u, k
}
