package gum

import "strconv"

// Covariance returns the covariance of a and b implied by their shared
// elementary inputs. It is zero when they share none.
func Covariance(a, b *Number) float64 {
	small, large := a.partials, b.partials
	if len(large) < len(small) {
		small, large = large, small
	}
	var cov float64
	for l, ca := range small {
		cb, ok := large[l]
		if !ok {
			continue
		}
		u := l.node.u
		cov += ca * cb * u * u
	}
	return cov
}

// Correlation returns the correlation coefficient of a and b, or zero when
// either is exact.
func Correlation(a, b *Number) float64 {
	if a.u == 0 || b.u == 0 {
		return 0
	}
	return Covariance(a, b) / (a.u * b.u)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
