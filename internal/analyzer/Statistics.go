package analyzer

import (
	"math"
)

// Annualization factors for volatility: periods per year at the two sampling
// cadences the providers deliver.
const (
	PeriodsPerYearHourly     = 24.0 * 365.0
	PeriodsPerYearFiveMinute = 12.0 * 24.0 * 365.0
)

// Clamp bounds x to the closed interval [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// NormalCDF returns the standard normal cumulative distribution Phi(x) using
// the Abramowitz-Stegun 7.1.26 polynomial for erf, accurate to about 1.5e-7.
// Negative arguments go through the odd symmetry Phi(-x) = 1 - Phi(x).
func NormalCDF(x float64) float64 {
	if x < 0 {
		return 1 - NormalCDF(-x)
	}

	z := x / math.Sqrt2

	const (
		p  = 0.3275911
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
	)

	t := 1.0 / (1.0 + p*z)
	poly := t * (a1 + t*(a2+t*(a3+t*(a4+t*a5))))
	erf := 1.0 - poly*math.Exp(-z*z)

	return 0.5 * (1.0 + erf)
}

// sampleStdDev computes the sample standard deviation (n-1 denominator).
// Fewer than two values yields 0.
func sampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sumSqDiff float64
	for _, v := range values {
		diff := v - mean
		sumSqDiff += diff * diff
	}

	return math.Sqrt(sumSqDiff / float64(n-1))
}
