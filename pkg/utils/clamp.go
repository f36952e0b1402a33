package utils

import "math"

// ClampFloat bounds v to [lo, hi]. NaN becomes lo.
func ClampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampWhole bounds v to [lo, hi] and drops its fractional part.
func ClampWhole(v, lo, hi float64) float64 {
	return math.Trunc(ClampFloat(v, lo, hi))
}
