package core

import "math"

// InBand reports whether a pair at distance d qualifies for a line.
func InBand(d, minDist, maxDist float32) bool {
	return d >= minDist && d <= maxDist
}

// LineAlpha fades from 1 at the middle of the band to 0 at both edges.
func LineAlpha(d, minDist, maxDist float32) float32 {
	width := maxDist - minDist
	if width <= 0 {
		return 1
	}
	t := (d - minDist) / width
	a := 1 - float32(math.Abs(float64(2*t-1)))
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}
