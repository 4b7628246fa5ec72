// Package util provides common utility functions for price and date math.
package util

import "math"

// tickEpsilon absorbs float noise when a price sits on a tick boundary, so
// floor and ceil do not jump a whole tick over a 1e-15 artifact.
const tickEpsilon = 1e-13

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
func RoundToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return math.Round(x/tick) * tick
}

// FloorToTick rounds x down to a tick increment, treating values within
// tickEpsilon of a boundary as exactly on it.
func FloorToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return snapOr(x/tick, math.Floor) * tick
}

// CeilToTick rounds x up to a tick increment, treating values within
// tickEpsilon of a boundary as exactly on it.
func CeilToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return snapOr(x/tick, math.Ceil) * tick
}

func snapOr(q float64, round func(float64) float64) float64 {
	if nearest := math.Round(q); math.Abs(q-nearest) < tickEpsilon {
		return nearest
	}
	return round(q)
}

// RoundToCents rounds x to two decimal places, the limit price precision
// expected by the gateway.
func RoundToCents(x float64) float64 {
	return RoundToTick(x, 0.01)
}
