package services

import (
	"math"

	"github.com/bobby-s-dev/emotions-in-transit/internal/config"
)

// Normalize maps v from [min, max] onto [0, 1], clamping values outside the
// range. NaN, ±Inf and degenerate ranges give the neutral 0.5.
func Normalize(v, min, max float64) float64 {
	if !finite(v) || max <= min {
		return 0.5
	}
	return Clamp((v-min)/(max-min), 0, 1)
}

func NormalizeRange(v float64, r config.Range) float64 {
	return Normalize(v, r.Min, r.Max)
}

func Clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sanitize returns the clamped reading, or prev when the reading is missing
// or not a finite number.
func sanitize(v *float64, r config.Range, prev float64) float64 {
	if v == nil || !finite(*v) {
		return prev
	}
	return Clamp(*v, r.Min, r.Max)
}

// present reports whether v carries a usable value.
func present(v *float64) bool {
	return v != nil && finite(*v)
}
