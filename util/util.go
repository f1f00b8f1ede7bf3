// Package util holds easing helpers.
package util

import (
	"github.com/fogleman/ease"
)

// Ramp eases from `from` to `to` at progress t, clamping t to 0..1.
func Ramp(from, to, t float64) float64 {
	if t <= 0 {
		return from
	}
	if t >= 1 {
		return to
	}
	return from + (to-from)*ease.InOutQuad(t)
}

// Clamp01 clamps v to 0..1.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
