// Package physics holds the bubble simulation: circular bodies moving inside a
// rectangular arena, reflecting off its walls and pushed apart pairwise so they
// stop overlapping.
//
// There is no mass, momentum or energy accounting. Walls flip the velocity
// component of the axis that was crossed; overlapping pairs are separated
// symmetrically along the line between their centers, once per tick.
package physics

import "math"

// Vec is a 2D vector in arena units.
type Vec struct {
	X, Y float64
}

func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(f float64) Vec { return Vec{v.X * f, v.Y * f} }
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }
func (v Vec) Dist(o Vec) float64 { return v.Sub(o).Len() }
func (v Vec) Finite() bool { return isFinite(v.X) && isFinite(v.Y) }
func (v Vec) Eq(o Vec, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
