package physics

// Body is one simulated bubble. Pos is the top-left corner of the bubble's
// bounding square, so the in-bounds range on each axis is [0, extent-Size()].
// Bodies never hold references to each other; the Arena mediates pair access.
type Body struct {
	ID     string
	Pos    Vec
	Vel    Vec // arena units per second
	Radius float64
}

// Size is the bubble diameter.
func (b *Body) Size() float64 {
	return 2 * b.Radius
}

// Center is the circle center used for pair distances.
func (b *Body) Center() Vec {
	return Vec{b.Pos.X + b.Radius, b.Pos.Y + b.Radius}
}

// Finite reports whether position and velocity are free of NaN/Inf.
func (b *Body) Finite() bool {
	return b.Pos.Finite() && b.Vel.Finite()
}

// InBounds reports whether the bound invariant holds for an arena of w×h.
func (b *Body) InBounds(w, h float64) bool {
	mx, my := limit(w, b.Size()), limit(h, b.Size())
	return b.Pos.X >= 0 && b.Pos.X <= mx && b.Pos.Y >= 0 && b.Pos.Y <= my
}

// Advance integrates one frame and resolves wall contact. Each axis is
// handled on its own: touching or crossing a wall flips that axis's velocity
// and clamps the coordinate back onto the wall.
func (b *Body) Advance(dt, w, h float64) {
	b.Pos = b.Pos.Add(b.Vel.Scale(dt))
	size := b.Size()
	reflect(&b.Pos.X, &b.Vel.X, limit(w, size))
	reflect(&b.Pos.Y, &b.Vel.Y, limit(h, size))
}

// clampTo pulls the body back inside the arena without touching velocity.
func (b *Body) clampTo(w, h float64) {
	size := b.Size()
	b.Pos.X = clamp(b.Pos.X, 0, limit(w, size))
	b.Pos.Y = clamp(b.Pos.Y, 0, limit(h, size))
}

func reflect(pos, vel *float64, hi float64) {
	if *pos <= 0 || *pos >= hi {
		*vel = -*vel
		*pos = clamp(*pos, 0, hi)
	}
}

// limit is the largest valid coordinate on an axis. Arenas smaller than the
// body, non-positive or non-finite extents collapse to 0.
func limit(extent, size float64) float64 {
	m := extent - size
	if !(m > 0) || !isFinite(m) {
		return 0
	}
	return m
}
