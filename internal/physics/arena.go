package physics

// CoincidentPolicy decides what happens to a pair whose centers coincide
// exactly, where no separation direction exists.
type CoincidentPolicy uint8

const (
	// CoincidentSkip leaves the pair alone for this tick. Random placement
	// makes exact coincidence rare and later motion breaks the tie.
	CoincidentSkip CoincidentPolicy = iota
	// CoincidentNudge separates the pair along +X as if fully overlapping.
	CoincidentNudge
)

// TickStats summarizes one separation pass.
type TickStats struct {
	Pairs      int // unordered pairs examined
	Separated  int // pairs pushed apart
	Coincident int // pairs with identical centers
}

// Arena is the bounded simulation space and sole owner of its bodies.
// It is not safe for concurrent use; a single driver goroutine ticks it.
type Arena struct {
	Coincident CoincidentPolicy

	width, height float64
	bodies        []*Body
}

// NewArena creates an empty arena of w×h.
func NewArena(w, h float64) *Arena {
	return &Arena{width: w, height: h}
}

// Size returns the current arena extent.
func (a *Arena) Size() (w, h float64) {
	return a.width, a.height
}

// Resize changes the extent. Bodies keep their positions and are pulled back
// inside on the next tick.
func (a *Arena) Resize(w, h float64) {
	a.width, a.height = w, h
}

// Reset replaces the whole body set.
func (a *Arena) Reset(bodies []*Body) {
	a.bodies = bodies
}

// Bodies returns the live body slice in iteration order.
func (a *Arena) Bodies() []*Body {
	return a.bodies
}

// Len is the number of bodies.
func (a *Arena) Len() int {
	return len(a.bodies)
}

// Tick advances every body by dt seconds, resolves wall contact, runs one
// separation pass and re-clamps positions so every body ends the tick in
// bounds.
func (a *Arena) Tick(dt float64) TickStats {
	for _, b := range a.bodies {
		b.Advance(dt, a.width, a.height)
	}
	stats := a.Separate()
	for _, b := range a.bodies {
		b.clampTo(a.width, a.height)
	}
	return stats
}

// Separate makes a single relaxation pass over all unordered pairs, pushing
// each overlapping pair apart by half the overlap apiece. Heavily packed
// bodies may stay overlapped after one pass; subsequent ticks keep reducing
// it. This is deliberately not iterated to convergence.
func (a *Arena) Separate() TickStats {
	var stats TickStats
	n := len(a.bodies)
	for i := 0; i < n; i++ {
		bi := a.bodies[i]
		for j := i + 1; j < n; j++ {
			bj := a.bodies[j]
			stats.Pairs++

			d := bi.Center().Sub(bj.Center())
			dist := d.Len()
			minDist := bi.Radius + bj.Radius
			if dist >= minDist {
				continue
			}

			var normal Vec
			if dist == 0 {
				stats.Coincident++
				if a.Coincident != CoincidentNudge {
					continue
				}
				normal = Vec{X: 1}
			} else {
				normal = d.Scale(1 / dist)
			}

			push := normal.Scale((minDist - dist) / 2)
			bi.Pos = bi.Pos.Add(push)
			bj.Pos = bj.Pos.Sub(push)
			stats.Separated++
		}
	}
	return stats
}
