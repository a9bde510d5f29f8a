// Package sim turns an entity list into a running bubble arena and drives it
// one frame at a time.
//
// A Session is plain state with no goroutines: Load / SetMetric / Resize /
// Step must all be called from the same goroutine. Loop is the driver that
// owns a Session, steps it from a ticker and accepts commands on its inbox.
package sim

import (
	"math/rand/v2"

	"github.com/piratebg/crypto-bubbles/internal/model"
	"github.com/piratebg/crypto-bubbles/internal/normalize"
	"github.com/piratebg/crypto-bubbles/internal/physics"
)

const (
	// FixedStep is used when the driver does not supply a frame duration.
	FixedStep = 1.0 / 60
	// MaxStep caps a single frame so a stalled scheduler cannot teleport bodies.
	MaxStep = 0.25
	// DefaultMaxSpeed bounds each initial velocity component, in units/second.
	DefaultMaxSpeed = 9.0
)

// Rand is the random source for initial placement and velocity.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Options configures a Session.
type Options struct {
	Width, Height float64
	Range         normalize.Range
	Metric        model.Metric
	MaxSpeed      float64
	Coincident    physics.CoincidentPolicy
	Rand          Rand
}

// Bubble is what a renderer needs to draw one body.
type Bubble struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Name     string  `json:"name"`
	Image    string  `json:"image"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"radius"`
	Size     float64 `json:"size"`
	Price    string  `json:"price"`
	Change   string  `json:"change"`
	Positive bool    `json:"positive"`
}

// Frame is the per-tick render output. Frames are built fresh each tick and
// never mutated afterwards, so they can be shared across goroutines.
type Frame struct {
	Tick    int          `json:"tick"`
	Width   float64      `json:"width"`
	Height  float64      `json:"height"`
	Metric  model.Metric `json:"metric"`
	Bubbles []Bubble     `json:"bubbles"`
}

// Session holds one arena and the entity list it was built from.
// bodies[i] always corresponds to entities[i] and display[i].
type Session struct {
	arena    *physics.Arena
	entities []model.Entity
	display  []Bubble // per-entity metadata, formatted once per Load
	metric   model.Metric
	sizes    normalize.Range
	maxSpeed float64
	rng      Rand
	tick     int
}

// NewSession creates an empty session. Zero-valued options fall back to the
// package defaults.
func NewSession(opts Options) *Session {
	if opts.Range == (normalize.Range{}) {
		opts.Range = normalize.DefaultRange
	}
	if opts.Metric == "" {
		opts.Metric = model.MetricMarketCap
	}
	if opts.MaxSpeed <= 0 {
		opts.MaxSpeed = DefaultMaxSpeed
	}
	if opts.Rand == nil {
		opts.Rand = defaultRand()
	}
	arena := physics.NewArena(opts.Width, opts.Height)
	arena.Coincident = opts.Coincident
	return &Session{
		arena:    arena,
		metric:   opts.Metric,
		sizes:    opts.Range,
		maxSpeed: opts.MaxSpeed,
		rng:      opts.Rand,
	}
}

// Load discards every existing body and builds a fresh set from entities,
// one body per entity, with random position and velocity.
func (s *Session) Load(entities []model.Entity) {
	entities = append([]model.Entity(nil), entities...)
	radii := normalize.Radii(entities, s.metric, s.sizes)
	w, h := s.arena.Size()

	bodies := make([]*physics.Body, len(entities))
	display := make([]Bubble, len(entities))
	for i, e := range entities {
		display[i] = Bubble{
			ID:       e.ID,
			Label:    e.Label(),
			Name:     e.Name,
			Image:    e.Image,
			Price:    e.FormattedPrice(),
			Change:   e.FormattedChange(),
			Positive: e.Positive(),
		}
		r := radii[i]
		bodies[i] = &physics.Body{
			ID: e.ID,
			Pos: physics.Vec{
				X: s.rng.Float64() * span(w, 2*r),
				Y: s.rng.Float64() * span(h, 2*r),
			},
			Vel: physics.Vec{
				X: (s.rng.Float64() - 0.5) * 2 * s.maxSpeed,
				Y: (s.rng.Float64() - 0.5) * 2 * s.maxSpeed,
			},
			Radius: r,
		}
	}

	s.entities = entities
	s.display = display
	s.arena.Reset(bodies)
}

// SetMetric switches the sizing metric and reassigns radii in place.
// Positions and velocities are kept.
func (s *Session) SetMetric(m model.Metric) {
	if m == s.metric {
		return
	}
	s.metric = m
	radii := normalize.Radii(s.entities, s.metric, s.sizes)
	for i, b := range s.arena.Bodies() {
		b.Radius = radii[i]
	}
}

// Metric is the active sizing metric.
func (s *Session) Metric() model.Metric {
	return s.metric
}

// Resize updates the arena extent; bodies are pulled inside on the next Step.
func (s *Session) Resize(w, h float64) {
	s.arena.Resize(w, h)
}

// Len is the number of live bodies.
func (s *Session) Len() int {
	return s.arena.Len()
}

// Entities returns the list the current bodies were built from.
func (s *Session) Entities() []model.Entity {
	return s.entities
}

// Bodies exposes the arena's bodies for inspection.
func (s *Session) Bodies() []*physics.Body {
	return s.arena.Bodies()
}

// Step advances the simulation by dt seconds and returns the resulting frame.
// With no bodies it is a no-op. Non-positive dt uses FixedStep.
func (s *Session) Step(dt float64) (Frame, physics.TickStats) {
	if s.arena.Len() == 0 {
		return s.Frame(), physics.TickStats{}
	}
	if !(dt > 0) {
		dt = FixedStep
	}
	if dt > MaxStep {
		dt = MaxStep
	}
	stats := s.arena.Tick(dt)
	s.tick++
	return s.Frame(), stats
}

// Frame renders the current state without advancing it.
func (s *Session) Frame() Frame {
	w, h := s.arena.Size()
	f := Frame{
		Tick:    s.tick,
		Width:   w,
		Height:  h,
		Metric:  s.metric,
		Bubbles: make([]Bubble, 0, s.arena.Len()),
	}
	for i, b := range s.arena.Bodies() {
		v := s.display[i]
		v.X, v.Y = b.Pos.X, b.Pos.Y
		v.Radius, v.Size = b.Radius, b.Size()
		f.Bubbles = append(f.Bubbles, v)
	}
	return f
}

func span(extent, size float64) float64 {
	if m := extent - size; m > 0 {
		return m
	}
	return 0
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

func defaultRand() Rand { return globalRand{} }
