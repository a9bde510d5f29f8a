package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/piratebg/crypto-bubbles/internal/metrics"
	"github.com/piratebg/crypto-bubbles/internal/model"
)

// ErrStopped is returned by Send once the loop has exited.
var ErrStopped = errors.New("sim: loop stopped")

// Replace swaps in a new entity list. Generations must increase; a Replace
// whose generation is not newer than the last applied one is dropped.
type Replace struct {
	Generation uint64
	Entities   []model.Entity
}

// SetMetric switches the sizing metric.
type SetMetric struct {
	Metric model.Metric
}

// Resize changes the arena extent, e.g. on viewport rotation.
type Resize struct {
	Width, Height float64
}

// Sink receives every BroadcastEvery-th frame. It runs on the loop goroutine
// and must not block.
type Sink func(Frame)

// LoopConfig sets the loop cadence.
type LoopConfig struct {
	FrameHz     int
	BroadcastHz int
}

// DefaultLoopConfig ticks at display rate and broadcasts every other frame.
var DefaultLoopConfig = LoopConfig{FrameHz: 60, BroadcastHz: 30}

// Loop is the frame driver. It is the only goroutine that touches its
// Session; everything else talks to it through Inbox.
type Loop struct {
	Inbox chan any

	session        *Session
	frameHz        int
	broadcastEvery int
	sink           Sink
	latest         atomic.Pointer[Frame]
	generation     atomic.Uint64 // last applied Replace
	ticks          int
	done           chan struct{}
}

// NewLoop wraps s. sink may be nil.
func NewLoop(s *Session, cfg LoopConfig, sink Sink) *Loop {
	if cfg.FrameHz <= 0 {
		cfg.FrameHz = DefaultLoopConfig.FrameHz
	}
	if cfg.BroadcastHz <= 0 || cfg.BroadcastHz > cfg.FrameHz {
		cfg.BroadcastHz = cfg.FrameHz
	}
	broadcastEvery := cfg.FrameHz / cfg.BroadcastHz
	if broadcastEvery <= 0 {
		broadcastEvery = 1
	}
	return &Loop{
		Inbox:          make(chan any, 64),
		session:        s,
		frameHz:        cfg.FrameHz,
		broadcastEvery: broadcastEvery,
		sink:           sink,
		done:           make(chan struct{}),
	}
}

// Run drives the session until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(time.Second / time.Duration(l.frameHz))
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-l.Inbox:
			l.handleCommand(cmd)
		case now := <-ticker.C:
			l.step(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Send enqueues cmd, blocking until the loop accepts it, ctx is done or the
// loop stops.
func (l *Loop) Send(ctx context.Context, cmd any) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.Inbox <- cmd:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post enqueues cmd without blocking. It reports false when the inbox is
// full or the loop has stopped.
func (l *Loop) Post(cmd any) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.Inbox <- cmd:
		return true
	default:
		return false
	}
}

// Latest returns the most recent frame, or nil before the first tick.
func (l *Loop) Latest() *Frame {
	return l.latest.Load()
}

// Generation is the generation of the last applied Replace.
func (l *Loop) Generation() uint64 {
	return l.generation.Load()
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) step(dt float64) {
	start := time.Now()
	frame, stats := l.session.Step(dt)
	if l.session.Len() > 0 {
		metrics.ObserveTick(time.Since(start), l.session.Len(), stats.Separated, stats.Coincident)
	}
	l.latest.Store(&frame)

	l.ticks++
	if l.sink != nil && l.ticks%l.broadcastEvery == 0 {
		l.sink(frame)
	}
}

func (l *Loop) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Replace:
		if c.Generation <= l.generation.Load() {
			slog.Debug("dropping stale entity list",
				"generation", c.Generation,
				"applied", l.generation.Load(),
			)
			return
		}
		l.session.Load(c.Entities)
		l.generation.Store(c.Generation)
		metrics.Bodies.Set(float64(l.session.Len()))
		slog.Info("entity list applied", "generation", c.Generation, "bodies", l.session.Len())
	case SetMetric:
		l.session.SetMetric(c.Metric)
		slog.Info("metric switched", "metric", c.Metric)
	case Resize:
		l.session.Resize(c.Width, c.Height)
		slog.Info("arena resized", "width", c.Width, "height", c.Height)
	default:
		slog.Warn("unknown loop command", "type", fmt.Sprintf("%T", cmd))
	}
}
