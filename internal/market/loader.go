package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/piratebg/crypto-bubbles/internal/metrics"
	"github.com/piratebg/crypto-bubbles/internal/model"
	"github.com/piratebg/crypto-bubbles/internal/sim"
	"github.com/piratebg/crypto-bubbles/internal/store"
)

// Dispatcher delivers commands to the simulation loop. *sim.Loop satisfies it.
type Dispatcher interface {
	Send(ctx context.Context, cmd any) error
}

// Result describes one Load.
type Result struct {
	Generation uint64 `json:"generation"`
	SnapshotID string `json:"snapshot_id"`
	Count      int    `json:"count"`
	Entities   int    `json:"entities"`
	Applied    bool   `json:"applied"` // false when a newer load superseded this one
	Cached     bool   `json:"cached"`  // served from a fresh stored snapshot
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	FreshFor time.Duration // reuse a stored snapshot younger than this; 0 disables
	MaxCount int
}

// Loader fetches entity lists and hands them to the loop. Every call gets a
// new generation; a response that arrives after a newer call started is
// discarded so an older fetch can never overwrite a newer one.
type Loader struct {
	source   Source
	store    store.Store
	loop     Dispatcher
	freshFor time.Duration
	maxCount int
	gen      atomic.Uint64
	now      func() time.Time
}

// NewLoader creates a loader.
func NewLoader(src Source, st store.Store, loop Dispatcher, cfg LoaderConfig) *Loader {
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = MaxCount
	}
	return &Loader{
		source:   src,
		store:    st,
		loop:     loop,
		freshFor: cfg.FreshFor,
		maxCount: cfg.MaxCount,
		now:      time.Now,
	}
}

// MaxCount is the largest count Load accepts.
func (l *Loader) MaxCount() int { return l.maxCount }

// Load fetches count entities and replaces the arena's body set. On error the
// arena is left untouched.
func (l *Loader) Load(ctx context.Context, count int) (Result, error) {
	if err := CheckCount(count, l.maxCount); err != nil {
		return Result{}, err
	}
	gen := l.gen.Add(1)

	snap, cached := l.fresh(ctx, count)
	if snap == nil {
		start := time.Now()
		entities, err := l.source.Markets(ctx, count)
		metrics.FetchLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.LoadsTotal.WithLabelValues(metrics.LoadError).Inc()
			slog.Error("market fetch failed", "generation", gen, "count", count, "error", err)
			return Result{}, fmt.Errorf("load %d entities: %w", count, err)
		}
		snap = &model.Snapshot{
			ID:        uuid.New().String(),
			Count:     count,
			FetchedAt: l.now().UTC(),
			Entities:  entities,
		}
		if err := l.store.SaveSnapshot(ctx, snap); err != nil {
			// The list is still usable; persistence is best effort.
			slog.Warn("snapshot save failed", "snapshot_id", snap.ID, "error", err)
		}
	}

	return l.apply(ctx, gen, snap, cached)
}

// Warm seeds the loop from the latest stored snapshot for count, so a restart
// shows bubbles before the first fetch completes. It returns store.ErrNotFound
// when nothing is stored.
func (l *Loader) Warm(ctx context.Context, count int) (Result, error) {
	snap, err := l.store.LatestSnapshot(ctx, count)
	if err != nil {
		return Result{}, err
	}
	return l.apply(ctx, l.gen.Add(1), snap, true)
}

func (l *Loader) fresh(ctx context.Context, count int) (*model.Snapshot, bool) {
	if l.freshFor <= 0 {
		return nil, false
	}
	snap, err := l.store.LatestSnapshot(ctx, count)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("snapshot lookup failed", "count", count, "error", err)
		}
		return nil, false
	}
	if l.now().Sub(snap.FetchedAt) >= l.freshFor {
		return nil, false
	}
	return snap, true
}

func (l *Loader) apply(ctx context.Context, gen uint64, snap *model.Snapshot, cached bool) (Result, error) {
	res := Result{
		Generation: gen,
		SnapshotID: snap.ID,
		Count:      snap.Count,
		Entities:   len(snap.Entities),
		Cached:     cached,
	}

	if latest := l.gen.Load(); latest != gen {
		metrics.LoadsTotal.WithLabelValues(metrics.LoadStale).Inc()
		slog.Info("discarding stale entity list", "generation", gen, "latest", latest)
		return res, nil
	}

	if err := l.loop.Send(ctx, sim.Replace{Generation: gen, Entities: snap.Entities}); err != nil {
		metrics.LoadsTotal.WithLabelValues(metrics.LoadError).Inc()
		return Result{}, fmt.Errorf("dispatch generation %d: %w", gen, err)
	}

	res.Applied = true
	if cached {
		metrics.LoadsTotal.WithLabelValues(metrics.LoadCached).Inc()
	} else {
		metrics.LoadsTotal.WithLabelValues(metrics.LoadApplied).Inc()
	}
	slog.Info("entity list loaded",
		"generation", gen,
		"snapshot_id", snap.ID,
		"count", snap.Count,
		"entities", len(snap.Entities),
		"cached", cached,
	)
	return res, nil
}
