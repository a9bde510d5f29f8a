// Package store persists fetched entity snapshots. Implementations include
// PostgreSQL (source of truth), Redis (read-through cache), and in-memory
// (default and tests). Simulation state is never stored, only the lists the
// arena was built from.
package store

import (
	"context"
	"errors"

	"github.com/piratebg/crypto-bubbles/internal/model"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = errors.New("store: snapshot not found")

// DefaultListLimit bounds ListSnapshots when the caller passes limit <= 0.
const DefaultListLimit = 50

// Store is the snapshot persistence interface.
type Store interface {
	// SaveSnapshot persists s. Entities keep their order.
	SaveSnapshot(ctx context.Context, s *model.Snapshot) error

	// LatestSnapshot returns the most recently fetched snapshot for a
	// requested count.
	LatestSnapshot(ctx context.Context, count int) (*model.Snapshot, error)

	// GetSnapshot retrieves a snapshot by ID.
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)

	// ListSnapshots summarizes stored snapshots, newest first.
	ListSnapshots(ctx context.Context, limit int) ([]model.SnapshotInfo, error)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
