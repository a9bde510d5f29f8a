package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/piratebg/crypto-bubbles/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for tests and as
// the default when no database is configured. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*model.Snapshot
	order     []string // insertion order
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*model.Snapshot),
	}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[snap.ID]; ok {
		return fmt.Errorf("snapshot %s already exists", snap.ID)
	}
	s.snapshots[snap.ID] = clone(snap)
	s.order = append(s.order, snap.ID)
	return nil
}

func (s *MemoryStore) LatestSnapshot(_ context.Context, count int) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Snapshot
	for _, id := range s.order {
		snap := s.snapshots[id]
		if snap.Count != count {
			continue
		}
		if latest == nil || !snap.FetchedAt.Before(latest.FetchedAt) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("latest snapshot for count %d: %w", count, ErrNotFound)
	}
	return clone(latest), nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	return clone(snap), nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, limit int) ([]model.SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]model.SnapshotInfo, 0, len(s.order))
	for _, id := range s.order {
		infos = append(infos, s.snapshots[id].Info())
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].FetchedAt.After(infos[j].FetchedAt)
	})
	if limit = listLimit(limit); len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// clone copies a snapshot so callers cannot mutate stored state.
func clone(snap *model.Snapshot) *model.Snapshot {
	c := *snap
	c.Entities = append([]model.Entity(nil), snap.Entities...)
	return &c
}
