package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/piratebg/crypto-bubbles/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and then refresh the latest-per-count key;
// reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     redis.Cmdable
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if err := s.primary.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	s.cacheSnapshot(ctx, snap)
	s.rdb.Set(ctx, latestKey(snap.Count), snap.ID, s.ttl)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	if snap, ok := s.cached(ctx, id); ok {
		return snap, nil
	}

	snap, err := s.primary.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSnapshot(ctx, snap)
	return snap, nil
}

func (s *CachedStore) LatestSnapshot(ctx context.Context, count int) (*model.Snapshot, error) {
	// Try cache via count→snapshotID mapping.
	id, err := s.rdb.Get(ctx, latestKey(count)).Result()
	if err == nil {
		if snap, ok := s.cached(ctx, id); ok {
			return snap, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("snapshot cache unavailable", "error", err)
	}

	snap, err := s.primary.LatestSnapshot(ctx, count)
	if err != nil {
		return nil, err
	}
	s.cacheSnapshot(ctx, snap)
	s.rdb.Set(ctx, latestKey(count), snap.ID, s.ttl)
	return snap, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListSnapshots(ctx context.Context, limit int) ([]model.SnapshotInfo, error) {
	return s.primary.ListSnapshots(ctx, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cached(ctx context.Context, id string) (*model.Snapshot, bool) {
	data, err := s.rdb.Get(ctx, snapshotKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var snap model.Snapshot
	if json.Unmarshal(data, &snap) != nil {
		return nil, false
	}
	return &snap, true
}

func (s *CachedStore) cacheSnapshot(ctx context.Context, snap *model.Snapshot) {
	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, snapshotKey(snap.ID), data, s.ttl)
	}
}

func snapshotKey(id string) string { return fmt.Sprintf("snapshot:%s", id) }
func latestKey(count int) string   { return fmt.Sprintf("snapshot:latest:%d", count) }
