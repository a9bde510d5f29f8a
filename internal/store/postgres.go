package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/piratebg/crypto-bubbles/internal/model"
)

//go:embed schema.sql
var schema string

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the snapshot tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (id, requested_count, fetched_at) VALUES ($1, $2, $3)`,
		snap.ID, snap.Count, snap.FetchedAt,
	); err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.ID, err)
	}

	batch := &pgx.Batch{}
	for i, e := range snap.Entities {
		batch.Queue(
			`INSERT INTO snapshot_entities
			   (snapshot_id, position, entity_id, symbol, name, image,
			    current_price, market_cap, market_cap_rank, price_change_percentage_24h)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9, $10::NUMERIC)`,
			snap.ID, i, e.ID, e.Symbol, e.Name, e.Image,
			e.CurrentPrice.String(), e.MarketCap.String(), e.MarketCapRank,
			e.PriceChangePercentage24h.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert entities for %s: %w", snap.ID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, count int) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT id::TEXT, requested_count, fetched_at
		 FROM snapshots WHERE requested_count = $1
		 ORDER BY fetched_at DESC LIMIT 1`, count).
		Scan(&snap.ID, &snap.Count, &snap.FetchedAt)
	if err != nil {
		return nil, notFound(fmt.Sprintf("latest snapshot for count %d", count), err)
	}
	return s.withEntities(ctx, &snap)
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT id::TEXT, requested_count, fetched_at
		 FROM snapshots WHERE id::TEXT = $1`, id).
		Scan(&snap.ID, &snap.Count, &snap.FetchedAt)
	if err != nil {
		return nil, notFound("snapshot "+id, err)
	}
	return s.withEntities(ctx, &snap)
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, limit int) ([]model.SnapshotInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id::TEXT, s.requested_count, s.fetched_at,
		        (SELECT COUNT(*) FROM snapshot_entities e WHERE e.snapshot_id = s.id)
		 FROM snapshots s
		 ORDER BY s.fetched_at DESC
		 LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []model.SnapshotInfo
	for rows.Next() {
		var info model.SnapshotInfo
		var fetchedAt time.Time
		if err := rows.Scan(&info.ID, &info.Count, &fetchedAt, &info.Entities); err != nil {
			return nil, err
		}
		info.FetchedAt = fetchedAt.UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *PostgresStore) withEntities(ctx context.Context, snap *model.Snapshot) (*model.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, symbol, name, image,
		        current_price::TEXT, market_cap::TEXT, market_cap_rank,
		        price_change_percentage_24h::TEXT
		 FROM snapshot_entities WHERE snapshot_id = $1::UUID
		 ORDER BY position`, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("entities for %s: %w", snap.ID, err)
	}
	defer rows.Close()

	entities, err := scanEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("entities for %s: %w", snap.ID, err)
	}
	snap.Entities = entities
	snap.FetchedAt = snap.FetchedAt.UTC()
	return snap, nil
}

// pgxRows is the subset of pgx.Rows scanEntities needs.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanEntities(rows pgxRows) ([]model.Entity, error) {
	var entities []model.Entity
	for rows.Next() {
		var e model.Entity
		var priceS, capS, changeS string

		if err := rows.Scan(&e.ID, &e.Symbol, &e.Name, &e.Image,
			&priceS, &capS, &e.MarketCapRank, &changeS); err != nil {
			return nil, err
		}

		e.CurrentPrice, _ = decimal.NewFromString(priceS)
		e.MarketCap, _ = decimal.NewFromString(capS)
		e.PriceChangePercentage24h, _ = decimal.NewFromString(changeS)

		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
