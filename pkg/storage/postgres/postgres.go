package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kzharvest/harvester/pkg/record"
	"github.com/kzharvest/harvester/pkg/storage"
)

// ErrMissingID is returned for records that carry no id to key the row on.
var ErrMissingID = errors.New("record has no id")

// Repository mirrors harvested records into a Postgres table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps an existing pool. Call EnsureSchema before using it.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the records table if it is missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
CREATE TABLE IF NOT EXISTS records (
  id BIGINT PRIMARY KEY,
  steamid64 TEXT,
  player_name TEXT,
  steam_id TEXT,
  server_id BIGINT,
  map_id BIGINT,
  stage BIGINT,
  mode TEXT,
  tickrate BIGINT,
  time NUMERIC,
  teleports BIGINT,
  created_on TEXT,
  updated_on TEXT,
  updated_by BIGINT,
  record_filter_id BIGINT,
  server_name TEXT,
  map_name TEXT,
  points BIGINT,
  replay_id BIGINT,
  raw JSONB NOT NULL,
  harvested_at TIMESTAMPTZ NOT NULL
);`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ERROR creating records table: %w", err)
	}
	return nil
}

// Persist upserts the record keyed by id. A record fetched again replaces the
// earlier copy, since upstream may edit records after creation.
func (r *Repository) Persist(ctx context.Context, rec record.Record) error {
	if rec.ID == nil {
		return fmt.Errorf("upsert record: %w", ErrMissingID)
	}
	line, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("upsert record: %w: %w", storage.ErrSerialization, err)
	}

	var timeVal *string
	if rec.Time != nil {
		s := rec.Time.String()
		timeVal = &s
	}

	const query = `
INSERT INTO records (
  id, steamid64, player_name, steam_id, server_id, map_id, stage, mode,
  tickrate, time, teleports, created_on, updated_on, updated_by,
  record_filter_id, server_name, map_name, points, replay_id, raw, harvested_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::text::numeric,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20::text::jsonb,$21)
ON CONFLICT (id)
DO UPDATE SET
  steamid64 = EXCLUDED.steamid64,
  player_name = EXCLUDED.player_name,
  steam_id = EXCLUDED.steam_id,
  server_id = EXCLUDED.server_id,
  map_id = EXCLUDED.map_id,
  stage = EXCLUDED.stage,
  mode = EXCLUDED.mode,
  tickrate = EXCLUDED.tickrate,
  time = EXCLUDED.time,
  teleports = EXCLUDED.teleports,
  created_on = EXCLUDED.created_on,
  updated_on = EXCLUDED.updated_on,
  updated_by = EXCLUDED.updated_by,
  record_filter_id = EXCLUDED.record_filter_id,
  server_name = EXCLUDED.server_name,
  map_name = EXCLUDED.map_name,
  points = EXCLUDED.points,
  replay_id = EXCLUDED.replay_id,
  raw = EXCLUDED.raw,
  harvested_at = EXCLUDED.harvested_at;
`
	_, err = r.pool.Exec(ctx, query,
		int64(*rec.ID),
		rec.SteamID64,
		rec.PlayerName,
		rec.SteamID,
		rec.ServerID,
		rec.MapID,
		rec.Stage,
		rec.Mode,
		rec.Tickrate,
		timeVal,
		rec.Teleports,
		rec.CreatedOn,
		rec.UpdatedOn,
		rec.UpdatedBy,
		rec.RecordFilterID,
		rec.ServerName,
		rec.MapName,
		rec.Points,
		rec.ReplayID,
		string(line[:len(line)-1]),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w: %w", rec.Label(), storage.ErrIO, err)
	}
	return nil
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// NewDB opens a pgx pool with tuned defaults.
func NewDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	// Two scanners write at most a few rows per second.
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}
