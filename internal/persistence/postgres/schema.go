package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// schema is applied idempotently at startup. Vintage rows are append-only:
// a data revision is a new (series, date, publication) print, never an
// update in place.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS series_vintages (
		id               TEXT PRIMARY KEY,
		series_id        TEXT NOT NULL,
		observation_date DATE NOT NULL,
		value            DOUBLE PRECISION NOT NULL,
		publication_time TIMESTAMPTZ NOT NULL,
		fetched_at       TIMESTAMPTZ NOT NULL,
		source           TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (series_id, observation_date, publication_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_series_vintages_window
		ON series_vintages (series_id, fetched_at, observation_date DESC)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		id               TEXT PRIMARY KEY,
		as_of            TIMESTAMPTZ NOT NULL,
		horizon          TEXT NOT NULL,
		frozen_inputs_id TEXT NOT NULL,
		label            TEXT NOT NULL,
		tilt             TEXT NOT NULL,
		score            INTEGER NOT NULL,
		max_score        INTEGER NOT NULL,
		body             JSONB NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_horizon_frozen
		ON snapshots (horizon, frozen_inputs_id)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_horizon_asof
		ON snapshots (horizon, as_of DESC)`,
	`CREATE TABLE IF NOT EXISTS snapshot_indicators (
		snapshot_id  TEXT NOT NULL REFERENCES snapshots(id),
		indicator_id TEXT NOT NULL,
		category     TEXT NOT NULL,
		status       TEXT NOT NULL,
		z            DOUBLE PRECISION,
		streak       INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshot_indicators_snapshot
		ON snapshot_indicators (snapshot_id)`,
	`CREATE TABLE IF NOT EXISTS snapshot_frozen_inputs (
		snapshot_id      TEXT NOT NULL REFERENCES snapshots(id),
		indicator_id     TEXT NOT NULL,
		series_id        TEXT NOT NULL,
		vintage_id       TEXT NOT NULL,
		observation_date TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshot_frozen_inputs_snapshot
		ON snapshot_frozen_inputs (snapshot_id)`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

// Connect opens a pooled connection and verifies it.
func Connect(ctx context.Context, dsn string, timeout time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}
