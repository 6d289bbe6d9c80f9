package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
	"github.com/ze-codes/invest-agent/internal/persistence"
)

// snapshotRepo implements SnapshotRepo for PostgreSQL
type snapshotRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotRepo creates a new PostgreSQL snapshot repository
func NewSnapshotRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotRepo {
	return &snapshotRepo{
		db:      db,
		timeout: timeout,
	}
}

// Insert persists a computed snapshot with its frozen input set. Snapshots
// are append-only; a replay of the same frozen inputs writes a new row.
func (r *snapshotRepo) Insert(ctx context.Context, snap *snapshot.Snapshot) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	query := `
		INSERT INTO snapshots
		(id, as_of, horizon, frozen_inputs_id, label, tilt, score, max_score, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = tx.ExecContext(ctx, query,
		id, snap.AsOf, snap.Horizon, snap.FrozenInputsID,
		snap.Regime.Label, snap.Regime.Tilt, snap.Regime.Score, snap.Regime.MaxScore,
		body)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}

	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_indicators
		(snapshot_id, indicator_id, category, status, z, streak)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare indicators statement: %w", err)
	}
	defer rowStmt.Close()

	for _, row := range snap.Evidence {
		_, err = rowStmt.ExecContext(ctx,
			id, row.IndicatorID, row.Category, string(row.Status),
			row.Diagnostic.Z, row.Diagnostic.StreakCurrent)
		if err != nil {
			return "", fmt.Errorf("failed to insert snapshot indicator: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_frozen_inputs
		(snapshot_id, indicator_id, series_id, vintage_id, observation_date)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare frozen inputs statement: %w", err)
	}
	defer stmt.Close()

	for _, fi := range snap.FrozenInputs {
		_, err = stmt.ExecContext(ctx,
			id, fi.IndicatorID, fi.SeriesID, fi.VintageID, fi.ObservationDate)
		if err != nil {
			return "", fmt.Errorf("failed to insert frozen input: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return id, nil
}

// GetByFrozenID retrieves the snapshot persisted for a frozen input set,
// nil when none was recorded.
func (r *snapshotRepo) GetByFrozenID(ctx context.Context, horizon, frozenID string) (*persistence.SnapshotRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, as_of, horizon, frozen_inputs_id, label, tilt, score, max_score, body, created_at
		FROM snapshots
		WHERE horizon = $1 AND frozen_inputs_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var rec persistence.SnapshotRecord
	err := r.db.QueryRowxContext(ctx, query, horizon, frozenID).StructScan(&rec)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot by frozen id: %w", err)
	}
	return &rec, nil
}

// Latest returns the most recently computed snapshot for a horizon, nil
// when the horizon has never been evaluated.
func (r *snapshotRepo) Latest(ctx context.Context, horizon string) (*persistence.SnapshotRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, as_of, horizon, frozen_inputs_id, label, tilt, score, max_score, body, created_at
		FROM snapshots
		WHERE horizon = $1
		ORDER BY as_of DESC, created_at DESC
		LIMIT 1`

	var rec persistence.SnapshotRecord
	err := r.db.QueryRowxContext(ctx, query, horizon).StructScan(&rec)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &rec, nil
}
