package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
	"github.com/ze-codes/invest-agent/internal/persistence"
)

// seriesRepo implements SeriesRepo for PostgreSQL
type seriesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSeriesRepo creates a new PostgreSQL series repository
func NewSeriesRepo(db *sqlx.DB, timeout time.Duration) persistence.SeriesRepo {
	return &seriesRepo{
		db:      db,
		timeout: timeout,
	}
}

// GetWindow returns the point-in-time window for a series: for each
// observation date the latest vintage fetched at or before asOf, ascending
// by date, at most limit most-recent dates. Unknown series yield an empty
// window.
func (r *seriesRepo) GetWindow(ctx context.Context, seriesID string, asOf time.Time, limit int) (snapshot.Window, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, series_id, observation_date, value, publication_time, fetched_at
		FROM (
			SELECT id, series_id, observation_date, value, publication_time, fetched_at,
			       ROW_NUMBER() OVER (
			           PARTITION BY observation_date
			           ORDER BY publication_time DESC, fetched_at DESC
			       ) AS rn
			FROM series_vintages
			WHERE series_id = $1 AND fetched_at <= $2
		) ranked
		WHERE rn = 1
		ORDER BY observation_date DESC
		LIMIT $3`

	rows, err := r.db.QueryxContext(ctx, query, seriesID, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query window for %s: %w", seriesID, err)
	}
	defer rows.Close()

	var window snapshot.Window
	for rows.Next() {
		var v persistence.SeriesVintage
		if err := rows.StructScan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan vintage: %w", err)
		}
		window = append(window, snapshot.Observation{
			SeriesID:        v.SeriesID,
			ObservationDate: v.ObservationDate.UTC(),
			Value:           v.Value,
			VintageID:       v.ID,
			PublicationTime: v.PublicationTime.UTC(),
			FetchedAt:       v.FetchedAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vintages: %w", err)
	}

	// The query returns newest-first for the LIMIT; the window contract is
	// ascending by observation date.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window, nil
}

// InsertVintages appends vintage rows in one transaction. A duplicate
// (series, date, publication) print is skipped rather than revised.
func (r *seriesRepo) InsertVintages(ctx context.Context, vintages []persistence.SeriesVintage) error {
	if len(vintages) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(vintages)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO series_vintages
		(id, series_id, observation_date, value, publication_time, fetched_at, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (series_id, observation_date, publication_time) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range vintages {
		id := v.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err = stmt.ExecContext(ctx,
			id, v.SeriesID, v.ObservationDate, v.Value,
			v.PublicationTime, v.FetchedAt, v.Source)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				continue
			}
			return fmt.Errorf("failed to insert vintage for %s: %w", v.SeriesID, err)
		}
	}

	return tx.Commit()
}

// LatestFetch returns the most recent fetched_at across all vintages of a
// series, or the zero time when none exist.
func (r *seriesRepo) LatestFetch(ctx context.Context, seriesID string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COALESCE(MAX(fetched_at), 'epoch'::timestamptz)
		FROM series_vintages
		WHERE series_id = $1`

	var latest time.Time
	if err := r.db.QueryRowxContext(ctx, query, seriesID).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest fetch for %s: %w", seriesID, err)
	}
	if latest.Unix() == 0 {
		return time.Time{}, nil
	}
	return latest.UTC(), nil
}
