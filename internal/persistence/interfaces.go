package persistence

import (
	"context"
	"time"

	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
)

// SeriesVintage is one immutable print of a series observation. Revisions
// never overwrite: a revised value arrives as a new vintage row and earlier
// vintages stay queryable for replay.
type SeriesVintage struct {
	ID              string    `db:"id"`
	SeriesID        string    `db:"series_id"`
	ObservationDate time.Time `db:"observation_date"`
	Value           float64   `db:"value"`
	PublicationTime time.Time `db:"publication_time"`
	FetchedAt       time.Time `db:"fetched_at"`
	Source          string    `db:"source"`
	CreatedAt       time.Time `db:"created_at"`
}

// SnapshotRecord is a persisted evaluation result for audit and replay.
type SnapshotRecord struct {
	ID             string    `db:"id"`
	AsOf           time.Time `db:"as_of"`
	Horizon        string    `db:"horizon"`
	FrozenInputsID string    `db:"frozen_inputs_id"`
	Label          string    `db:"label"`
	Tilt           string    `db:"tilt"`
	Score          int       `db:"score"`
	MaxScore       int       `db:"max_score"`
	Body           []byte    `db:"body"`
	CreatedAt      time.Time `db:"created_at"`
}

// SeriesRepo stores observation vintages and serves point-in-time windows.
type SeriesRepo interface {
	snapshot.ObservationStore

	// InsertVintages appends new vintage rows. Duplicate
	// (series, date, publication) prints are ignored.
	InsertVintages(ctx context.Context, vintages []SeriesVintage) error

	// LatestFetch returns the most recent fetch time for a series, zero
	// time when the series has never been fetched.
	LatestFetch(ctx context.Context, seriesID string) (time.Time, error)
}

// SnapshotRepo persists computed snapshots. Insert-only: a snapshot is
// immutable once written.
type SnapshotRepo interface {
	Insert(ctx context.Context, snap *snapshot.Snapshot) (string, error)
	GetByFrozenID(ctx context.Context, horizon, frozenID string) (*SnapshotRecord, error)
	Latest(ctx context.Context, horizon string) (*SnapshotRecord, error)
}
