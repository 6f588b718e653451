// Package repository stores append-only model snapshots and serves the
// history and latest-per-model views.
package repository

import (
	"context"
	"time"

	"github.com/okian/modelscout/internal/domain/catalog"
)

// Counts summarizes store contents.
type Counts struct {
	HistoryRows int `json:"history_rows"`
	LatestRows  int `json:"latest_rows"`
	Snapshots   int `json:"snapshots"`
}

// Store provides append and read access to model snapshots.
type Store interface {
	// AppendSnapshot writes rows as one atomic batch. Prior rows are never
	// modified.
	AppendSnapshot(ctx context.Context, rows []catalog.Row) error

	// Latest returns one row per canonical key: the one with the newest
	// snapshot_ts, later inserts winning ties. Ordered by canonical key.
	Latest(ctx context.Context) ([]catalog.Row, error)

	// History returns every stored row ordered by snapshot_ts then insertion.
	History(ctx context.Context) ([]catalog.Row, error)

	// LatestSnapshotTime returns the newest snapshot_ts in the store. ok is
	// false when the store is empty.
	LatestSnapshotTime(ctx context.Context) (ts time.Time, ok bool, err error)

	// Counts returns row and snapshot totals.
	Counts(ctx context.Context) (Counts, error)

	// Close releases underlying resources.
	Close() error
}
