package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/okian/modelscout/internal/domain/catalog"
)

const (
	defaultBusyTimeout  = 5 * time.Second
	defaultMaxOpenConns = 4

	tsLayout = time.RFC3339
)

//go:embed schema.sql
var schemaSQL string

const insertRow = `INSERT INTO bronze_models (
	snapshot_ts, source, model_name, provider,
	quality_index, coding_index, math_index, reasoning_index,
	output_tokens_per_s, ttft_s, price_input_per_1m, price_output_per_1m,
	context_window, is_open_source, license, canonical_model_key
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectColumns = `snapshot_ts, source, model_name, provider,
	quality_index, coding_index, math_index, reasoning_index,
	output_tokens_per_s, ttft_s, price_input_per_1m, price_output_per_1m,
	context_window, is_open_source, license, canonical_model_key`

// SQLiteStore keeps snapshots in an embedded SQLite database. Rows land in
// bronze_models; reads go through the models_history and models_latest views.
type SQLiteStore struct {
	db           *sql.DB
	path         string
	busyTimeout  time.Duration
	maxOpenConns int
	closed       atomic.Bool
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and applies the schema.
// Opening an initialized database again is safe.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		path:         path,
		busyTimeout:  defaultBusyTimeout,
		maxOpenConns: defaultMaxOpenConns,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir for %s: %w", path, err)
	}

	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(s.busyTimeout.Milliseconds()))
	q.Set("_journal_mode", "WAL")
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	s.db = db
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// AppendSnapshot inserts rows in one transaction.
func (s *SQLiteStore) AppendSnapshot(ctx context.Context, rows []catalog.Row) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := validateBatch(rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertRow)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		_, err = stmt.ExecContext(ctx,
			r.SnapshotTS.UTC().Truncate(time.Second).Format(tsLayout),
			r.Source,
			r.ModelName,
			r.Provider,
			r.QualityIndex,
			r.CodingIndex,
			r.MathIndex,
			r.ReasoningIndex,
			r.OutputTokensPerS,
			r.TTFTS,
			r.PriceInputPer1M,
			r.PriceOutputPer1M,
			r.ContextWindow,
			r.IsOpenSource,
			r.License,
			r.CanonicalModelKey,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", r.CanonicalModelKey, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Latest reads the models_latest view.
func (s *SQLiteStore) Latest(ctx context.Context) ([]catalog.Row, error) {
	return s.query(ctx, "SELECT "+selectColumns+" FROM models_latest ORDER BY canonical_model_key")
}

// History reads the models_history view.
func (s *SQLiteStore) History(ctx context.Context) ([]catalog.Row, error) {
	return s.query(ctx, "SELECT "+selectColumns+" FROM models_history ORDER BY snapshot_ts, id")
}

// LatestSnapshotTime returns MAX(snapshot_ts) of the latest view.
func (s *SQLiteStore) LatestSnapshotTime(ctx context.Context) (time.Time, bool, error) {
	if s.closed.Load() {
		return time.Time{}, false, ErrClosed
	}
	var raw sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(snapshot_ts) FROM models_latest").Scan(&raw); err != nil {
		return time.Time{}, false, fmt.Errorf("latest snapshot time: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}
	ts, err := time.Parse(tsLayout, raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse snapshot_ts %q: %w", raw.String, err)
	}
	return ts.UTC(), true, nil
}

// Counts returns totals over bronze_models and models_latest.
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	if s.closed.Load() {
		return Counts{}, ErrClosed
	}
	var c Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM bronze_models),
		(SELECT COUNT(*) FROM models_latest),
		(SELECT COUNT(DISTINCT snapshot_ts) FROM bronze_models)`).Scan(&c.HistoryRows, &c.LatestRows, &c.Snapshots)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, q string) ([]catalog.Row, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rs, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rs.Close()

	out := []catalog.Row{}
	for rs.Next() {
		row, err := scanRow(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func scanRow(rs *sql.Rows) (catalog.Row, error) {
	var (
		r        catalog.Row
		ts       string
		provider sql.NullString
		license  sql.NullString
		floats   [8]sql.NullFloat64
		ctxWin   sql.NullInt64
		open     sql.NullBool
	)
	err := rs.Scan(
		&ts, &r.Source, &r.ModelName, &provider,
		&floats[0], &floats[1], &floats[2], &floats[3],
		&floats[4], &floats[5], &floats[6], &floats[7],
		&ctxWin, &open, &license, &r.CanonicalModelKey,
	)
	if err != nil {
		return catalog.Row{}, fmt.Errorf("scan row: %w", err)
	}
	parsed, err := time.Parse(tsLayout, ts)
	if err != nil {
		return catalog.Row{}, fmt.Errorf("parse snapshot_ts %q: %w", ts, err)
	}
	r.SnapshotTS = parsed.UTC()
	r.Provider = nullString(provider)
	r.License = nullString(license)
	r.QualityIndex = nullFloat(floats[0])
	r.CodingIndex = nullFloat(floats[1])
	r.MathIndex = nullFloat(floats[2])
	r.ReasoningIndex = nullFloat(floats[3])
	r.OutputTokensPerS = nullFloat(floats[4])
	r.TTFTS = nullFloat(floats[5])
	r.PriceInputPer1M = nullFloat(floats[6])
	r.PriceOutputPer1M = nullFloat(floats[7])
	if ctxWin.Valid {
		r.ContextWindow = &ctxWin.Int64
	}
	if open.Valid {
		r.IsOpenSource = &open.Bool
	}
	return r, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

// validateBatch rejects rows that would break the latest-view invariant.
func validateBatch(rows []catalog.Row) error {
	if len(rows) == 0 {
		return nil
	}
	ts := rows[0].SnapshotTS.UTC().Truncate(time.Second)
	for i := range rows {
		if rows[i].CanonicalModelKey == "" {
			return fmt.Errorf("%w: row %d (%s)", ErrEmptyKey, i, rows[i].ModelName)
		}
		if !rows[i].SnapshotTS.UTC().Truncate(time.Second).Equal(ts) {
			return fmt.Errorf("%w: row %d", ErrMixedSnapshot, i)
		}
	}
	return nil
}

// Open returns the store selected by driver: "sqlite" or "memory".
func Open(ctx context.Context, driver, path string, opts ...Option) (Store, error) {
	switch driver {
	case "", "sqlite":
		return OpenSQLite(ctx, path, opts...)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
