// Package ingest runs one snapshot ingestion: fetch, normalize, persist the
// snapshot file and append it to the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/modelscout/internal/adapters/snapshotfile"
	"github.com/okian/modelscout/internal/adapters/source"
	"github.com/okian/modelscout/internal/domain/canonical"
	"github.com/okian/modelscout/internal/domain/catalog"
	"github.com/okian/modelscout/pkg/logger"
	"github.com/okian/modelscout/pkg/metrics"
)

// Appender is the store capability ingestion needs.
type Appender interface {
	AppendSnapshot(ctx context.Context, rows []catalog.Row) error
}

// SnapshotRef identifies a completed run.
type SnapshotRef struct {
	RunID      uuid.UUID `json:"run_id"`
	Source     string    `json:"source"`
	SnapshotTS time.Time `json:"snapshot_ts"`
	Path       string    `json:"path"`
	Rows       int       `json:"rows"`
}

// Controller serializes ingestion runs within the process.
type Controller struct {
	mu       sync.Mutex
	primary  source.Source
	fallback source.Source
	store    Appender
	dir      string
	now      func() time.Time
	logger   logger.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithPrimary sets the preferred source.
func WithPrimary(s source.Source) Option {
	return func(c *Controller) { c.primary = s }
}

// WithFallback sets the source used when the primary is unavailable.
func WithFallback(s source.Source) Option {
	return func(c *Controller) { c.fallback = s }
}

// WithStore sets the snapshot store.
func WithStore(a Appender) Option {
	return func(c *Controller) { c.store = a }
}

// WithSnapshotDir sets the root directory for snapshot files.
func WithSnapshotDir(dir string) Option {
	return func(c *Controller) {
		if dir != "" {
			c.dir = dir
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a Controller. Without a primary source the fallback is used
// directly.
func New(opts ...Option) *Controller {
	c := &Controller{
		dir: "data/bronze",
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("ingest")
	}
	return c
}

// RunIngest performs one ingestion run.
func (c *Controller) RunIngest(ctx context.Context) (SnapshotRef, error) {
	if c.store == nil {
		return SnapshotRef{}, ErrNoStore
	}
	if c.primary == nil && c.fallback == nil {
		return SnapshotRef{}, ErrNoSource
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	ref, err := c.run(ctx)
	metrics.RecordIngestLatency(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordIngestRun(ref.Source, metrics.OutcomeError)
		metrics.RecordError("ingest", "run")
		c.logger.Error(ctx, "ingestion failed", logger.String("source", ref.Source), logger.Error(err))
		return SnapshotRef{}, err
	}

	outcome := metrics.OutcomeSuccess
	if ref.Rows == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.RecordIngestRun(ref.Source, outcome)
	metrics.RecordIngestRows(ref.Source, ref.Rows)
	metrics.UpdateSnapshotTimestamp(ref.SnapshotTS.Unix())
	c.logger.Info(ctx, "ingestion complete",
		logger.String("run_id", ref.RunID.String()),
		logger.String("source", ref.Source),
		logger.Int("rows", ref.Rows),
		logger.String("path", ref.Path),
		logger.Duration("took", time.Since(start)),
	)
	return ref, nil
}

func (c *Controller) run(ctx context.Context) (SnapshotRef, error) {
	ref := SnapshotRef{RunID: uuid.New()}

	src, records, err := c.fetch(ctx)
	if src != nil {
		ref.Source = src.Name()
	}
	if err != nil {
		return ref, err
	}

	ref.SnapshotTS = c.now().UTC().Truncate(time.Second)
	frame := canonical.Normalize(records, ref.Source, ref.SnapshotTS)

	path, err := snapshotfile.Write(c.dir, snapshotfile.Header{
		RunID:      ref.RunID,
		Source:     ref.Source,
		SnapshotTS: ref.SnapshotTS,
	}, frame)
	if err != nil {
		return ref, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	ref.Path = path

	stored, err := snapshotfile.Read(path)
	if err != nil {
		return ref, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := c.store.AppendSnapshot(ctx, stored.Rows); err != nil {
		return ref, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	ref.Rows = len(stored.Rows)
	return ref, nil
}

// fetch tries the primary source and switches to the fallback only when the
// primary reports itself unavailable.
func (c *Controller) fetch(ctx context.Context) (source.Source, []map[string]any, error) {
	if c.primary != nil {
		records, err := c.primary.Fetch(ctx)
		switch {
		case err == nil:
			return c.primary, records, nil
		case !errors.Is(err, source.ErrUnavailable) || c.fallback == nil:
			return c.primary, nil, fmt.Errorf("fetch %s: %w", c.primary.Name(), err)
		}
		metrics.RecordIngestFallback()
		c.logger.Warn(ctx, "primary source unavailable, using fallback",
			logger.String("primary", c.primary.Name()),
			logger.String("fallback", c.fallback.Name()),
			logger.Error(err),
		)
	}

	records, err := c.fallback.Fetch(ctx)
	if err != nil {
		return c.fallback, nil, fmt.Errorf("fetch %s: %w", c.fallback.Name(), err)
	}
	return c.fallback, records, nil
}
