// Package freshness decides whether the catalog is stale and refreshes it
// before a recommendation is served.
package freshness

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/modelscout/internal/app/ingest"
	"github.com/okian/modelscout/pkg/logger"
	"github.com/okian/modelscout/pkg/metrics"
)

// RefreshFailedPrefix starts the warning returned when a triggered ingestion
// fails.
const RefreshFailedPrefix = "Refresh failed; using existing warehouse snapshot. Error: "

// SnapshotClock reports the newest stored snapshot time.
type SnapshotClock interface {
	LatestSnapshotTime(ctx context.Context) (time.Time, bool, error)
}

// Ingester runs one ingestion.
type Ingester interface {
	RunIngest(ctx context.Context) (ingest.SnapshotRef, error)
}

// Outcome reports what MaybeRefresh did.
type Outcome struct {
	Triggered bool
	Snapshot  *ingest.SnapshotRef
	Warning   string
}

// Controller holds no freshness state of its own; every call consults the
// store.
type Controller struct {
	store    SnapshotClock
	ingester Ingester
	now      func() time.Time
	logger   logger.Logger
}

// Option configures a Controller.
type Option func(*Controller)

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

// New constructs a Controller.
func New(store SnapshotClock, ingester Ingester, opts ...Option) *Controller {
	c := &Controller{store: store, ingester: ingester, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("freshness")
	}
	return c
}

// MaybeRefresh ingests when forced, when no snapshot exists, or when the
// newest snapshot is older than maxAgeHours. It never returns an error;
// ingestion failures become a warning.
func (c *Controller) MaybeRefresh(ctx context.Context, force bool, maxAgeHours float64) Outcome {
	reason := c.reason(ctx, force, maxAgeHours)
	if reason == "" {
		metrics.RecordRefresh(metrics.OutcomeSkipped)
		return Outcome{}
	}

	c.logger.Info(ctx, "refreshing catalog", logger.String("reason", reason))
	ref, err := c.ingester.RunIngest(ctx)
	if err != nil {
		metrics.RecordRefresh(metrics.OutcomeError)
		c.logger.Warn(ctx, "refresh failed, serving existing snapshot", logger.Error(err))
		return Outcome{Triggered: true, Warning: fmt.Sprintf("%s%v", RefreshFailedPrefix, err)}
	}
	metrics.RecordRefresh(metrics.OutcomeSuccess)
	return Outcome{Triggered: true, Snapshot: &ref}
}

func (c *Controller) reason(ctx context.Context, force bool, maxAgeHours float64) string {
	if force {
		return "forced"
	}
	latest, ok, err := c.store.LatestSnapshotTime(ctx)
	if err != nil {
		c.logger.Warn(ctx, "cannot read latest snapshot time", logger.Error(err))
		return "unreadable"
	}
	if !ok {
		return "empty"
	}
	// Compared in hours; budgets past the Duration range must not wrap.
	if c.now().UTC().Sub(latest).Hours() > maxAgeHours {
		return "stale"
	}
	return ""
}
