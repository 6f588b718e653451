// Package scheduler keeps the warehouse fresh in the background by running
// the freshness check on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/modelscout/internal/app/freshness"
	"github.com/okian/modelscout/pkg/logger"
)

const defaultInterval = time.Hour

// Refresher runs one freshness check with the configured staleness budget.
type Refresher interface {
	MaybeRefresh(ctx context.Context) (freshness.Outcome, error)
}

// Scheduler drives a Refresher until it is shut down.
type Scheduler struct {
	refresher  Refresher
	interval   time.Duration
	runOnStart bool

	once     sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a scheduler for r.
func New(r Refresher, opts ...Option) *Scheduler {
	s := &Scheduler{
		refresher: r,
		interval:  defaultInterval,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("scheduler")
	}
	return s
}

// Run blocks until ctx is canceled or Shutdown is called.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	s.logger.Info(ctx, "refresh scheduler started", logger.Duration("interval", s.interval))
	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Shutdown stops the loop and waits for an in-flight check to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.shutdown) })

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	out, err := s.refresher.MaybeRefresh(ctx)
	switch {
	case err != nil:
		s.logger.Error(ctx, "scheduled refresh failed", logger.Error(err))
	case out.Warning != "":
		s.logger.Warn(ctx, "scheduled refresh kept the existing snapshot", logger.String("warning", out.Warning))
	case out.Triggered && out.Snapshot != nil:
		s.logger.Info(ctx, "scheduled refresh ingested a snapshot",
			logger.String("source", out.Snapshot.Source),
			logger.Int("rows", out.Snapshot.Rows),
		)
	default:
		s.logger.Debug(ctx, "snapshot is fresh")
	}
}
