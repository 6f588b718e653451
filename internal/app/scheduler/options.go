package scheduler

import (
	"time"

	"github.com/okian/modelscout/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithInterval sets how often the freshness check runs.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRunOnStart makes the first check run immediately instead of after one
// interval.
func WithRunOnStart(b bool) Option {
	return func(s *Scheduler) { s.runOnStart = b }
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
