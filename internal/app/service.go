// Package service wires the store, ingestion, freshness and scoring into the
// operations exposed by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/modelscout/internal/adapters/repository"
	"github.com/okian/modelscout/internal/adapters/source"
	"github.com/okian/modelscout/internal/app/freshness"
	"github.com/okian/modelscout/internal/app/ingest"
	"github.com/okian/modelscout/internal/domain/catalog"
	"github.com/okian/modelscout/internal/domain/profile"
	"github.com/okian/modelscout/internal/domain/scoring"
	"github.com/okian/modelscout/pkg/logger"
	"github.com/okian/modelscout/pkg/metrics"
)

// Request is one recommendation query. Nil pointers take the service
// defaults.
type Request struct {
	TaskText          string   `json:"task_text" validate:"required"`
	TopK              *int     `json:"topk,omitempty" validate:"omitempty,gte=1"`
	MaxPricePer1M     *float64 `json:"max_price_per_1m,omitempty" validate:"omitempty,gte=0"`
	MinContext        *int64   `json:"min_context,omitempty" validate:"omitempty,gte=0"`
	ProviderAllowlist string   `json:"provider_allowlist,omitempty"`
	MissingPolicy     string   `json:"missing_policy,omitempty"`
	Refresh           bool     `json:"refresh,omitempty"`
	MaxAgeHours       *float64 `json:"max_age_hours,omitempty" validate:"omitempty,gte=0"`
}

// Response is the ranked answer to a Request.
type Response struct {
	TaskProfile     profile.Profile          `json:"task_profile"`
	SnapshotTS      *time.Time               `json:"snapshot_ts"`
	Recommendations []scoring.Recommendation `json:"recommendations"`
	Warning         string                   `json:"warning,omitempty"`
}

// Service implements the API dependencies for the recommender.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ownsStore bool
	ingester  *ingest.Controller
	freshness *freshness.Controller
	engine    *scoring.Engine
	primary   source.Source
	fallback  source.Source
	validate  *validator.Validate

	// Configuration
	storeDriver   string
	dbPath        string
	snapshotDir   string
	defaultTopK   int
	maxTopK       int
	missingPolicy scoring.MissingPolicy
	maxAgeHours   float64
	now           func() time.Time

	// State
	started   bool
	startedAt time.Time

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects an opened store. The service does not close it.
func WithStore(s repository.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithStoreDriver selects the store opened by Start.
func WithStoreDriver(driver, path string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
		}
		s.dbPath = path
	}
}

// WithSnapshotDir sets the root directory for snapshot files.
func WithSnapshotDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.snapshotDir = dir
		}
	}
}

// WithPrimarySource sets the preferred upstream source.
func WithPrimarySource(src source.Source) Option {
	return func(s *Service) { s.primary = src }
}

// WithFallbackSource sets the source used when the primary is unavailable.
func WithFallbackSource(src source.Source) Option {
	return func(s *Service) { s.fallback = src }
}

// WithDefaultTopK sets the result count used when a request leaves it unset.
func WithDefaultTopK(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultTopK = n
		}
	}
}

// WithMaxTopK caps the requested result count.
func WithMaxTopK(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTopK = n
		}
	}
}

// WithMissingPolicy sets the default missing-data policy.
func WithMissingPolicy(p scoring.MissingPolicy) Option {
	return func(s *Service) { s.missingPolicy = p }
}

// WithMaxAgeHours sets the default staleness budget.
func WithMaxAgeHours(h float64) Option {
	return func(s *Service) {
		if h >= 0 {
			s.maxAgeHours = h
		}
	}
}

// WithClock overrides the time source used for snapshots and staleness.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver:   "memory",
		snapshotDir:   "data/bronze",
		defaultTopK:   5,
		maxTopK:       20,
		missingPolicy: scoring.Penalize,
		maxAgeHours:   24,
		now:           time.Now,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fallback == nil {
		s.fallback = source.NewFixtureSource("")
	}
	return s
}

// Start opens the store and builds the pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil {
		st, err := repository.Open(ctx, s.storeDriver, s.dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = st
		s.ownsStore = true
	}

	s.ingester = ingest.New(
		ingest.WithPrimary(s.primary),
		ingest.WithFallback(s.fallback),
		ingest.WithStore(s.store),
		ingest.WithSnapshotDir(s.snapshotDir),
		ingest.WithClock(s.now),
	)
	s.freshness = freshness.New(s.store, s.ingester, freshness.WithClock(s.now))
	s.engine = scoring.NewEngine(scoring.WithReader(s.store))

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "recommender service started",
		logger.String("store", s.storeDriver),
		logger.String("snapshot_dir", s.snapshotDir),
		logger.Int("default_topk", s.defaultTopK),
		logger.String("missing_policy", s.missingPolicy.String()),
	)
	return nil
}

// Stop closes the store if the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing store", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}
	s.started = false
	s.logger.Info(context.Background(), "recommender service stopped")
}

// Recommend refreshes the catalog if needed, derives the task profile and
// ranks the latest models.
func (s *Service) Recommend(ctx context.Context, req Request) (Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return Response{}, ErrNotStarted
	}

	start := time.Now()
	topK, policy, maxAge, err := s.resolve(req)
	if err != nil {
		metrics.RecordRecommendRequest("", metrics.OutcomeError)
		return Response{}, err
	}

	maxPrice := req.MaxPricePer1M
	if maxPrice == nil {
		if budget, ok := profile.ExtractBudget(req.TaskText); ok {
			maxPrice = &budget
		}
	}
	prof := profile.Parse(req.TaskText, maxPrice, req.MinContext, req.ProviderAllowlist)

	refresh := s.freshness.MaybeRefresh(ctx, req.Refresh, maxAge)

	res, err := s.engine.Recommend(ctx, prof, topK, policy)
	if err != nil {
		metrics.RecordRecommendRequest(string(prof.TaskType), metrics.OutcomeError)
		metrics.RecordError("service", "recommend")
		return Response{}, fmt.Errorf("recommend: %w", err)
	}

	warnings := res.Warnings
	if refresh.Warning != "" {
		warnings = append(warnings, refresh.Warning)
	}

	outcome := metrics.OutcomeSuccess
	if len(res.Recommendations) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.RecordRecommendRequest(string(prof.TaskType), outcome)
	metrics.RecordRecommendLatency(time.Since(start).Seconds())
	metrics.RecordRecommendResults(len(res.Recommendations))
	metrics.UpdateCatalogSize(res.CatalogSize)

	s.logger.Debug(ctx, "recommendation served",
		logger.String("task_type", string(prof.TaskType)),
		logger.Int("catalog", res.CatalogSize),
		logger.Int("considered", res.Considered),
		logger.Int("returned", len(res.Recommendations)),
		logger.Bool("refreshed", refresh.Triggered),
	)

	return Response{
		TaskProfile:     prof,
		SnapshotTS:      res.SnapshotTS,
		Recommendations: res.Recommendations,
		Warning:         strings.Join(warnings, " | "),
	}, nil
}

// resolve validates req and fills defaults.
func (s *Service) resolve(req Request) (int, scoring.MissingPolicy, float64, error) {
	if err := s.validate.Struct(req); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(req.TaskText) == "" {
		return 0, 0, 0, fmt.Errorf("%w: task_text is blank", ErrInvalidRequest)
	}

	topK := s.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK > s.maxTopK {
		return 0, 0, 0, fmt.Errorf("%w: topk %d exceeds %d", ErrInvalidRequest, topK, s.maxTopK)
	}

	policy := s.missingPolicy
	if req.MissingPolicy != "" {
		p, err := scoring.ParseMissingPolicy(req.MissingPolicy)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		policy = p
	}

	maxAge := s.maxAgeHours
	if req.MaxAgeHours != nil {
		maxAge = *req.MaxAgeHours
	}
	return topK, policy, maxAge, nil
}

// Ingest runs one ingestion immediately.
func (s *Service) Ingest(ctx context.Context) (ingest.SnapshotRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ingest.SnapshotRef{}, ErrNotStarted
	}
	return s.ingester.RunIngest(ctx)
}

// MaybeRefresh ingests when the newest snapshot is missing or older than
// the default staleness budget.
func (s *Service) MaybeRefresh(ctx context.Context) (freshness.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return freshness.Outcome{}, ErrNotStarted
	}
	return s.freshness.MaybeRefresh(ctx, false, s.maxAgeHours), nil
}

// Latest returns the latest row per model.
func (s *Service) Latest(ctx context.Context) ([]catalog.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	rows, err := s.store.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	metrics.UpdateCatalogSize(len(rows))
	return rows, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"storeDriver":   s.storeDriver,
		"defaultTopK":   s.defaultTopK,
		"maxTopK":       s.maxTopK,
		"missingPolicy": s.missingPolicy.String(),
		"maxAgeHours":   s.maxAgeHours,
	}
	if !s.started {
		return stats
	}

	stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	if counts, err := s.store.Counts(ctx); err == nil {
		stats["historyRows"] = counts.HistoryRows
		stats["latestRows"] = counts.LatestRows
		stats["snapshots"] = counts.Snapshots
		metrics.UpdateCatalogSize(counts.LatestRows)
	} else {
		s.logger.Warn(ctx, "reading store counts", logger.Error(err))
	}
	if ts, ok, err := s.store.LatestSnapshotTime(ctx); err == nil && ok {
		stats["latestSnapshot"] = ts.UTC().Format(time.RFC3339)
		stats["snapshotAgeSeconds"] = int64(s.now().Sub(ts).Seconds())
	}
	return stats
}
