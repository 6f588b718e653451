// Package scoring ranks the latest catalog against a task profile.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/okian/modelscout/internal/domain/catalog"
	"github.com/okian/modelscout/internal/domain/profile"
)

const (
	// WarnDataQuality is attached when the headline columns are almost all empty.
	WarnDataQuality = "models_latest has near-empty provider/price/speed/context fields; " +
		"recommendations may be low-confidence due to source schema mismatch"
	// WarnNoQuality is returned when no preferred quality column has a value.
	WarnNoQuality = "No quality metrics are available for the selected task type in models_latest."

	nullRateThreshold = 0.98

	speedThroughputShare = 0.7
	speedTTFTShare       = 0.3

	scoreDecimals = 1e4
)

// qualityColumns is the per-task preference order of quality metrics.
var qualityColumns = map[profile.TaskType][]catalog.Column{ //nolint:gochecknoglobals // preference table
	profile.TaskCoding:    {catalog.ColCodingIndex, catalog.ColQualityIndex, catalog.ColReasoningIndex},
	profile.TaskMath:      {catalog.ColMathIndex, catalog.ColReasoningIndex, catalog.ColQualityIndex},
	profile.TaskReasoning: {catalog.ColReasoningIndex, catalog.ColQualityIndex},
	profile.TaskWriting:   {catalog.ColQualityIndex, catalog.ColReasoningIndex},
	profile.TaskRAG:       {catalog.ColReasoningIndex, catalog.ColQualityIndex},
	profile.TaskAgent:     {catalog.ColReasoningIndex, catalog.ColCodingIndex, catalog.ColQualityIndex},
	profile.TaskGeneral:   {catalog.ColQualityIndex, catalog.ColReasoningIndex, catalog.ColCodingIndex, catalog.ColMathIndex},
}

// QualityColumns returns the quality preference order for a task type.
// Unknown types use the general order.
func QualityColumns(t profile.TaskType) []catalog.Column {
	cols, ok := qualityColumns[t]
	if !ok {
		cols = qualityColumns[profile.TaskGeneral]
	}
	out := make([]catalog.Column, len(cols))
	copy(out, cols)
	return out
}

// LatestReader returns the latest-per-model view of the store.
type LatestReader interface {
	Latest(ctx context.Context) ([]catalog.Row, error)
}

// Metrics are the raw headline values shown next to a recommendation.
type Metrics struct {
	QualityMetric    float64  `json:"quality_metric"`
	OutputTokensPerS *float64 `json:"output_tokens_per_s"`
	PriceInputPer1M  *float64 `json:"price_input_per_1m"`
	ContextWindow    *int64   `json:"context_window"`
}

// Recommendation is one ranked model.
type Recommendation struct {
	CanonicalModelKey string    `json:"canonical_model_key"`
	ModelName         string    `json:"model_name"`
	Provider          *string   `json:"provider"`
	Score             float64   `json:"score"`
	Metrics           Metrics   `json:"metrics"`
	Justification     string    `json:"justification"`
	SnapshotTS        time.Time `json:"snapshot_ts"`

	QualityNorm float64 `json:"-"`
	SpeedNorm   float64 `json:"-"`
	CostNorm    float64 `json:"-"`
}

// Result is the ranked output of one request.
type Result struct {
	SnapshotTS      *time.Time
	Recommendations []Recommendation
	Warnings        []string
	// Considered is the number of rows left after hard filters.
	Considered int
	// CatalogSize is the number of rows in the latest view.
	CatalogSize int
}

// Warning joins all warnings with " | ".
func (r Result) Warning() string {
	return strings.Join(r.Warnings, " | ")
}

// Engine scores the latest view of a store.
type Engine struct {
	reader LatestReader
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithReader sets the latest-view reader.
func WithReader(r LatestReader) Option {
	return func(e *Engine) {
		if r != nil {
			e.reader = r
		}
	}
}

// NewEngine creates a scoring engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend ranks the latest catalog for p and returns at most topK models.
// Empty catalogs, filters that exclude everything and missing quality data
// are not errors; they yield an empty list, the latter with a warning.
func (e *Engine) Recommend(ctx context.Context, p profile.Profile, topK int, policy MissingPolicy) (Result, error) {
	if err := policy.validate(); err != nil {
		return Result{}, err
	}
	if topK < 1 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if e.reader == nil {
		return Result{}, ErrNoReader
	}

	rows, err := e.reader.Latest(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load latest view: %w", err)
	}

	res := Result{Recommendations: []Recommendation{}, CatalogSize: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}

	dataQualityWarning := sparseHeadlines(rows)
	if dataQualityWarning {
		res.Warnings = append(res.Warnings, WarnDataQuality)
	}

	rows = applyFilters(rows, p)
	res.Considered = len(rows)
	if len(rows) == 0 {
		return res, nil
	}

	cols := QualityColumns(p.TaskType)
	if !anyPresent(rows, cols) {
		ts := maxSnapshot(rows)
		res.SnapshotTS = &ts
		if !dataQualityWarning {
			res.Warnings = append(res.Warnings, WarnNoQuality)
		}
		return res, nil
	}

	scored, err := score(rows, p, cols, policy)
	if err != nil {
		return Result{}, err
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}

	for i := range scored {
		scored[i].Score = math.Round(scored[i].Score*scoreDecimals) / scoreDecimals
	}
	ts := scored[0].SnapshotTS
	for _, r := range scored[1:] {
		if r.SnapshotTS.After(ts) {
			ts = r.SnapshotTS
		}
	}
	res.SnapshotTS = &ts
	res.Recommendations = scored
	return res, nil
}

// sparseHeadlines reports whether provider, price, speed and context are all
// at least 98% empty.
func sparseHeadlines(rows []catalog.Row) bool {
	var provider, price, speed, window int
	for i := range rows {
		r := &rows[i]
		if r.Provider == nil {
			provider++
		}
		if r.PriceInputPer1M == nil {
			price++
		}
		if r.OutputTokensPerS == nil {
			speed++
		}
		if r.ContextWindow == nil {
			window++
		}
	}
	n := float64(len(rows))
	for _, nulls := range []int{provider, price, speed, window} {
		if float64(nulls)/n < nullRateThreshold {
			return false
		}
	}
	return true
}

// applyFilters keeps rows that pass every constraint. Unknown price or
// context never excludes a row; unknown provider fails an allowlist.
func applyFilters(rows []catalog.Row, p profile.Profile) []catalog.Row {
	out := make([]catalog.Row, 0, len(rows))
	for _, r := range rows {
		if p.MaxPricePer1M != nil && r.PriceInputPer1M != nil && *r.PriceInputPer1M > *p.MaxPricePer1M {
			continue
		}
		if p.MinContext != nil && r.ContextWindow != nil && *r.ContextWindow < *p.MinContext {
			continue
		}
		if len(p.ProviderAllowlist) > 0 && (r.Provider == nil || !p.ProviderAllowlist.Contains(*r.Provider)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func anyPresent(rows []catalog.Row, cols []catalog.Column) bool {
	for i := range rows {
		for _, c := range cols {
			if rows[i].Metric(c) != nil {
				return true
			}
		}
	}
	return false
}

func maxSnapshot(rows []catalog.Row) time.Time {
	ts := rows[0].SnapshotTS
	for _, r := range rows[1:] {
		if r.SnapshotTS.After(ts) {
			ts = r.SnapshotTS
		}
	}
	return ts
}

// qualityMetric is the first present preferred column, or 0.
func qualityMetric(r *catalog.Row, cols []catalog.Column) float64 {
	v, ok := catalog.FirstPresent(cols, func(c catalog.Column) (float64, bool) {
		if m := r.Metric(c); m != nil {
			return *m, true
		}
		return 0, false
	})
	if !ok {
		return 0
	}
	return v
}

func column(rows []catalog.Row, pick func(*catalog.Row) *float64) []*float64 {
	out := make([]*float64, len(rows))
	for i := range rows {
		out[i] = pick(&rows[i])
	}
	return out
}

func score(rows []catalog.Row, p profile.Profile, cols []catalog.Column, policy MissingPolicy) ([]Recommendation, error) {
	quality := make([]*float64, len(rows))
	for i := range rows {
		q := qualityMetric(&rows[i], cols)
		quality[i] = &q
	}
	// Absent quality is never punished, whatever the caller's policy.
	qualityNorm, err := Normalize(quality, Neutral, false)
	if err != nil {
		return nil, err
	}
	throughput, err := Normalize(column(rows, func(r *catalog.Row) *float64 { return r.OutputTokensPerS }), policy, false)
	if err != nil {
		return nil, err
	}
	ttft, err := Normalize(column(rows, func(r *catalog.Row) *float64 { return r.TTFTS }), policy, true)
	if err != nil {
		return nil, err
	}
	cost, err := Normalize(column(rows, func(r *catalog.Row) *float64 { return r.PriceInputPer1M }), policy, true)
	if err != nil {
		return nil, err
	}

	out := make([]Recommendation, len(rows))
	for i := range rows {
		r := &rows[i]
		speed := speedThroughputShare*throughput[i] + speedTTFTShare*ttft[i]
		out[i] = Recommendation{
			CanonicalModelKey: r.CanonicalModelKey,
			ModelName:         r.ModelName,
			Provider:          r.Provider,
			Score:             p.WeightQuality*qualityNorm[i] + p.WeightSpeed*speed + p.WeightCost*cost[i],
			Metrics: Metrics{
				QualityMetric:    *quality[i],
				OutputTokensPerS: r.OutputTokensPerS,
				PriceInputPer1M:  r.PriceInputPer1M,
				ContextWindow:    r.ContextWindow,
			},
			Justification: fmt.Sprintf(
				"Strong %s quality signal with normalized quality %.2f. Speed %.2f and cost-fit %.2f under your preferences.",
				p.TaskType, qualityNorm[i], speed, cost[i],
			),
			SnapshotTS:  r.SnapshotTS,
			QualityNorm: qualityNorm[i],
			SpeedNorm:   speed,
			CostNorm:    cost[i],
		}
	}
	return out, nil
}
