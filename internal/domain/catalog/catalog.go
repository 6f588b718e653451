// Package catalog defines the canonical model-metric row shared by ingestion,
// storage and scoring.
package catalog

import (
	"strings"
	"time"
	"unicode"
)

// Column names a canonical field.
type Column string

const (
	ColSnapshotTS        Column = "snapshot_ts"
	ColSource            Column = "source"
	ColModelName         Column = "model_name"
	ColProvider          Column = "provider"
	ColQualityIndex      Column = "quality_index"
	ColCodingIndex       Column = "coding_index"
	ColMathIndex         Column = "math_index"
	ColReasoningIndex    Column = "reasoning_index"
	ColOutputTokensPerS  Column = "output_tokens_per_s"
	ColTTFTS             Column = "ttft_s"
	ColPriceInputPer1M   Column = "price_input_per_1m"
	ColPriceOutputPer1M  Column = "price_output_per_1m"
	ColContextWindow     Column = "context_window"
	ColIsOpenSource      Column = "is_open_source"
	ColLicense           Column = "license"
	ColCanonicalModelKey Column = "canonical_model_key"
)

// Columns is the fixed column order of every frame and store.
var Columns = []Column{ //nolint:gochecknoglobals // fixed schema
	ColSnapshotTS,
	ColSource,
	ColModelName,
	ColProvider,
	ColQualityIndex,
	ColCodingIndex,
	ColMathIndex,
	ColReasoningIndex,
	ColOutputTokensPerS,
	ColTTFTS,
	ColPriceInputPer1M,
	ColPriceOutputPer1M,
	ColContextWindow,
	ColIsOpenSource,
	ColLicense,
	ColCanonicalModelKey,
}

const (
	UnknownProvider = "unknown"
	UnknownModel    = "unknown-model"
)

// Row is one model observed in one snapshot. Nil pointers mean the source
// did not report the value.
type Row struct {
	SnapshotTS        time.Time `json:"snapshot_ts"`
	Source            string    `json:"source"`
	ModelName         string    `json:"model_name"`
	Provider          *string   `json:"provider"`
	QualityIndex      *float64  `json:"quality_index"`
	CodingIndex       *float64  `json:"coding_index"`
	MathIndex         *float64  `json:"math_index"`
	ReasoningIndex    *float64  `json:"reasoning_index"`
	OutputTokensPerS  *float64  `json:"output_tokens_per_s"`
	TTFTS             *float64  `json:"ttft_s"`
	PriceInputPer1M   *float64  `json:"price_input_per_1m"`
	PriceOutputPer1M  *float64  `json:"price_output_per_1m"`
	ContextWindow     *int64    `json:"context_window"`
	IsOpenSource      *bool     `json:"is_open_source"`
	License           *string   `json:"license"`
	CanonicalModelKey string    `json:"canonical_model_key"`
}

// Clone returns a copy that shares no pointers with r.
func (r Row) Clone() Row {
	r.Provider = clonePtr(r.Provider)
	r.QualityIndex = clonePtr(r.QualityIndex)
	r.CodingIndex = clonePtr(r.CodingIndex)
	r.MathIndex = clonePtr(r.MathIndex)
	r.ReasoningIndex = clonePtr(r.ReasoningIndex)
	r.OutputTokensPerS = clonePtr(r.OutputTokensPerS)
	r.TTFTS = clonePtr(r.TTFTS)
	r.PriceInputPer1M = clonePtr(r.PriceInputPer1M)
	r.PriceOutputPer1M = clonePtr(r.PriceOutputPer1M)
	r.ContextWindow = clonePtr(r.ContextWindow)
	r.IsOpenSource = clonePtr(r.IsOpenSource)
	r.License = clonePtr(r.License)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Metric returns the float column c, or nil when c is not a float column or
// the value is absent.
func (r *Row) Metric(c Column) *float64 {
	switch c {
	case ColQualityIndex:
		return r.QualityIndex
	case ColCodingIndex:
		return r.CodingIndex
	case ColMathIndex:
		return r.MathIndex
	case ColReasoningIndex:
		return r.ReasoningIndex
	case ColOutputTokensPerS:
		return r.OutputTokensPerS
	case ColTTFTS:
		return r.TTFTS
	case ColPriceInputPer1M:
		return r.PriceInputPer1M
	case ColPriceOutputPer1M:
		return r.PriceOutputPer1M
	default:
		return nil
	}
}

// Values returns the row in Columns order with nil for absent values.
func (r *Row) Values() []any {
	return []any{
		r.SnapshotTS,
		r.Source,
		r.ModelName,
		deref(r.Provider),
		deref(r.QualityIndex),
		deref(r.CodingIndex),
		deref(r.MathIndex),
		deref(r.ReasoningIndex),
		deref(r.OutputTokensPerS),
		deref(r.TTFTS),
		deref(r.PriceInputPer1M),
		deref(r.PriceOutputPer1M),
		deref(r.ContextWindow),
		deref(r.IsOpenSource),
		deref(r.License),
		r.CanonicalModelKey,
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Frame is a batch of rows with its column list.
type Frame struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewFrame builds a frame over rows with the fixed column list.
func NewFrame(rows []Row) Frame {
	if rows == nil {
		rows = []Row{}
	}
	cols := make([]Column, len(Columns))
	copy(cols, Columns)
	return Frame{Columns: cols, Rows: rows}
}

// CanonicalKey returns the identity of a model across sources and snapshots:
// provider and model name trimmed, lowercased and with whitespace replaced by
// hyphens, joined by "::".
func CanonicalKey(modelName string, provider *string) string {
	p := UnknownProvider
	if provider != nil && strings.TrimSpace(*provider) != "" {
		p = *provider
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = UnknownModel
	}
	return keyPart(p) + "::" + keyPart(modelName)
}

func keyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, s)
}

// FirstPresent walks keys in order and returns the first value get reports as
// present.
func FirstPresent[K, V any](keys []K, get func(K) (V, bool)) (V, bool) {
	for _, k := range keys {
		if v, ok := get(k); ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
