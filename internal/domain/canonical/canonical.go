// Package canonical maps heterogeneous provider records onto catalog rows.
package canonical

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/modelscout/internal/domain/catalog"
)

// RawRecord is one decoded provider object.
type RawRecord = map[string]any

// alias lists the accepted source keys of one canonical column, in priority
// order. Keys containing a dot address nested objects.
type alias struct {
	column catalog.Column
	keys   []string
}

var aliases = []alias{ //nolint:gochecknoglobals // alias table
	{catalog.ColModelName, []string{"model_name", "modelName", "name", "model"}},
	{catalog.ColProvider, []string{"provider", "provider_name", "providerName", "vendor", "lab", "organization", "developer", "creator.name"}},
	{catalog.ColQualityIndex, []string{"quality_index", "intelligence_index", "intelligenceIndex", "overall_index", "overall"}},
	{catalog.ColCodingIndex, []string{"coding_index", "codingIndex", "code_index"}},
	{catalog.ColMathIndex, []string{"math_index", "mathIndex"}},
	{catalog.ColReasoningIndex, []string{"reasoning_index", "reasoningIndex", "reasoning"}},
	{catalog.ColOutputTokensPerS, []string{"output_tokens_per_s", "outputTokensPerSecond", "tokens_per_second", "tokensPerSecond", "throughput", "performance.output_tokens_per_s"}},
	{catalog.ColTTFTS, []string{"ttft_s", "time_to_first_token", "timeToFirstToken", "latency_ttft_s"}},
	{catalog.ColPriceInputPer1M, []string{"price_input_per_1m", "input_price_per_1m", "inputPricePer1M", "input_cost_per_million", "pricing.input_price_per_1m", "pricing.inputPricePer1M"}},
	{catalog.ColPriceOutputPer1M, []string{"price_output_per_1m", "output_price_per_1m", "outputPricePer1M", "output_cost_per_million", "pricing.output_price_per_1m", "pricing.outputPricePer1M"}},
	{catalog.ColContextWindow, []string{"context_window", "contextWindow", "context_tokens", "max_context", "maxContext"}},
	{catalog.ColIsOpenSource, []string{"is_open_source", "open_source"}},
	{catalog.ColLicense, []string{"license", "license_type"}},
}

// Aliases returns the accepted source keys for column c.
func Aliases(c catalog.Column) []string {
	for _, a := range aliases {
		if a.column == c {
			out := make([]string, len(a.keys))
			copy(out, a.keys)
			return out
		}
	}
	return nil
}

// Normalize converts records into a frame stamped with source and ts. Fields
// that cannot be resolved or coerced become nil; it never fails.
func Normalize(records []RawRecord, source string, ts time.Time) catalog.Frame {
	ts = ts.UTC().Truncate(time.Second)
	rows := make([]catalog.Row, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		rows = append(rows, normalizeOne(rec, source, ts))
	}
	return catalog.NewFrame(rows)
}

func normalizeOne(rec RawRecord, source string, ts time.Time) catalog.Row {
	vals := make(map[catalog.Column]any, len(aliases))
	for _, a := range aliases {
		if v, ok := catalog.FirstPresent(a.keys, func(k string) (any, bool) { return lookup(rec, k) }); ok {
			vals[a.column] = v
		}
	}

	name := modelNameOr(ToText(vals[catalog.ColModelName]))
	row := catalog.Row{
		SnapshotTS:       ts,
		Source:           source,
		ModelName:        name,
		Provider:         ToText(vals[catalog.ColProvider]),
		QualityIndex:     ToFloat(vals[catalog.ColQualityIndex]),
		CodingIndex:      ToFloat(vals[catalog.ColCodingIndex]),
		MathIndex:        ToFloat(vals[catalog.ColMathIndex]),
		ReasoningIndex:   ToFloat(vals[catalog.ColReasoningIndex]),
		OutputTokensPerS: ToFloat(vals[catalog.ColOutputTokensPerS]),
		TTFTS:            ToFloat(vals[catalog.ColTTFTS]),
		PriceInputPer1M:  ToFloat(vals[catalog.ColPriceInputPer1M]),
		PriceOutputPer1M: ToFloat(vals[catalog.ColPriceOutputPer1M]),
		ContextWindow:    ToInt(vals[catalog.ColContextWindow]),
		IsOpenSource:     ToBool(vals[catalog.ColIsOpenSource]),
		License:          ToText(vals[catalog.ColLicense]),
	}
	row.CanonicalModelKey = catalog.CanonicalKey(row.ModelName, row.Provider)
	return row
}

// modelNameOr returns *s or the placeholder model name.
func modelNameOr(s *string) string {
	if s == nil {
		return catalog.UnknownModel
	}
	return *s
}

// lookup resolves a flat or dot-path key. Explicit nulls count as absent.
func lookup(rec RawRecord, key string) (any, bool) {
	if !strings.Contains(key, ".") {
		v, ok := rec[key]
		return v, ok && v != nil
	}
	var cur any = rec
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// ToFloat coerces numbers and numeric text. Blank, unparsable and
// non-finite values yield nil.
func ToFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return nil
		}
		f = p
	case bool:
		if x {
			f = 1
		}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ToInt coerces like ToFloat and truncates toward zero.
func ToInt(v any) *int64 {
	f := ToFloat(v)
	if f == nil {
		return nil
	}
	if *f >= math.MaxInt64 || *f <= math.MinInt64 {
		return nil
	}
	i := int64(*f)
	return &i
}

// ToBool accepts booleans and the usual yes/no spellings.
func ToBool(v any) *bool {
	if v == nil {
		return nil
	}
	if b, ok := v.(bool); ok {
		return &b
	}
	s := ToText(v)
	if s == nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(*s)) {
	case "true", "1", "yes", "y":
		return catalog.Ptr(true)
	case "false", "0", "no", "n":
		return catalog.Ptr(false)
	}
	return nil
}

// ToText formats scalars as text. Blank strings and composite values yield nil.
func ToText(v any) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return nil
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
