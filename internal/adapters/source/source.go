// Package source fetches raw model records from the upstream metrics API or
// from a local fixture.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Source names recorded on every ingested row.
const (
	NameArtificialAnalysis = "artificial_analysis"
	NameFixture            = "fixture"
)

// Source returns raw records. Implementations report recoverable upstream
// failures by wrapping ErrUnavailable.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]map[string]any, error)
}

// DecodeRecords accepts a bare JSON array or an object with a "data" or
// "models" array. Elements that are not objects are dropped.
func DecodeRecords(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	var list any
	switch p := payload.(type) {
	case []any:
		list = p
	case map[string]any:
		list = firstNonEmpty(p, "data", "models")
	default:
		return []map[string]any{}, nil
	}
	if list == nil {
		return []map[string]any{}, nil
	}

	items, ok := list.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload did not contain a model list", ErrMalformedPayload)
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// firstNonEmpty returns the first key whose value is neither null nor an
// empty array.
func firstNonEmpty(m map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if arr, isArr := v.([]any); isArr && len(arr) == 0 {
			continue
		}
		return v
	}
	return nil
}
