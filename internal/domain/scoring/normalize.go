package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// MissingPolicy decides how absent metric values are filled before
// normalization.
type MissingPolicy int

const (
	// Penalize fills with the worst observed value of the column.
	Penalize MissingPolicy = iota
	// Neutral fills with the column median.
	Neutral
)

const (
	policyNeutral  = "neutral"
	policyPenalize = "penalize"

	flatSpread = 1e-9
	flatValue  = 0.5
)

// ParseMissingPolicy maps "neutral" or "penalize" (case-insensitive) to a
// policy.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case policyNeutral:
		return Neutral, nil
	case policyPenalize:
		return Penalize, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

func (p MissingPolicy) String() string {
	switch p {
	case Neutral:
		return policyNeutral
	case Penalize:
		return policyPenalize
	default:
		return fmt.Sprintf("MissingPolicy(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p MissingPolicy) MarshalText() ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *MissingPolicy) UnmarshalText(b []byte) error {
	v, err := ParseMissingPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p MissingPolicy) validate() error {
	switch p {
	case Neutral, Penalize:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownPolicy, int(p))
	}
}

// FillMissing replaces nil entries. An all-nil column becomes all zeros.
// Otherwise Neutral uses the median of the present values and Penalize uses
// the minimum, or the maximum when invert marks lower as better.
func FillMissing(values []*float64, policy MissingPolicy, invert bool) ([]float64, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}

	present := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			present = append(present, *v)
		}
	}

	fill := 0.0
	if len(present) > 0 {
		switch policy {
		case Neutral:
			fill = median(present)
		case Penalize:
			if invert {
				fill = maxOf(present)
			} else {
				fill = minOf(present)
			}
		}
	}

	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = fill
			continue
		}
		out[i] = *v
	}
	return out, nil
}

// MinMax scales values into [0,1]. A column without spread maps to 0.5.
// With invert the result is 1 - scaled.
func MinMax(values []float64, invert bool) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := minOf(values), maxOf(values)
	spread := hi - lo
	for i, v := range values {
		n := flatValue
		if math.Abs(spread) >= flatSpread {
			n = (v - lo) / spread
		}
		if invert {
			n = 1 - n
		}
		out[i] = n
	}
	return out
}

// Normalize fills then scales a column.
func Normalize(values []*float64, policy MissingPolicy, invert bool) ([]float64, error) {
	filled, err := FillMissing(values, policy, invert)
	if err != nil {
		return nil, err
	}
	return MinMax(filled, invert), nil
}

func median(vals []float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Min(m, v)
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Max(m, v)
	}
	return m
}
