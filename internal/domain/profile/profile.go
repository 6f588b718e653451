// Package profile derives a scoring profile from a free-text task description.
package profile

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TaskType is the coarse category of a task.
type TaskType string

const (
	TaskCoding    TaskType = "coding"
	TaskMath      TaskType = "math"
	TaskReasoning TaskType = "reasoning"
	TaskWriting   TaskType = "writing"
	TaskRAG       TaskType = "rag"
	TaskAgent     TaskType = "agent"
	TaskGeneral   TaskType = "general"
)

// TaskTypes lists every task type, classification order first.
var TaskTypes = []TaskType{TaskCoding, TaskMath, TaskReasoning, TaskWriting, TaskRAG, TaskAgent, TaskGeneral} //nolint:gochecknoglobals // fixed taxonomy

type taskKeywords struct {
	task     TaskType
	keywords []string
}

// First match wins.
var taskTable = []taskKeywords{ //nolint:gochecknoglobals // classification table
	{TaskCoding, []string{"code", "python", "debug", "program", "refactor"}},
	{TaskMath, []string{"math", "algebra", "calculus", "theorem"}},
	{TaskReasoning, []string{"reason", "logic", "analysis", "decision"}},
	{TaskWriting, []string{"write", "copy", "content", "email", "blog"}},
	{TaskRAG, []string{"rag", "retrieval", "documents", "knowledge base"}},
	{TaskAgent, []string{"agent", "tool use", "autonomous", "workflow"}},
}

const (
	baseQuality = 0.5
	baseSpeed   = 0.25
	baseCost    = 0.25

	boost   = 0.2
	penalty = 0.1

	minWeightSum = 1e-9
)

var (
	qualityWords = []string{"quality", "accuracy", "best"}           //nolint:gochecknoglobals // keyword group
	speedWords   = []string{"fast", "latency", "real-time", "speed"} //nolint:gochecknoglobals // keyword group
	costWords    = []string{"cheap", "budget", "$", "cost"}          //nolint:gochecknoglobals // keyword group
)

// Allowlist is a set of lowercase provider names. It encodes as a sorted
// JSON array.
type Allowlist map[string]struct{}

// Contains reports whether provider is allowed.
func (a Allowlist) Contains(provider string) bool {
	_, ok := a[strings.ToLower(provider)]
	return ok
}

// Sorted returns the members in ascending order.
func (a Allowlist) Sorted() []string {
	out := make([]string, 0, len(a))
	for p := range a {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON implements json.Marshaler.
func (a Allowlist) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	return json.Marshal(a.Sorted())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Allowlist) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	if names == nil {
		*a = nil
		return nil
	}
	*a = ParseAllowlist(strings.Join(names, ","))
	return nil
}

// ParseAllowlist splits a comma-delimited list. Blank input yields nil.
func ParseAllowlist(s string) Allowlist {
	var set Allowlist
	for _, part := range strings.Split(s, ",") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			continue
		}
		if set == nil {
			set = Allowlist{}
		}
		set[p] = struct{}{}
	}
	return set
}

// Profile is the weighting and hard constraints of one request.
type Profile struct {
	TaskType          TaskType  `json:"task_type"`
	WeightQuality     float64   `json:"weight_quality"`
	WeightSpeed       float64   `json:"weight_speed"`
	WeightCost        float64   `json:"weight_cost"`
	MaxPricePer1M     *float64  `json:"max_price_per_1m"`
	MinContext        *int64    `json:"min_context"`
	ProviderAllowlist Allowlist `json:"provider_allowlist"`
}

// Parse classifies text and derives weights. Constraints are carried as given.
func Parse(text string, maxPrice *float64, minContext *int64, allowlist string) Profile {
	lower := strings.ToLower(text)

	p := Profile{
		TaskType:          Classify(lower),
		MaxPricePer1M:     maxPrice,
		MinContext:        minContext,
		ProviderAllowlist: ParseAllowlist(allowlist),
	}

	q, s, c := baseQuality, baseSpeed, baseCost
	if containsAny(lower, qualityWords) {
		q, s, c = q+boost, s-penalty, c-penalty
	}
	if containsAny(lower, speedWords) {
		q, s, c = q-penalty, s+boost, c-penalty
	}
	if containsAny(lower, costWords) {
		q, s, c = q-penalty, s-penalty, c+boost
	}
	total := math.Max(q+s+c, minWeightSum)
	p.WeightQuality, p.WeightSpeed, p.WeightCost = q/total, s/total, c/total
	return p
}

// Classify returns the first task type whose keywords occur in text.
func Classify(text string) TaskType {
	lower := strings.ToLower(text)
	for _, row := range taskTable {
		if containsAny(lower, row.keywords) {
			return row.task
		}
	}
	return TaskGeneral
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

const budgetNumber = `([0-9]+(?:\.[0-9]+)?)\s*(?:/|per)\s*1\s*`

// Priority order.
var budgetPatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // compiled once
	regexp.MustCompile(`\$\s*` + budgetNumber + `m\b`),
	regexp.MustCompile(`\$\s*` + budgetNumber + `m\s*tokens?\b`),
	regexp.MustCompile(`\$\s*` + budgetNumber + `m\s*tok(?:ens?)?\b`),
	regexp.MustCompile(`\$\s*` + budgetNumber + `million\b`),
	regexp.MustCompile(`\$\s*` + budgetNumber + `million\s*tokens?\b`),
	regexp.MustCompile(budgetNumber + `m\b`),
	regexp.MustCompile(budgetNumber + `million\b`),
}

// ExtractBudget finds an implied price ceiling per million tokens such as
// "$5/1M" or "5 per 1 million tokens".
func ExtractBudget(text string) (float64, bool) {
	lower := strings.ToLower(text)
	for _, re := range budgetPatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
