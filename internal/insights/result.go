package insights

import (
	"strings"

	"github.com/goccy/go-json"
)

// Metadata describes how the data was reduced before prompting.
type Metadata struct {
	SamplingApplied    bool   `json:"sampling_applied"`
	TotalRowsAnalyzed  int    `json:"total_rows_analyzed"`
	SampledRowsUsed    int    `json:"sampled_rows_used"`
	ColumnsPrioritized int    `json:"columns_prioritized"`
	SamplingStrategy   string `json:"sampling_strategy"`
	Domain             string `json:"domain,omitempty"`
	RunID              string `json:"run_id,omitempty"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	Insights map[Kind][]string
	Domain   Domain
	Metadata *Metadata
}

// Get returns the list for kind, never nil.
func (r *Result) Get(kind Kind) []string {
	if r == nil || r.Insights[kind] == nil {
		return []string{}
	}
	return r.Insights[kind]
}

// Degraded reports whether any list holds a failure placeholder.
func (r *Result) Degraded() bool {
	for _, k := range Kinds {
		for _, item := range r.Get(k) {
			if item == k.failurePlaceholder() || item == k.mergePlaceholder() {
				return true
			}
		}
	}
	return false
}

// MarshalJSON emits the three kinds in fixed order followed by _metadata.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Trends      []string  `json:"trends"`
		Anomalies   []string  `json:"anomalies"`
		Predictions []string  `json:"predictions"`
		Metadata    *Metadata `json:"_metadata,omitempty"`
	}{
		Trends:      r.Get(Trends),
		Anomalies:   r.Get(Anomalies),
		Predictions: r.Get(Predictions),
		Metadata:    r.Metadata,
	})
}

// FailureResult is returned when a run fails outright.
func FailureResult() *Result {
	out := make(map[Kind][]string, len(Kinds))
	for _, k := range Kinds {
		out[k] = []string{k.failurePlaceholder()}
	}
	return &Result{Insights: out, Domain: Unknown}
}

// String renders the result for logs.
func (r *Result) String() string {
	var b strings.Builder
	for i, k := range Kinds {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(string(k))
		b.WriteString(": ")
		b.WriteString(strings.Join(r.Get(k), " | "))
	}
	return b.String()
}
