package sampling

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/goccy/go-json"
)

// KeywordRule multiplies a column's relevance when its lower-cased name
// contains (or, with Prefix, starts with) any of the keywords.
type KeywordRule struct {
	Keywords   []string `mapstructure:"keywords" yaml:"keywords"`
	Multiplier float64  `mapstructure:"multiplier" yaml:"multiplier"`
	Prefix     bool     `mapstructure:"prefix" yaml:"prefix"`
}

// Weights tunes column scoring and retention.
type Weights struct {
	Rules []KeywordRule
	// SampleSize is how many leading records are scored.
	SampleSize int
	// DiversityBias keeps low-diversity but complete columns above zero.
	DiversityBias float64

	SmallTable  int // keep every column at or below this width
	MediumTable int
	MediumKeep  int
	WideKeep    int
}

// DefaultRules are the English business-keyword heuristics.
func DefaultRules() []KeywordRule {
	return []KeywordRule{
		{Keywords: []string{"id", "name", "date", "time", "amount", "price", "revenue", "cost", "profit", "sales", "customer"}, Multiplier: 2.0},
		{Keywords: []string{"total", "sum", "avg", "mean", "count", "quantity"}, Multiplier: 1.5},
		{Keywords: []string{"unnamed", "index", "row", "column"}, Multiplier: 0.3},
		{Keywords: []string{"unnamed"}, Multiplier: 0.1, Prefix: true},
	}
}

// DefaultWeights returns the stock scoring configuration.
func DefaultWeights() Weights {
	return Weights{
		Rules:         DefaultRules(),
		SampleSize:    100,
		DiversityBias: 0.1,
		SmallTable:    5,
		MediumTable:   15,
		MediumKeep:    8,
		WideKeep:      10,
	}
}

func (w Weights) withDefaults() Weights {
	d := DefaultWeights()
	if w.Rules == nil {
		w.Rules = d.Rules
	}
	if w.SampleSize <= 0 {
		w.SampleSize = d.SampleSize
	}
	if w.DiversityBias <= 0 {
		w.DiversityBias = d.DiversityBias
	}
	if w.SmallTable <= 0 {
		w.SmallTable = d.SmallTable
	}
	if w.MediumTable <= 0 {
		w.MediumTable = d.MediumTable
	}
	if w.MediumKeep <= 0 {
		w.MediumKeep = d.MediumKeep
	}
	if w.WideKeep <= 0 {
		w.WideKeep = d.WideKeep
	}
	return w
}

// Ranking is the scored column order and the retained subset.
type Ranking struct {
	Columns  []string // all columns, first-seen order
	Scores   map[string]float64
	Ordered  []string // all columns, best first
	Retained []string
}

// ColumnInfo summarizes the column filter for result metadata.
type ColumnInfo struct {
	Strategy string   `json:"strategy"`
	Total    int      `json:"total_columns"`
	Retained []string `json:"priority_columns"`
	Kept     int      `json:"kept_columns"`
	Dropped  int      `json:"dropped_columns"`
}

// Info reports the ranking as column metadata.
func (r Ranking) Info() ColumnInfo {
	if len(r.Columns) == 0 {
		return ColumnInfo{Strategy: "no_columns"}
	}
	return ColumnInfo{
		Strategy: "column_prioritization",
		Total:    len(r.Columns),
		Retained: r.Retained,
		Kept:     len(r.Retained),
		Dropped:  len(r.Columns) - len(r.Retained),
	}
}

// Ranker scores columns by completeness, diversity and name relevance.
type Ranker struct {
	weights Weights
}

// NewRanker builds a ranker; zero-valued fields of w take defaults.
func NewRanker(w Weights) *Ranker {
	return &Ranker{weights: w.withDefaults()}
}

// Relevance is the product of every rule that matches the column name.
func (rk *Ranker) Relevance(col string) float64 {
	lower := strings.ToLower(col)
	score := 1.0
	for _, rule := range rk.weights.Rules {
		if rule.matches(lower) {
			score *= rule.Multiplier
		}
	}
	return score
}

func (rule KeywordRule) matches(lower string) bool {
	for _, kw := range rule.Keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if rule.Prefix {
			if strings.HasPrefix(lower, kw) {
				return true
			}
		} else if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Score computes one column's importance over the sample.
func (rk *Ranker) Score(col string, sample []*dataset.Record) float64 {
	if len(sample) == 0 {
		return 0
	}
	present := 0
	distinct := map[string]struct{}{}
	for _, r := range sample {
		v, ok := r.Get(col)
		if !ok || v == nil {
			continue
		}
		present++
		distinct[stringify(v)] = struct{}{}
	}
	if present == 0 {
		return 0
	}
	nonNull := float64(present) / float64(len(sample))
	diversity := float64(len(distinct)) / float64(present)
	return nonNull * (diversity + rk.weights.DiversityBias) * rk.Relevance(col)
}

// Rank scores every column of ds and picks the retained subset.
func (rk *Ranker) Rank(ds *dataset.Dataset) Ranking {
	cols := ds.Columns()
	sample := ds.Head(rk.weights.SampleSize)

	scores := make(map[string]float64, len(cols))
	for _, c := range cols {
		scores[c] = rk.Score(c, sample)
	}
	ordered := append([]string(nil), cols...)
	sort.SliceStable(ordered, func(i, j int) bool { return scores[ordered[i]] > scores[ordered[j]] })

	var retained []string
	switch n := len(cols); {
	case n <= rk.weights.SmallTable:
		retained = append([]string(nil), cols...)
	case n <= rk.weights.MediumTable:
		retained = head(ordered, rk.weights.MediumKeep)
	default:
		retained = head(ordered, rk.weights.WideKeep)
	}
	return Ranking{Columns: cols, Scores: scores, Ordered: ordered, Retained: retained}
}

func head(s []string, n int) []string {
	if n > len(s) {
		n = len(s)
	}
	return append([]string(nil), s[:n]...)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return strconv.FormatInt(n, 10)
		}
		if f, err := t.Float64(); err == nil {
			return stringify(f)
		}
		return t.String()
	case float64:
		// integral floats compare equal to their integer form
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return fmt.Sprint(v)
}
