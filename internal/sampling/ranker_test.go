package sampling

import (
	"fmt"
	"testing"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevanceMultipliers(t *testing.T) {
	rk := NewRanker(Weights{})
	cases := []struct {
		col  string
		want float64
	}{
		{"notes", 1.0},
		{"Customer_ID", 2.0},
		{"total_revenue", 3.0},          // x2 revenue, x1.5 total
		{"row_count", 0.45},             // x1.5 count, x0.3 row
		{"Unnamed: 0", 2.0 * 0.3 * 0.1}, // "name" boost, then both penalties
		{"column_index", 0.3},           // several penalty keywords, one rule
		{"avg_price", 2.0 * 1.5},        // both boosts
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, rk.Relevance(c.col), 1e-9, c.col)
	}
}

func TestScoreCompletenessAndDiversity(t *testing.T) {
	rk := NewRanker(Weights{})
	sample := []*dataset.Record{
		dataset.RecordOf("notes", "a", "flag", true),
		dataset.RecordOf("notes", "b", "flag", true),
		dataset.RecordOf("notes", nil, "flag", true),
		dataset.RecordOf("flag", true),
	}
	// notes: 2 of 4 present, both distinct
	assert.InDelta(t, 0.5*(1.0+0.1), rk.Score("notes", sample), 1e-9)
	// flag: always present, one distinct value
	assert.InDelta(t, 1.0*(0.25+0.1), rk.Score("flag", sample), 1e-9)
	assert.Zero(t, rk.Score("missing", sample))
	assert.Zero(t, rk.Score("notes", nil))
}

func TestScoreTreatsIntegralFloatsAsInts(t *testing.T) {
	rk := NewRanker(Weights{})
	sample := []*dataset.Record{
		dataset.RecordOf("qty", 3),
		dataset.RecordOf("qty", 3.0),
	}
	// one distinct value: 1 * (0.5 + 0.1) * 1.0
	assert.InDelta(t, 0.6, rk.Score("qty", sample), 1e-9)
}

func TestScoreKeepsLargeIntegerIDsDistinct(t *testing.T) {
	rk := NewRanker(Weights{})
	sample := []*dataset.Record{
		dataset.RecordOf("ref", json.Number("9007199254740992")),
		dataset.RecordOf("ref", json.Number("9007199254740993")),
		dataset.RecordOf("ref", json.Number("4.0")),
		dataset.RecordOf("ref", 4),
	}
	// three distinct values out of four: 1 * (0.75 + 0.1) * 1.0
	assert.InDelta(t, 0.85, rk.Score("ref", sample), 1e-9)
}

func TestRankRetentionLimits(t *testing.T) {
	rk := NewRanker(Weights{})
	for _, tc := range []struct{ cols, keep int }{
		{1, 1}, {5, 5}, {6, 6}, {8, 8}, {9, 8}, {15, 8}, {16, 10}, {40, 10},
	} {
		r := rk.Rank(wide(tc.cols))
		assert.Len(t, r.Retained, tc.keep, "%d columns", tc.cols)
		info := r.Info()
		assert.Equal(t, tc.cols, info.Total)
		assert.Equal(t, tc.cols-tc.keep, info.Dropped)
	}
}

func TestRankOrdersByScore(t *testing.T) {
	recs := make([]*dataset.Record, 0, 10)
	for i := 0; i < 10; i++ {
		r := dataset.NewRecord()
		r.Set("Unnamed: 0", i)
		r.Set("constant", "x")
		r.Set("revenue", float64(i)*10.5)
		for j := 0; j < 6; j++ {
			r.Set(fmt.Sprintf("misc%d", j), i%2)
		}
		recs = append(recs, r)
	}
	ranking := NewRanker(Weights{}).Rank(dataset.New(recs...))
	require.Len(t, ranking.Retained, 8)
	assert.Equal(t, "revenue", ranking.Ordered[0])
	assert.Equal(t, "Unnamed: 0", ranking.Ordered[len(ranking.Ordered)-1])
	assert.NotContains(t, ranking.Retained, "Unnamed: 0")
}

func TestRankUsesConfiguredRules(t *testing.T) {
	w := Weights{Rules: []KeywordRule{{Keywords: []string{"umsatz"}, Multiplier: 5}}}
	rk := NewRanker(w)
	assert.Equal(t, 5.0, rk.Relevance("Umsatz_EUR"))
	assert.Equal(t, 1.0, rk.Relevance("revenue"))
}

func TestRankSmallTableKeepsOriginalOrder(t *testing.T) {
	ds := dataset.New(dataset.RecordOf("zzz", 1, "customer_name", "a", "aaa", nil))
	r := NewRanker(Weights{}).Rank(ds)
	assert.Equal(t, []string{"zzz", "customer_name", "aaa"}, r.Retained)
	assert.Equal(t, "customer_name", r.Ordered[0])
}

func wide(n int) *dataset.Dataset {
	rec := dataset.NewRecord()
	for i := 0; i < n; i++ {
		rec.Set(fmt.Sprintf("f%02d", i), i)
	}
	return dataset.New(rec)
}
