// Package sampling reduces a dataset to a representative, column-filtered subset
// before it is handed to the text-generation service.
package sampling

import (
	"math/rand"
	"time"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"go.uber.org/zap"
)

// Strategy names how the sampled rows were chosen.
type Strategy string

const (
	NoSamplingNeeded Strategy = "no_sampling_needed"
	EmptyData        Strategy = "empty_data"
	FullData         Strategy = "full_data"
	SmartSampling    Strategy = "smart_sampling"
)

// DefaultMaxRows is the row cap applied when none is configured.
const DefaultMaxRows = 150

// Options configures a Sampler.
type Options struct {
	MaxRows int
	// Disabled passes the dataset through untouched.
	Disabled bool
	// Seed makes the random fill reproducible. Nil draws from a time-seeded source.
	Seed    *int64
	Weights Weights
}

// Result is the outcome of one sampling pass. It is not modified after Sample returns.
type Result struct {
	Data        *dataset.Dataset
	Strategy    Strategy
	TotalRows   int
	SampledRows int
	Sections    []string
	Columns     ColumnInfo
}

// Applied reports whether rows were actually dropped by stratified sampling.
func (r *Result) Applied() bool {
	return r.Strategy == SmartSampling
}

// Sampler applies column ranking and stratified row sampling.
type Sampler struct {
	opts   Options
	ranker *Ranker
	logger *zap.Logger
}

// NewSampler builds a sampler. A nil logger is replaced by a no-op logger.
func NewSampler(opts Options, logger *zap.Logger) *Sampler {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{
		opts:   opts,
		ranker: NewRanker(opts.Weights),
		logger: logger.Named("sampler"),
	}
}

// Ranker exposes the column ranker used by the sampler.
func (s *Sampler) Ranker() *Ranker { return s.ranker }

// Sample ranks columns, filters every record to the retained set and, when the
// row count exceeds the cap, keeps a leading, middle, trailing and random share.
func (s *Sampler) Sample(ds *dataset.Dataset) *Result {
	if ds == nil {
		ds = dataset.New()
	}
	if s.opts.Disabled || ds.IsAggregate() {
		return &Result{Data: ds, Strategy: NoSamplingNeeded, TotalRows: ds.Len(), SampledRows: ds.Len()}
	}
	if ds.Empty() {
		return &Result{Data: dataset.New(), Strategy: EmptyData}
	}

	ranking := s.ranker.Rank(ds)
	filtered := ds.Project(ranking.Retained)
	total := filtered.Len()
	info := ranking.Info()

	if total <= s.opts.MaxRows {
		return &Result{Data: filtered, Strategy: FullData, TotalRows: total, SampledRows: total, Columns: info}
	}

	idx := s.plan(total)
	out := filtered.Subset(idx)
	s.logger.Debug("stratified sample",
		zap.Int("total_rows", total),
		zap.Int("sampled_rows", out.Len()),
		zap.Int("kept_columns", info.Kept),
		zap.Int("dropped_columns", info.Dropped))
	return &Result{
		Data:        out,
		Strategy:    SmartSampling,
		TotalRows:   total,
		SampledRows: out.Len(),
		Sections:    []string{"beginning", "middle", "end", "random"},
		Columns:     info,
	}
}

// plan returns the row indices to keep for a dataset of n rows, n > MaxRows.
func (s *Sampler) plan(n int) []int {
	share := s.opts.MaxRows / 4
	random := s.opts.MaxRows - 3*share

	midStart := n/2 - share/2
	midEnd := midStart + share
	endStart := n - share

	idx := make([]int, 0, s.opts.MaxRows)
	for i := 0; i < share; i++ {
		idx = append(idx, i)
	}
	for i := midStart; i < midEnd; i++ {
		idx = append(idx, i)
	}
	for i := endStart; i < n; i++ {
		idx = append(idx, i)
	}

	var pool []int
	for i := share; i < midStart; i++ {
		pool = append(pool, i)
	}
	for i := midEnd; i < endStart; i++ {
		pool = append(pool, i)
	}
	if random > len(pool) {
		random = len(pool)
	}
	if random > 0 {
		rng := s.rng()
		for _, p := range rng.Perm(len(pool))[:random] {
			idx = append(idx, pool[p])
		}
	}
	return idx
}

func (s *Sampler) rng() *rand.Rand {
	if s.opts.Seed != nil {
		return rand.New(rand.NewSource(*s.opts.Seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
