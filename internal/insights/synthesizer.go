package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/chunker"
	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/telemetry"
	"github.com/KaramelBytes/insightloom/internal/utils"
	"github.com/KaramelBytes/insightloom/internal/workerpool"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MaxItems caps every merged insight list.
const MaxItems = 3

// SynthesizerConfig tunes the map and reduce calls.
type SynthesizerConfig struct {
	ChunkTokenBudget      int
	ChunkMaxTokens        int
	MergeMaxTokens        int
	ChunkDescriptionChars int
	MergeDescriptionChars int
	// Concurrency bounds parallel chunk calls; 1 runs them one after another.
	Concurrency int
}

// DefaultSynthesizerConfig returns the production defaults.
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		ChunkTokenBudget:      chunker.DefaultTokenBudget,
		ChunkMaxTokens:        300,
		MergeMaxTokens:        400,
		ChunkDescriptionChars: 1000,
		MergeDescriptionChars: 800,
		Concurrency:           1,
	}
}

func (c SynthesizerConfig) withDefaults() SynthesizerConfig {
	d := DefaultSynthesizerConfig()
	if c.ChunkTokenBudget <= 0 {
		c.ChunkTokenBudget = d.ChunkTokenBudget
	}
	if c.ChunkMaxTokens <= 0 {
		c.ChunkMaxTokens = d.ChunkMaxTokens
	}
	if c.MergeMaxTokens <= 0 {
		c.MergeMaxTokens = d.MergeMaxTokens
	}
	if c.ChunkDescriptionChars <= 0 {
		c.ChunkDescriptionChars = d.ChunkDescriptionChars
	}
	if c.MergeDescriptionChars <= 0 {
		c.MergeDescriptionChars = d.MergeDescriptionChars
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	return c
}

// Synthesizer produces one insight list by prompting per chunk and merging the
// partial answers.
type Synthesizer struct {
	invoker ai.Invoker
	cfg     SynthesizerConfig
	pool    *workerpool.Pool
	logger  *zap.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// NewSynthesizer builds a synthesizer. metrics may be nil.
func NewSynthesizer(invoker ai.Invoker, cfg SynthesizerConfig, logger *zap.Logger, metrics *telemetry.Metrics, tracer trace.Tracer) *Synthesizer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	return &Synthesizer{
		invoker: invoker,
		cfg:     cfg,
		pool:    workerpool.New(workerpool.Config{MaxConcurrent: cfg.Concurrency}, logger),
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

// Synthesize chunks ds, runs tmpl against every chunk and merges the answers
// into at most MaxItems entries. It never returns nil and never fails; chunk
// and merge failures degrade the output instead.
func (s *Synthesizer) Synthesize(ctx context.Context, ds *dataset.Dataset, description string, domain Domain, kind Kind, tmpl Template) []string {
	ctx, span := s.tracer.Start(ctx, "insights.synthesize", trace.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("domain", string(domain)),
	))
	defer span.End()

	chunks, err := chunker.Split(ds, s.cfg.ChunkTokenBudget)
	if err != nil {
		s.logger.Error("Chunking failed", zap.String("kind", string(kind)), zap.Error(err))
		chunks = nil
	}
	span.SetAttributes(attribute.Int("chunks", len(chunks)))

	partials := s.mapChunks(ctx, chunks, description, kind, tmpl)
	span.SetAttributes(attribute.Int("partials", len(partials)))
	return s.Merge(ctx, partials, description, domain, kind)
}

// mapChunks runs one prompt per chunk. Failed chunks are logged and skipped;
// surviving partials keep chunk order.
func (s *Synthesizer) mapChunks(ctx context.Context, chunks []chunker.Chunk, description string, kind Kind, tmpl Template) []Partial {
	if len(chunks) == 0 {
		return nil
	}
	desc := utils.TruncateText(description, s.cfg.ChunkDescriptionChars)

	items := make([]workerpool.WorkItem[Partial], len(chunks))
	for i, c := range chunks {
		c := c
		items[i] = workerpool.WorkItem[Partial]{
			ID: fmt.Sprintf("%s-chunk-%d", kind, c.Index),
			Execute: func(ctx context.Context) (Partial, error) {
				data, err := c.JSON()
				if err != nil {
					return Partial{}, err
				}
				content, err := s.invoker.Invoke(ctx, tmpl.Render(data, desc), s.cfg.ChunkMaxTokens)
				if err != nil {
					return Partial{}, err
				}
				return parsePartial(kind, content), nil
			},
		}
	}

	results := workerpool.Process(ctx, s.pool, items, nil)
	partials := make([]Partial, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn("Chunk LLM call failed; continuing to next chunk",
				zap.String("chunk", r.ID),
				zap.Error(r.Err))
			s.metrics.RecordChunk(string(kind), false)
			continue
		}
		s.metrics.RecordChunk(string(kind), true)
		partials = append(partials, r.Result)
	}
	return partials
}

// Merge reduces partials into the final list with one more model call, and
// falls back to a local first-seen deduplication when that call fails or its
// answer is not a non-empty list.
func (s *Synthesizer) Merge(ctx context.Context, partials []Partial, description string, domain Domain, kind Kind) []string {
	if len(partials) == 0 {
		s.logger.Warn("No partial results to merge", zap.String("kind", string(kind)))
		s.metrics.RecordMergeFallback(string(kind))
		return FallbackMerge(partials, kind)
	}

	merged, err := s.reduce(ctx, partials, description, domain, kind)
	if err != nil {
		s.logger.Error("Merging partials failed", zap.String("kind", string(kind)), zap.Error(err))
		s.metrics.RecordMergeFallback(string(kind))
		return FallbackMerge(partials, kind)
	}
	return merged
}

func (s *Synthesizer) reduce(ctx context.Context, partials []Partial, description string, domain Domain, kind Kind) ([]string, error) {
	payload, err := json.MarshalNoEscape(partials)
	if err != nil {
		return nil, fmt.Errorf("serialize partials: %w", err)
	}
	prompt := mergePrompt(domain.Analyst(), kind, utils.TruncateText(description, s.cfg.MergeDescriptionChars), string(payload))

	content, err := s.invoker.Invoke(ctx, prompt, s.cfg.MergeMaxTokens)
	if err != nil {
		return nil, err
	}
	obj, err := ai.ParseJSONResponse[map[string]json.RawMessage](content)
	if err != nil {
		return nil, err
	}
	field, ok := obj[string(kind)]
	if !ok {
		return nil, fmt.Errorf("merge response has no %q field", kind)
	}
	items, ok := decodeList(field)
	if !ok {
		return nil, fmt.Errorf("merge response field %q is not a list", kind)
	}
	out := capItems(items)
	if len(out) == 0 {
		return nil, fmt.Errorf("merge response field %q is empty", kind)
	}
	return out, nil
}

func mergePrompt(analyst string, kind Kind, description, partials string) string {
	return fmt.Sprintf(
		"You are an expert %[1]s analyst. Given multiple partial %[2]s results (JSON array or text) from different chunks of data,\n"+
			"synthesize them into the top 2-3 %[2]s. Keep entries short, include quantitative elements if present.\n\n"+
			"Description: %[3]s\n"+
			"Partials: %[4]s\n\n"+
			`Return JSON: {"%[2]s": ["Item 1", "Item 2"]}`,
		analyst, kind, description, partials)
}

// FallbackMerge flattens partials, keeps the first occurrence of each non-blank
// entry and caps the list. An empty outcome becomes a single placeholder.
func FallbackMerge(partials []Partial, kind Kind) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, MaxItems)
	for _, p := range partials {
		for _, item := range p.Flatten() {
			if len(out) >= MaxItems {
				return out
			}
			if strings.TrimSpace(item) == "" || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{kind.mergePlaceholder()}
	}
	return out
}

// capItems drops blank entries and keeps at most MaxItems.
func capItems(items []string) []string {
	out := make([]string, 0, MaxItems)
	for _, it := range items {
		if strings.TrimSpace(it) == "" {
			continue
		}
		out = append(out, it)
		if len(out) == MaxItems {
			break
		}
	}
	return out
}
