package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/KaramelBytes/insightloom/internal/sampling"
	"github.com/KaramelBytes/insightloom/internal/telemetry"
	"github.com/KaramelBytes/insightloom/internal/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultDescriptionChars bounds the description at pipeline entry.
const DefaultDescriptionChars = 500

// Config configures a Pipeline.
type Config struct {
	Sampler             sampling.Options
	Synthesizer         SynthesizerConfig
	ClassifyMaxTokens   int
	DescriptionMaxChars int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Sampler:             sampling.Options{MaxRows: sampling.DefaultMaxRows, Weights: sampling.DefaultWeights()},
		Synthesizer:         DefaultSynthesizerConfig(),
		ClassifyMaxTokens:   defaultClassifyMaxTokens,
		DescriptionMaxChars: DefaultDescriptionChars,
	}
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithMetrics records run, stage and chunk metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer emits spans through t instead of the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithTemplates overrides prompt sets per domain; domains not in t keep the
// built-in prompts. A set that fails validation is ignored with a warning.
func WithTemplates(t Templates) Option {
	return func(p *Pipeline) {
		for d, set := range t {
			if err := set.Validate(); err != nil {
				p.logger.Warn("Ignoring invalid prompt templates; keeping built-in set",
					zap.String("domain", string(d)),
					zap.Error(err))
				continue
			}
			p.templates[d] = set
		}
	}
}

// Pipeline turns a dataset and description into insights. The injected invoker
// is the only state shared between concurrent Generate calls.
type Pipeline struct {
	invoker   ai.Invoker
	cfg       Config
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	templates Templates
}

// NewPipeline builds a pipeline around invoker.
func NewPipeline(invoker ai.Invoker, cfg Config, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DescriptionMaxChars <= 0 {
		cfg.DescriptionMaxChars = DefaultDescriptionChars
	}
	p := &Pipeline{
		invoker:   invoker,
		cfg:       cfg,
		logger:    logger.Named("insights"),
		templates: DefaultTemplates(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = telemetry.Tracer()
	}
	return p
}

// Templates returns the prompt table in use.
func (p *Pipeline) Templates() Templates { return p.templates }

// Generate runs sampling, classification and the three synthesis stages. It
// never returns an error: any unexpected failure yields FailureResult.
func (p *Pipeline) Generate(ctx context.Context, ds *dataset.Dataset, description string) (result *Result) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx, p.logger)

	ctx, span := p.tracer.Start(ctx, "insights.generate", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("pipeline panic: %v", rec)
			logger.Error("Insight generation failed", zap.Error(err), zap.Stack("stack"))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.metrics.RecordRun("failed")
			result = FailureResult()
		}
	}()

	if p.invoker == nil {
		logger.Error("Insight generation failed", zap.String("reason", "no inference client configured"))
		p.metrics.RecordRun("failed")
		return FailureResult()
	}

	sampler := sampling.NewSampler(p.cfg.Sampler, logger)
	sampled := sampler.Sample(ds)
	p.metrics.ObserveSampledRows(sampled.SampledRows)
	description = utils.TruncateText(description, p.cfg.DescriptionMaxChars)

	logger.Info("Starting insight generation with smart sampling",
		zap.String("sampling_strategy", string(sampled.Strategy)),
		zap.Int("total_rows", sampled.TotalRows),
		zap.Int("sampled_rows", sampled.SampledRows),
		zap.Int("kept_columns", sampled.Columns.Kept),
		zap.Int("dropped_columns", sampled.Columns.Dropped))
	span.SetAttributes(
		attribute.String("sampling_strategy", string(sampled.Strategy)),
		attribute.Int("sampled_rows", sampled.SampledRows))

	router := NewRouter(
		NewClassifier(p.invoker, p.cfg.ClassifyMaxTokens, logger),
		NewSynthesizer(p.invoker, p.cfg.Synthesizer, logger, p.metrics, p.tracer),
		p.templates,
		logger,
		p.metrics,
	)
	domain, insights := router.Run(ctx, sampled.Data, description)

	result = &Result{
		Insights: insights,
		Domain:   domain,
		Metadata: &Metadata{
			SamplingApplied:    sampled.Applied(),
			TotalRowsAnalyzed:  sampled.TotalRows,
			SampledRowsUsed:    sampled.SampledRows,
			ColumnsPrioritized: sampled.Columns.Kept,
			SamplingStrategy:   string(sampled.Strategy),
			Domain:             string(domain),
			RunID:              runID,
		},
	}

	outcome := "ok"
	if result.Degraded() {
		outcome = "degraded"
	}
	p.metrics.RecordRun(outcome)
	span.SetAttributes(attribute.String("domain", string(domain)), attribute.String("outcome", outcome))
	logger.Info("Insight generation complete",
		zap.String("domain", string(domain)),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)))
	return result
}
