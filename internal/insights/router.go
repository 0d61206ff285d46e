package insights

import (
	"context"
	"time"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/telemetry"
	"go.uber.org/zap"
)

// Stage is a state of the domain workflow.
type Stage int

const (
	StageClassify Stage = iota
	StageTrends
	StageAnomalies
	StagePredictions
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageClassify:
		return "classify"
	case StageTrends:
		return "trends"
	case StageAnomalies:
		return "anomalies"
	case StagePredictions:
		return "predictions"
	case StageDone:
		return "done"
	}
	return "invalid"
}

// Next is the only transition out of s. Done is terminal.
func (s Stage) Next() Stage {
	if s >= StageDone || s < StageClassify {
		return StageDone
	}
	return s + 1
}

// Kind returns the insight kind a stage writes, if it writes one.
func (s Stage) Kind() (Kind, bool) {
	switch s {
	case StageTrends:
		return Trends, true
	case StageAnomalies:
		return Anomalies, true
	case StagePredictions:
		return Predictions, true
	}
	return "", false
}

// Router walks classify, trends, anomalies, predictions in that order, picking
// the prompt set from the classification.
type Router struct {
	classifier  *Classifier
	synthesizer *Synthesizer
	templates   Templates
	logger      *zap.Logger
	metrics     *telemetry.Metrics
}

// NewRouter wires a router. A nil templates table uses DefaultTemplates.
func NewRouter(classifier *Classifier, synthesizer *Synthesizer, templates Templates, logger *zap.Logger, metrics *telemetry.Metrics) *Router {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		classifier:  classifier,
		synthesizer: synthesizer,
		templates:   templates,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run executes the workflow. The returned map always holds all three kinds.
func (r *Router) Run(ctx context.Context, ds *dataset.Dataset, description string) (Domain, map[Kind][]string) {
	out := make(map[Kind][]string, len(Kinds))
	domain := Unknown
	set := r.templates.Lookup(Unknown)

	for stage := StageClassify; stage != StageDone; stage = stage.Next() {
		start := time.Now()
		if stage == StageClassify {
			domain = r.classifier.Classify(ctx, ds, description)
			set = r.templates.Lookup(domain)
			r.metrics.RecordClassification(string(domain))
		} else {
			kind, _ := stage.Kind()
			out[kind] = r.synthesizer.Synthesize(ctx, ds, description, domain, kind, set.For(kind))
		}
		r.metrics.ObserveStage(stage.String(), time.Since(start))
		r.logger.Debug("Stage complete",
			zap.Stringer("stage", stage),
			zap.String("domain", string(domain)),
			zap.Duration("elapsed", time.Since(start)))
	}
	return domain, out
}
