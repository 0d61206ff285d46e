package insights

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/retry"
	"github.com/KaramelBytes/insightloom/internal/sampling"
	"github.com/KaramelBytes/insightloom/internal/telemetry"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func healthy() scripted {
	return scripted{
		classify: reply(`{"type":"Sales"}`),
		chunk: func(prompt string) (string, error) {
			k := kindOf(prompt)
			return `{"` + string(k) + `": ["` + string(k) + ` A", "` + string(k) + ` B"]}`, nil
		},
		merge: func(prompt string) (string, error) {
			k := kindOf(prompt)
			return `{"` + string(k) + `": ["final ` + string(k) + `"]}`, nil
		},
	}
}

func seeded(v int64) Config {
	cfg := DefaultConfig()
	cfg.Sampler.Seed = &v
	return cfg
}

func TestGenerateSamplesLargeDataset(t *testing.T) {
	p := NewPipeline(healthy().invoker(), seeded(1), zaptest.NewLogger(t))
	res := p.Generate(context.Background(), salesRows(500), "Order export")

	require.NotNil(t, res.Metadata)
	assert.Equal(t, string(sampling.SmartSampling), res.Metadata.SamplingStrategy)
	assert.True(t, res.Metadata.SamplingApplied)
	assert.Equal(t, 500, res.Metadata.TotalRowsAnalyzed)
	assert.Equal(t, 150, res.Metadata.SampledRowsUsed)
	assert.Equal(t, 3, res.Metadata.ColumnsPrioritized)
	assert.Equal(t, "Sales", res.Metadata.Domain)
	assert.NotEmpty(t, res.Metadata.RunID)

	assert.Equal(t, Sales, res.Domain)
	assert.Equal(t, []string{"final trends"}, res.Get(Trends))
	assert.Equal(t, []string{"final anomalies"}, res.Get(Anomalies))
	assert.Equal(t, []string{"final predictions"}, res.Get(Predictions))
	assert.False(t, res.Degraded())
}

func TestGenerateSmallDatasetUsesFullData(t *testing.T) {
	res := NewPipeline(healthy().invoker(), DefaultConfig(), nil).Generate(context.Background(), salesRows(50), "")
	assert.Equal(t, string(sampling.FullData), res.Metadata.SamplingStrategy)
	assert.False(t, res.Metadata.SamplingApplied)
	assert.Equal(t, 50, res.Metadata.SampledRowsUsed)
	assert.Equal(t, 50, res.Metadata.TotalRowsAnalyzed)
}

func TestGenerateTotalFailure(t *testing.T) {
	inv := &ai.MockInvoker{InvokeFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "", ai.NewError(ai.ErrorTypeAuth, "authentication failed", false, nil)
	}}
	metrics := telemetry.NewMetrics()
	res := NewPipeline(inv, DefaultConfig(), nil, WithMetrics(metrics)).Generate(context.Background(), salesRows(20), "x")

	assert.Len(t, res.Insights, 3)
	for _, k := range Kinds {
		items := res.Get(k)
		require.NotEmpty(t, items, k)
		assert.Equal(t, "Error merging "+string(k), items[0])
	}
	assert.Equal(t, Unknown, res.Domain)
	assert.True(t, res.Degraded())
	// classify + one chunk per stage; merges are skipped without partials
	assert.Equal(t, 4, inv.Calls())
}

func TestGenerateRecoversFromPanic(t *testing.T) {
	inv := &ai.MockInvoker{InvokeFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		panic("client exploded")
	}}
	res := NewPipeline(inv, DefaultConfig(), nil).Generate(context.Background(), salesRows(5), "")

	assert.Equal(t, FailureResult().Insights, res.Insights)
	assert.Nil(t, res.Metadata)
}

func TestGenerateNilInvokerAndNilDataset(t *testing.T) {
	res := NewPipeline(nil, DefaultConfig(), nil).Generate(context.Background(), salesRows(5), "")
	assert.Equal(t, []string{"Error analyzing trends"}, res.Get(Trends))
	assert.Equal(t, []string{"Error analyzing anomalies"}, res.Get(Anomalies))
	assert.Equal(t, []string{"Error generating predictions"}, res.Get(Predictions))

	inv := healthy().invoker()
	res = NewPipeline(inv, DefaultConfig(), nil).Generate(context.Background(), nil, "")
	assert.Equal(t, string(sampling.EmptyData), res.Metadata.SamplingStrategy)
	assert.Equal(t, 0, res.Metadata.SampledRowsUsed)
	assert.Len(t, res.Insights, 3)
	// only the classifier is called when there is nothing to chunk
	assert.Equal(t, 1, inv.Calls())
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var failures int32
	flaky := ai.InvokerFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		if isClassifyPrompt(prompt) && atomic.AddInt32(&failures, 1) <= 2 {
			return "", ai.NewError(ai.ErrorTypeRateLimit, "rate limited", true, nil)
		}
		return healthy().invoker().Invoke(ctx, prompt, maxTokens)
	})
	retrying := ai.NewRetrying(flaky, ai.RetryOptions{
		Retry: &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
	}, zaptest.NewLogger(t))

	res := NewPipeline(retrying, DefaultConfig(), nil).Generate(context.Background(), salesRows(10), "")
	assert.Equal(t, Sales, res.Domain)
	assert.Equal(t, int32(3), atomic.LoadInt32(&failures))
}

func TestGenerateCanceledContextDegrades(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := ai.InvokerFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "", ctx.Err()
	})
	res := NewPipeline(ai.NewRetrying(inv, ai.RetryOptions{}, nil), DefaultConfig(), nil).Generate(ctx, salesRows(10), "")
	assert.Len(t, res.Insights, 3)
	assert.Equal(t, Unknown, res.Domain)
	assert.True(t, res.Degraded())
}

func TestGenerateConcurrentRuns(t *testing.T) {
	p := NewPipeline(healthy().invoker(), DefaultConfig(), nil)
	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Generate(context.Background(), salesRows(200+i), fmt.Sprintf("run %d", i))
		}(i)
	}
	wg.Wait()

	ids := map[string]bool{}
	for _, r := range results {
		assert.Equal(t, []string{"final trends"}, r.Get(Trends))
		ids[r.Metadata.RunID] = true
	}
	assert.Len(t, ids, len(results))
}

func TestGenerateWithTemplatesOverride(t *testing.T) {
	inv := healthy().invoker()
	custom := TemplateSet{
		Trends:      `Custom trends {data} {"trends": []}`,
		Anomalies:   `Custom anomalies {data} {"anomalies": []}`,
		Predictions: `Custom predictions {data} {"predictions": []}`,
	}
	p := NewPipeline(inv, DefaultConfig(), nil, WithTemplates(Templates{Sales: custom}))
	p.Generate(context.Background(), salesRows(3), "")

	assert.Equal(t, custom, p.Templates()[Sales])
	assert.Equal(t, financeTemplates, p.Templates()[Finance])
	assert.Contains(t, inv.Prompts()[1], "Custom trends")
}

func TestWithTemplatesRejectsSetsWithoutData(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	inv := healthy().invoker()
	bad := TemplateSet{
		Trends:      `Find trends. {"trends": []}`,
		Anomalies:   `Find anomalies {data} {"anomalies": []}`,
		Predictions: `Find predictions {data} {"predictions": []}`,
	}
	good := TemplateSet{
		Trends:      `HR trends {data} {"trends": []}`,
		Anomalies:   `HR anomalies {data} {"anomalies": []}`,
		Predictions: `HR predictions {data} {"predictions": []}`,
	}
	require.Error(t, bad.Validate())
	require.Error(t, Templates{Sales: bad}.Validate())

	p := NewPipeline(inv, DefaultConfig(), zap.New(core), WithTemplates(Templates{Sales: bad, HR: good}))
	assert.Equal(t, salesTemplates, p.Templates()[Sales])
	assert.Equal(t, good, p.Templates()[HR])
	assert.NoError(t, p.Templates().Validate())

	warned := logs.FilterMessageSnippet("Ignoring invalid prompt templates").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "Sales", warned[0].ContextMap()["domain"])

	p.Generate(context.Background(), salesRows(3), "")
	for _, prompt := range inv.Prompts() {
		assert.NotContains(t, prompt, "Find trends.")
	}
	assert.Contains(t, inv.Prompts()[1], `"order_id":0`)
}

func TestGenerateRecordsSpansAndMetrics(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	metrics := telemetry.NewMetrics()

	p := NewPipeline(healthy().invoker(), DefaultConfig(), nil, WithTracer(tp.Tracer("test")), WithMetrics(metrics))
	p.Generate(context.Background(), salesRows(10), "")

	names := map[string]int{}
	for _, s := range recorder.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["insights.generate"])
	assert.Equal(t, 3, names["insights.synthesize"])
}

func TestResultJSON(t *testing.T) {
	res := NewPipeline(healthy().invoker(), DefaultConfig(), nil).Generate(context.Background(), salesRows(10), "")
	b, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Contains(t, decoded, "trends")
	assert.Contains(t, decoded, "anomalies")
	assert.Contains(t, decoded, "predictions")
	meta, ok := decoded["_metadata"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"sampling_applied", "total_rows_analyzed", "sampled_rows_used", "columns_prioritized", "sampling_strategy", "run_id"} {
		assert.Contains(t, meta, key)
	}

	b, err = json.Marshal(FailureResult())
	require.NoError(t, err)
	assert.JSONEq(t, `{"trends":["Error analyzing trends"],"anomalies":["Error analyzing anomalies"],"predictions":["Error generating predictions"]}`, string(b))
}

func TestResultGetNeverNil(t *testing.T) {
	var r *Result
	assert.NotNil(t, r.Get(Trends))
	assert.NotNil(t, (&Result{}).Get(Anomalies))
}
