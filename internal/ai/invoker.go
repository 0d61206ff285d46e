package ai

import (
	"context"
	"sync"
	"time"

	"github.com/KaramelBytes/insightloom/internal/retry"
	"go.uber.org/zap"
)

// Invoker is the narrow surface the pipeline needs: send one prompt, get text back.
// Implementations must be safe for concurrent use.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

// RuntimeInvoker sends each prompt as a single user turn in JSON mode and
// accumulates the token usage reported by the runtime.
type RuntimeInvoker struct {
	runtime     Runtime
	model       string
	temperature float64

	mu    sync.Mutex
	usage Usage
}

// NewRuntimeInvoker binds a runtime to a model and sampling temperature.
func NewRuntimeInvoker(rt Runtime, model string, temperature float64) *RuntimeInvoker {
	return &RuntimeInvoker{runtime: rt, model: model, temperature: temperature}
}

// Model returns the model name sent with every request.
func (r *RuntimeInvoker) Model() string { return r.model }

// Invoke implements Invoker.
func (r *RuntimeInvoker) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := r.runtime.Generate(ctx, GenerateRequest{
		Model:       r.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: r.temperature,
		JSONMode:    true,
	})
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.usage.PromptTokens += resp.Usage.PromptTokens
	r.usage.CompletionTokens += resp.Usage.CompletionTokens
	r.usage.TotalTokens += resp.Usage.TotalTokens
	r.mu.Unlock()
	return resp.Content, nil
}

// Usage returns the tokens consumed by successful calls so far.
func (r *RuntimeInvoker) Usage() Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}

// CallObserver receives the outcome of every attempt made by Retrying.
type CallObserver interface {
	ObserveCall(outcome string, elapsed time.Duration)
}

// Attempt outcomes reported to a CallObserver.
const (
	OutcomeSuccess   = "success"
	OutcomeTransient = "transient"
	OutcomeTerminal  = "terminal"
)

// RetryOptions configures Retrying.
type RetryOptions struct {
	Retry *retry.Config
	// CallTimeout bounds each attempt. Zero leaves attempts bounded only by ctx.
	CallTimeout time.Duration
	Observer    CallObserver
}

// Retrying wraps an Invoker with classification and exponential backoff.
// Transient failures are retried; terminal ones and exhausted retries are
// returned to the caller.
type Retrying struct {
	next   Invoker
	opts   RetryOptions
	logger *zap.Logger
}

// NewRetrying wraps next. A nil retry config uses retry.DefaultConfig.
func NewRetrying(next Invoker, opts RetryOptions, logger *zap.Logger) *Retrying {
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, opts: opts, logger: logger.Named("ai")}
}

// Invoke implements Invoker.
func (r *Retrying) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	attempt := 0
	return retry.DoWithResultIfRetryable(ctx, r.opts.Retry, func() (string, error) {
		attempt++
		start := time.Now()
		out, err := r.once(ctx, prompt, maxTokens)
		r.observe(err, time.Since(start))
		if err != nil {
			r.logger.Warn("inference call failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.opts.Retry.MaxRetries+1),
				zap.String("error_type", string(TypeOf(err))),
				zap.Bool("retryable", IsRetryable(err)),
				zap.Error(err))
		}
		return out, err
	})
}

func (r *Retrying) once(ctx context.Context, prompt string, maxTokens int) (string, error) {
	callCtx := ctx
	if r.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()
	}
	out, err := r.next.Invoke(callCtx, prompt, maxTokens)
	if err == nil {
		return out, nil
	}
	// the attempt hit its own deadline while the run is still alive
	if ctx.Err() == nil && callCtx.Err() != nil {
		return "", NewError(ErrorTypeTimeout, "call timed out", true, err)
	}
	return "", ClassifyError(err)
}

func (r *Retrying) observe(err error, elapsed time.Duration) {
	if r.opts.Observer == nil {
		return
	}
	switch {
	case err == nil:
		r.opts.Observer.ObserveCall(OutcomeSuccess, elapsed)
	case IsRetryable(err):
		r.opts.Observer.ObserveCall(OutcomeTransient, elapsed)
	default:
		r.opts.Observer.ObserveCall(OutcomeTerminal, elapsed)
	}
}
