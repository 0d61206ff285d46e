package ai

import "context"

// Runtime is implemented by text-generation backends (hosted OpenAI-compatible
// APIs, Anthropic, a local Ollama). Runtimes perform one attempt per call;
// retries belong to Retrying.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used for selection in configuration and flags.
const (
	ProviderTogether   = "together"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is the provider-neutral chat request.
type GenerateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	// JSONMode asks the provider to emit a single JSON object.
	JSONMode bool `json:"-"`
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResponse is the provider-neutral reply.
type GenerateResponse struct {
	Content   string `json:"content"`
	Usage     Usage  `json:"usage"`
	RequestID string `json:"-"`
}
