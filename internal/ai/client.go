package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Base URLs for OpenAI-compatible providers.
const (
	TogetherBaseURL   = "https://api.together.xyz/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OpenAIBaseURL     = "https://api.openai.com/v1"
)

// Client talks to any OpenAI-compatible chat completions endpoint
// (Together, OpenAI, OpenRouter, vLLM).
type Client struct {
	client  *openai.Client
	baseURL string
}

// NewClient builds a client for the given base URL. An empty base URL targets OpenAI.
func NewClient(apiKey, baseURL string, httpTimeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	return &Client{client: openai.NewClientWithConfig(cfg), baseURL: cfg.BaseURL}
}

// BaseURL returns the endpoint the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Generate sends one chat completion request.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, NewError(ErrorTypeBadRequest, "model cannot be empty", false, nil)
	}
	if len(req.Messages) == 0 {
		return nil, NewError(ErrorTypeBadRequest, "messages cannot be empty", false, nil)
	}
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	creq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.JSONMode {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(ErrorTypeEmpty, "no choices in response", false, errors.New("empty choices"))
	}
	return &GenerateResponse{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RequestID: resp.ID,
	}, nil
}
