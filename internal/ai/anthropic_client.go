package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient builds a client. A non-empty baseURL overrides the API host.
func NewAnthropicClient(apiKey, baseURL string, httpTimeout time.Duration) *AnthropicClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(&http.Client{Timeout: httpTimeout})}
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	return &AnthropicClient{client: anthropic.NewClient(apiKey, opts...)}
}

// Generate sends the conversation as one Messages request. Anthropic has no
// JSON response mode, so JSONMode only adds an instruction to the system prompt.
func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, NewError(ErrorTypeBadRequest, "model cannot be empty", false, nil)
	}
	if len(req.Messages) == 0 {
		return nil, NewError(ErrorTypeBadRequest, "messages cannot be empty", false, nil)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var system []string
	msgs := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		text := m.Content
		role := anthropic.RoleUser
		if m.Role == "assistant" {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{{Type: "text", Text: &text}},
		})
	}
	if req.JSONMode {
		system = append(system, "Respond with a single JSON object and nothing else.")
	}

	areq := anthropic.MessagesRequest{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		areq.System = strings.Join(system, "\n")
	}

	resp, err := c.client.CreateMessages(ctx, areq)
	if err != nil {
		return nil, ClassifyError(err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return &GenerateResponse{
				Content: strings.TrimSpace(*block.Text),
				Usage: Usage{
					PromptTokens:     resp.Usage.InputTokens,
					CompletionTokens: resp.Usage.OutputTokens,
					TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
				},
				RequestID: resp.ID,
			}, nil
		}
	}
	return nil, NewError(ErrorTypeEmpty, "no text content in response", false, errors.New("empty content"))
}
