package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicGenerate(t *testing.T) {
	var got map[string]any
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_01",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"content":     []any{map[string]any{"type": "text", "text": "\n{\"type\": \"Finance\"}"}},
			"usage":       map[string]any{"input_tokens": 40, "output_tokens": 6},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient("secret", srv.URL+"/v1", 2*time.Second)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model: "claude-3-5-haiku-latest",
		Messages: []Message{
			{Role: "system", Content: "You classify spreadsheets."},
			{Role: "user", Content: "classify this"},
		},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"type": "Finance"}`, resp.Content)
	assert.Equal(t, Usage{PromptTokens: 40, CompletionTokens: 6, TotalTokens: 46}, resp.Usage)
	assert.Equal(t, "msg_01", resp.RequestID)

	assert.Equal(t, float64(1024), got["max_tokens"])
	assert.Contains(t, got["system"], "You classify spreadsheets.")
	assert.Contains(t, got["system"], "single JSON object")
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 1)
}

func TestAnthropicRateLimitIsTransient(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "rate_limit_error", "message": "Number of requests has exceeded your rate limit"},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient("secret", srv.URL+"/v1", 2*time.Second)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "claude-3-5-haiku-latest", Messages: userTurn("hi")})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeRateLimit, TypeOf(err))
	assert.True(t, IsRetryable(err))
}

func TestAnthropicValidatesRequest(t *testing.T) {
	c := NewAnthropicClient("secret", "", time.Second)
	_, err := c.Generate(context.Background(), GenerateRequest{Messages: userTurn("hi")})
	assert.Equal(t, ErrorTypeBadRequest, TypeOf(err))
	_, err = c.Generate(context.Background(), GenerateRequest{Model: "m"})
	assert.Equal(t, ErrorTypeBadRequest, TypeOf(err))
}
