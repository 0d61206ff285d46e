package insights

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     Domain
	}{
		{"finance", `{"type":"Finance"}`, nil, Finance},
		{"hr", `{"type": "HR"}`, nil, HR},
		{"bogus", `{"type":"Bogus"}`, nil, Unknown},
		{"case mismatch", `{"type":"finance"}`, nil, Unknown},
		{"explicit unknown", `{"type":"Unknown"}`, nil, Unknown},
		{"missing field", `{"label":"Sales"}`, nil, Unknown},
		{"not a string", `{"type": 3}`, nil, Unknown},
		{"fenced", "```json\n{\"type\": \"Retail\"}\n```", nil, Retail},
		{"prose", "I think this is finance data", nil, Unknown},
		{"error", "", errors.New("boom"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &ai.MockInvoker{InvokeFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
				return tt.response, tt.err
			}}
			c := NewClassifier(inv, 0, zaptest.NewLogger(t))
			assert.Equal(t, tt.want, c.Classify(context.Background(), salesRows(3), "orders"))
		})
	}
}

func TestClassifyPromptUsesFirstFiveRows(t *testing.T) {
	inv := &ai.MockInvoker{InvokeFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return `{"type":"Sales"}`, nil
	}}
	c := NewClassifier(inv, 0, nil)
	got := c.Classify(context.Background(), salesRows(20), "Quarterly orders")
	assert.Equal(t, Sales, got)

	require.Equal(t, 1, inv.Calls())
	prompt := inv.Prompts()[0]
	assert.Contains(t, prompt, "Finance, HR, Operations, Sales, Retail")
	assert.Contains(t, prompt, "Description: Quarterly orders")
	assert.Contains(t, prompt, `"order_id":4`)
	assert.NotContains(t, prompt, `"order_id":5`)
	assert.Equal(t, []int{50}, inv.MaxTokens())
}

func TestClassifyAggregateUsesFieldValues(t *testing.T) {
	inv := &ai.MockInvoker{InvokeFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return `{"type":"Operations"}`, nil
	}}
	agg := dataset.Aggregate(dataset.RecordOf("a", 1, "b", 2, "c", 3, "d", 4, "e", 5, "f", 6))
	got := NewClassifier(inv, 10, nil).Classify(context.Background(), agg, "")
	assert.Equal(t, Operations, got)

	prompt := inv.Prompts()[0]
	assert.True(t, strings.Contains(prompt, "Sample Data (JSON): [1,2,3,4,5]"), prompt)
	assert.Equal(t, []int{10}, inv.MaxTokens())
}

func TestParseDomain(t *testing.T) {
	for _, d := range Domains {
		assert.Equal(t, d, ParseDomain(string(d)))
	}
	assert.Equal(t, Unknown, ParseDomain(""))
	assert.Equal(t, "generic", Unknown.Analyst())
	assert.Equal(t, "hr", HR.Analyst())
}
