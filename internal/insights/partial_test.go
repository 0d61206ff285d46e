package insights

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePartial(t *testing.T) {
	tests := []struct {
		name    string
		content string
		raw     bool
		items   []string
		text    string
	}{
		{"list", `{"trends": ["Revenue up 12%", "Costs flat"]}`, false, []string{"Revenue up 12%", "Costs flat"}, ""},
		{"fenced", "```json\n{\"trends\": [\"A\"]}\n```", false, []string{"A"}, ""},
		{"mixed values", `{"trends": ["A", null, 3, true, {"x": 1}]}`, false, []string{"A", "3", "true", `{"x":1}`}, ""},
		{"missing key", `{"anomalies": ["A"]}`, false, nil, ""},
		{"null value", `{"trends": null}`, false, nil, ""},
		{"string value", `{"trends": "Revenue grew"}`, true, nil, "Revenue grew"},
		{"object value", `{"trends":{"a":1}}`, true, nil, `{"a":1}`},
		{"not json", "Revenue grew strongly", true, nil, "Revenue grew strongly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parsePartial(Trends, tt.content)
			assert.Equal(t, tt.raw, p.IsRaw())
			if tt.raw {
				assert.Equal(t, tt.text, p.Raw())
				return
			}
			assert.Equal(t, len(tt.items), len(p.Items()))
			for i := range tt.items {
				assert.Equal(t, tt.items[i], p.Items()[i])
			}
		})
	}
}

func TestPartialMarshalJSON(t *testing.T) {
	b, err := json.Marshal([]Partial{
		ListPartial([]string{"A: 10% up"}),
		RawPartial("free text"),
		ListPartial(nil),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[["A: 10% up"], "free text", []]`, string(b))
}

func TestPartialFlatten(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ListPartial([]string{"a", "", "b"}).Flatten())
	assert.Equal(t, []string{"raw"}, RawPartial("raw").Flatten())
	assert.Empty(t, ListPartial(nil).Flatten())
}

func TestFallbackMerge(t *testing.T) {
	t.Run("flattens in order", func(t *testing.T) {
		got := FallbackMerge([]Partial{
			ListPartial([]string{"A: 10% up"}),
			ListPartial([]string{"B: flat"}),
		}, Trends)
		assert.Equal(t, []string{"A: 10% up", "B: flat"}, got)
	})

	t.Run("dedupes and caps", func(t *testing.T) {
		got := FallbackMerge([]Partial{
			ListPartial([]string{"A", "B"}),
			RawPartial("A"),
			ListPartial([]string{"  ", "C", "D"}),
		}, Anomalies)
		assert.Equal(t, []string{"A", "B", "C"}, got)
	})

	t.Run("nothing survives", func(t *testing.T) {
		assert.Equal(t, []string{"Error merging predictions"}, FallbackMerge(nil, Predictions))
		assert.Equal(t, []string{"Error merging trends"}, FallbackMerge([]Partial{ListPartial(nil), RawPartial(" ")}, Trends))
	})
}
