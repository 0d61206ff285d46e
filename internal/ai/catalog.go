package ai

import (
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"
)

// ModelInfo is context and pricing metadata used for budget checks and cost
// estimates. Prices are indicative.
type ModelInfo struct {
	Name          string  `json:"name"`
	ContextTokens int     `json:"context_tokens"`
	InputPerK     float64 `json:"input_per_k"`  // USD per 1K input tokens
	OutputPerK    float64 `json:"output_per_k"` // USD per 1K output tokens
}

var (
	catalogMu sync.RWMutex
	catalog   = map[string]ModelInfo{
		"mistralai/Mixtral-8x7B-Instruct-v0.1": {
			Name:          "mistralai/Mixtral-8x7B-Instruct-v0.1",
			ContextTokens: 32768,
			InputPerK:     0.0006,
			OutputPerK:    0.0006,
		},
		"meta-llama/Llama-3.3-70B-Instruct-Turbo": {
			Name:          "meta-llama/Llama-3.3-70B-Instruct-Turbo",
			ContextTokens: 131072,
			InputPerK:     0.00088,
			OutputPerK:    0.00088,
		},
		"gpt-4o-mini": {
			Name:          "gpt-4o-mini",
			ContextTokens: 128000,
			InputPerK:     0.00015,
			OutputPerK:    0.0006,
		},
		"openai/gpt-4o-mini": {
			Name:          "openai/gpt-4o-mini",
			ContextTokens: 128000,
			InputPerK:     0.00015,
			OutputPerK:    0.0006,
		},
		"claude-3-5-haiku-latest": {
			Name:          "claude-3-5-haiku-latest",
			ContextTokens: 200000,
			InputPerK:     0.0008,
			OutputPerK:    0.004,
		},
		"llama3.1:8b": {
			Name:          "llama3.1:8b",
			ContextTokens: 8192,
		},
		"mistral:7b-instruct": {
			Name:          "mistral:7b-instruct",
			ContextTokens: 8192,
		},
		"phi3:mini-4k-instruct": {
			Name:          "phi3:mini-4k-instruct",
			ContextTokens: 4096,
		},
	}
)

// LookupModel returns catalog metadata for a model.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := catalog[name]
	return mi, ok
}

// EstimateCostUSD prices the given token counts. ok is false for unknown models.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// promptOverhead reserves room for template text and the description around
// the chunk data.
const promptOverhead = 600

// FitChunkBudget shrinks a per-chunk input budget so that the chunk, the prompt
// text and the output cap fit the model's context window. Unknown models keep
// the requested budget. The result is never below a quarter of the window.
func FitChunkBudget(model string, budget, maxOutput int) int {
	mi, ok := LookupModel(model)
	if !ok || mi.ContextTokens <= 0 {
		return budget
	}
	available := mi.ContextTokens - maxOutput - promptOverhead
	if floor := mi.ContextTokens / 4; available < floor {
		available = floor
	}
	if budget > available {
		return available
	}
	return budget
}

// LoadCatalogFromJSON reads a JSON object of model name to ModelInfo.
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var m map[string]ModelInfo
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for name, mi := range m {
		if mi.Name == "" {
			mi.Name = name
			m[name] = mi
		}
	}
	return m, nil
}

// MergeCatalog adds or replaces catalog entries.
func MergeCatalog(m map[string]ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		catalog[k] = v
	}
}

// Catalog returns a copy of the current catalog.
func Catalog() map[string]ModelInfo {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make(map[string]ModelInfo, len(catalog))
	for k, v := range catalog {
		out[k] = v
	}
	return out
}
