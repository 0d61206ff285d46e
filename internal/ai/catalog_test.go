package ai

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCostUSD(t *testing.T) {
	cost, ok := EstimateCostUSD("gpt-4o-mini", 10000, 1000)
	require.True(t, ok)
	assert.InDelta(t, 0.0015+0.0006, cost, 1e-9)

	_, ok = EstimateCostUSD("no-such-model", 10, 10)
	assert.False(t, ok)

	cost, ok = EstimateCostUSD("llama3.1:8b", 5000, 500)
	require.True(t, ok)
	assert.Zero(t, cost)
}

func TestFitChunkBudget(t *testing.T) {
	// 8192 - 300 - 600
	assert.Equal(t, 7292, FitChunkBudget("llama3.1:8b", 8000, 300))
	assert.Equal(t, 8000, FitChunkBudget("gpt-4o-mini", 8000, 300))
	assert.Equal(t, 8000, FitChunkBudget("unknown", 8000, 300))
	// never below a quarter of the window
	assert.Equal(t, 1024, FitChunkBudget("phi3:mini-4k-instruct", 8000, 4000))
}

func TestLoadAndMergeCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"acme/tiny": {"context_tokens": 2048, "input_per_k": 0.01, "output_per_k": 0.02}
	}`), 0o644))

	m, err := LoadCatalogFromJSON(path)
	require.NoError(t, err)
	require.Contains(t, m, "acme/tiny")
	assert.Equal(t, "acme/tiny", m["acme/tiny"].Name)

	MergeCatalog(m)
	t.Cleanup(func() {
		catalogMu.Lock()
		delete(catalog, "acme/tiny")
		catalogMu.Unlock()
	})
	mi, ok := LookupModel("acme/tiny")
	require.True(t, ok)
	assert.Equal(t, 2048, mi.ContextTokens)
	assert.Contains(t, Catalog(), "acme/tiny")

	_, err = LoadCatalogFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o644))
	_, err = LoadCatalogFromJSON(bad)
	assert.Error(t, err)
}
