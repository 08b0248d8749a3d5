package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "simulated", cfg.Search.Provider)
	assert.Equal(t, 4, cfg.Run.WorkerPoolSize)
	assert.Equal(t, 300, cfg.Run.DeadlineSeconds)
	assert.Equal(t, 3, cfg.Run.MaxDepth)
	assert.Equal(t, 10, cfg.NLI.TimeoutSeconds)
	assert.InDelta(t, 0.65, cfg.NLI.GroundingEntailment, 1e-9)
	assert.InDelta(t, 0.35, cfg.NLI.ContradictionCeiling, 1e-9)
	assert.True(t, *cfg.NLI.LexicalFallback)
}

func TestLoadYAMLPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hdrp.yaml")
	data := []byte("run:\n  worker_pool_size: 8\nnli:\n  endpoint: http://nli.internal:9000\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Run.WorkerPoolSize)
	assert.Equal(t, "http://nli.internal:9000", cfg.NLI.Endpoint)
	// Untouched sections keep defaults.
	assert.Equal(t, 300, cfg.Run.DeadlineSeconds)
	assert.Equal(t, "simulated", cfg.Search.Provider)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SEARCH_PROVIDER", "tavily")
	t.Setenv("SEARCH_API_KEY", "tv-key")
	t.Setenv("WORKER_POOL_SIZE", "2")
	t.Setenv("RUN_DEADLINE_SECONDS", "30")
	t.Setenv("NLI_VARIANT_DEFAULT", "large")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tavily", cfg.Search.Provider)
	assert.Equal(t, "tv-key", cfg.Search.APIKey)
	assert.Equal(t, 2, cfg.Run.WorkerPoolSize)
	assert.Equal(t, 30, cfg.Run.DeadlineSeconds)
	assert.Equal(t, "large", cfg.NLI.DefaultVariant)
}

func TestInvalidProvider(t *testing.T) {
	t.Setenv("SEARCH_PROVIDER", "bing")
	_, err := Load("")
	assert.Error(t, err)
}

func TestMissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
}

func TestIgnoresBadEnvInt(t *testing.T) {
	t.Setenv("WORKER_POOL_SIZE", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Run.WorkerPoolSize)
}
