package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search_index:
  endpoint: https://search.example.com
  dimension: 1024
graph_writer:
  phase1_workers: 40
  phase2_workers: 1
  max_attempts: 5
  max_drain_rounds: 5
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://search.example.com", cfg.SearchIndex.Endpoint)
	assert.Equal(t, 40, cfg.GraphWriter.Phase1Workers)
	assert.Equal(t, 1500, cfg.Chunking.WindowSize, "unset fields keep their default")
}

func TestLoadRejectsInvalidDimension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search_index:\n  dimension: 0\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateReloadableRejectsZeroWorkers(t *testing.T) {
	rc := Default().Reloadable()
	rc.GraphWriter.Phase1Workers = 0
	assert.Error(t, validateReloadable(&rc))
}
