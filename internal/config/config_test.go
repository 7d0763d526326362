package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 5, cfg.Scanner.TVBatchSize)
	assert.Equal(t, 25, cfg.Scanner.MovieBatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Scanner.StaleRunningAfter)
	assert.Equal(t, 7*24*time.Hour, cfg.Scanner.FailedRetention)
	assert.InDelta(t, 0.7, cfg.Scanner.BroadRootThreshold, 0.001)
	assert.True(t, cfg.Metadata.Enabled)
	assert.Equal(t, "tmdb", cfg.Metadata.PreferredSource)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curator.yaml")
	yaml := `
server:
  port: 9090
scanner:
  tv_batch_size: 10
metadata:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	m := &Manager{}
	require.NoError(t, m.LoadConfig(path))
	cfg := m.GetConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Scanner.TVBatchSize)
	assert.False(t, cfg.Metadata.Enabled)
	// Untouched values keep their defaults.
	assert.Equal(t, 25, cfg.Scanner.MovieBatchSize)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("CURATOR_PORT", "7070")
	t.Setenv("CURATOR_TV_BATCH_SIZE", "3")
	t.Setenv("CURATOR_STALE_RUNNING_AFTER", "12h")
	t.Setenv("CURATOR_METADATA_ENABLED", "false")

	m := &Manager{}
	require.NoError(t, m.LoadConfig(""))
	cfg := m.GetConfig()

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Scanner.TVBatchSize)
	assert.Equal(t, 12*time.Hour, cfg.Scanner.StaleRunningAfter)
	assert.False(t, cfg.Metadata.Enabled)
}

func TestLoadConfigRejectsInvalidPort(t *testing.T) {
	t.Setenv("CURATOR_PORT", "99999")

	m := &Manager{}
	assert.Error(t, m.LoadConfig(""))
}

func TestLoadConfigRejectsUnknownDatabaseType(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "oracle")

	m := &Manager{}
	assert.Error(t, m.LoadConfig(""))
}

func TestSQLitePathDerivedFromDataDir(t *testing.T) {
	t.Setenv("CURATOR_DATA_DIR", "/srv/curator")

	m := &Manager{}
	require.NoError(t, m.LoadConfig(""))
	cfg := m.GetConfig()

	assert.Equal(t, filepath.Join("/srv/curator", "curator.db"), cfg.Database.DatabasePath)
}
