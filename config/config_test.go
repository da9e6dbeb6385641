package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.False(t, cfg.PostgresEnabled)
	assert.Equal(t, "csv", cfg.ExportFormat)
	assert.Equal(t, 100, cfg.PlotSteps)
	assert.Equal(t, 500, cfg.RenderRateLimitMs)
	assert.Equal(t, "host=localhost port=5432 user=market password=market123 dbname=market_db sslmode=disable", cfg.DSN())
}

func TestLoadFromEnvAndDotEnv(t *testing.T) {
	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("EXPORT_FORMAT=YAML\nPLOT_STEPS=40\n"), 0600))
	t.Cleanup(func() {
		os.Unsetenv("EXPORT_FORMAT")
		os.Unsetenv("PLOT_STEPS")
	})

	t.Setenv("POSTGRES_ENABLED", "true")
	t.Setenv("MAX_CONCURRENCY", "not-a-number")

	cfg := Load(env)
	assert.True(t, cfg.PostgresEnabled)
	assert.Equal(t, "yaml", cfg.ExportFormat)
	assert.Equal(t, 40, cfg.PlotSteps)
	assert.Equal(t, 4, cfg.MaxConcurrency)
}
