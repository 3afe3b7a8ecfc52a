package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "WAL", cfg.Database.JournalMode)
	assert.True(t, cfg.Database.ForeignKeys)

	assert.Equal(t, "https://eport.dealpusher.com", cfg.Server.URL)
	assert.Equal(t, 10*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 3, cfg.Server.MaxRetries)

	assert.Equal(t, 10*time.Second, cfg.Connectivity.Freshness)
	assert.Equal(t, 3*time.Second, cfg.Connectivity.ProbeTimeout)
	assert.NotEmpty(t, cfg.Connectivity.FallbackURL)
}

func TestGlobalGetSet(t *testing.T) {
	original := globalConfig
	defer Set(original)

	Set(nil)
	_, err := Get()
	assert.Error(t, err, "Get should fail before initialization")

	cfg := New()
	Set(cfg)

	got, err := Get()
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestLoadFromEnv(t *testing.T) {
	configDir := t.TempDir()

	t.Setenv("FIELDSYNC_SERVER_URL", "http://localhost:8000")
	t.Setenv("FIELDSYNC_SERVER_MAX_RETRIES", "5")
	t.Setenv("FIELDSYNC_CONNECTIVITY_FRESHNESS", "30s")
	t.Setenv("FIELDSYNC_LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv(configDir, filepath.Join(configDir, ".env"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Server.URL)
	assert.Equal(t, 5, cfg.Server.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Connectivity.Freshness)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, configDir, cfg.ConfigDir())
	assert.Equal(t, filepath.Join(configDir, "fieldsync.db"), cfg.Database.Path)
}

func TestLoadFromEnvInvalidValuesFallBack(t *testing.T) {
	configDir := t.TempDir()

	t.Setenv("FIELDSYNC_SERVER_MAX_RETRIES", "not-a-number")
	t.Setenv("FIELDSYNC_CONNECTIVITY_FRESHNESS", "not-a-duration")

	cfg, err := LoadFromEnv(configDir, filepath.Join(configDir, ".env"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Server.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Connectivity.Freshness)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLogLevel(tt.input), "level %q", tt.input)
	}
}
