package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 320*time.Millisecond, cfg.HistoryDebounce)
	assert.Equal(t, 60, cfg.HistoryLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"localhost:5173", "localhost:3000"}, cfg.Origins())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HISTORY_DEBOUNCE", "1s")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_FILE", "/tmp/gem.log")
	t.Setenv("ALLOWED_ORIGINS", " app.gem.dev , ,localhost:3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, time.Second, cfg.HistoryDebounce)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/gem.log", cfg.Log.File)
	assert.Equal(t, []string{"app.gem.dev", "localhost:3000"}, cfg.Origins())
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, env := range map[string][2]string{
		"port":     {"PORT", "0"},
		"limit":    {"HISTORY_LIMIT", "-1"},
		"format":   {"LOG_FORMAT", "xml"},
		"rate":     {"CLIENT_RATE_LIMIT", "0"},
		"debounce": {"HISTORY_DEBOUNCE", "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
