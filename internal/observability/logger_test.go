package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gemstudio/gem/editor-go/internal/config"
)

func TestJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.Log{Level: "debug", Format: "json"}, "gem", zapcore.AddSync(&buf))
	logger.Debug("patch built", zap.Int("elements", 3))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, `"msg":"patch built"`)
	assert.Contains(t, out, `"logger":"gem"`)
	assert.Contains(t, out, `"elements":3`)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.Log{Level: "warn", Format: "console"}, "", zapcore.AddSync(&buf))
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.Log{Level: "loud"}, "", zapcore.AddSync(&buf))
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFileCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gem.log")
	var buf bytes.Buffer
	logger := New(config.Log{Level: "info", File: path, MaxSize: 1}, "gem", zapcore.AddSync(&buf))
	logger.Info("to file")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}
