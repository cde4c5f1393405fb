package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fxstream/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fxstream.log")

	log, err := New(config.LogConfig{Level: "info", Format: "console", OutputFile: path, Environment: "dev"})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("candle stored", zap.String("symbol", "EUR/USD"))
	_ = log.Sync() // stdout sync fails on some terminals

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry), "one JSON line expected, got %q", data)
	assert.Equal(t, "candle stored", entry["msg"])
	assert.Equal(t, "EUR/USD", entry["symbol"])
}
