package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":         zapcore.InfoLevel,
		"INFO":     zapcore.InfoLevel,
		"debug":    zapcore.DebugLevel,
		"WARNING":  zapcore.WarnLevel,
		"error":    zapcore.ErrorLevel,
		"CRITICAL": zapcore.FatalLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_WritesToOutputPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	log, err := New(config.LoggingConfig{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log.Info("hello", zap.String("location", "Home"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"location":"Home"`)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "verbose"})
	assert.Error(t, err)
}
