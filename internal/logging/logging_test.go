package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseLevel(raw), "raw=%q", raw)
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	assert.Equal(t, slog.LevelWarn, LevelFromEnv())

	t.Setenv(EnvLogLevel, "")
	assert.Equal(t, slog.LevelInfo, LevelFromEnv())
}

func TestNewStructuredLogger_NotNil(t *testing.T) {
	logger := NewStructuredLogger("build", "v1.0.0", slog.LevelInfo)
	assert.NotNil(t, logger)
	assert.True(t, logger.Enabled(nil, slog.LevelInfo))
	assert.False(t, logger.Enabled(nil, slog.LevelDebug))
}
