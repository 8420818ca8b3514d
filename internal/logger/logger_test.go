package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Config{Level: tt.level}.LogLevel(), "level %q", tt.level)
	}
}

func TestIsJSON(t *testing.T) {
	assert.True(t, ProductionConfig().IsJSON())
	assert.False(t, DevelopmentConfig().IsJSON())
	assert.True(t, Config{}.IsJSON())
}

func TestNew(t *testing.T) {
	t.Run("Production", func(t *testing.T) {
		log, err := New(ProductionConfig())
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("Development", func(t *testing.T) {
		log, err := New(DevelopmentConfig())
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})
}
