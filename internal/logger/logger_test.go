package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	restore := Replace(zap.NewNop())
	defer restore()

	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"json info", "info", "json", zapcore.InfoLevel, false},
		{"console debug", "debug", "console", zapcore.DebugLevel, false},
		{"default format warn", "warn", "", zapcore.WarnLevel, false},
		{"invalid level", "invalid", "json", 0, true},
		{"invalid format", "info", "xml", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Init(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, L().Core().Enabled(tt.wantLevel))
			assert.False(t, L().Core().Enabled(tt.wantLevel-1))
		})
	}
}

func TestSetLevel(t *testing.T) {
	restore := Replace(zap.NewNop())
	defer restore()
	require.NoError(t, Init("info", "json"))

	require.NoError(t, SetLevel("error"))
	assert.False(t, L().Core().Enabled(zapcore.WarnLevel))
	assert.True(t, L().Core().Enabled(zapcore.ErrorLevel))
	assert.Error(t, SetLevel("bogus"))
}

func TestReplace_RoutesPackageFunctions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))

	Debug("d")
	Info("i", zap.String("step", "lint"))
	Warn("w")
	Error("e")
	With(zap.String("k", "v")).Info("child")

	restore()
	Info("after restore")

	require.Equal(t, 5, logs.Len())
	assert.Equal(t, "lint", logs.All()[1].ContextMap()["step"])
	assert.Equal(t, "v", logs.All()[4].ContextMap()["k"])
}

func TestDefaultLoggerIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("no init needed")
		_ = Sync()
	})
}
