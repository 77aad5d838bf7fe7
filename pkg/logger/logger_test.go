package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLevels(t *testing.T) {
	defer func() {
		Log = zap.NewNop()
		Sugar = Log.Sugar()
	}()

	Init("debug")
	assert.True(t, Log.Core().Enabled(zapcore.DebugLevel))

	Init("warn")
	assert.False(t, Log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Log.Core().Enabled(zapcore.WarnLevel))

	Init("loud")
	assert.True(t, Log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Log.Core().Enabled(zapcore.DebugLevel))
}

func TestDefaultIsNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Sugar.Infof("nothing %d", 1)
		Sync()
	})
}
