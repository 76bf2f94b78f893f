package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, atom, err := New("warn")
	require.NoError(t, err)
	defer logger.Sync() //nolint:errcheck

	assert.Equal(t, zapcore.WarnLevel, atom.Level())
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New("loud")
	assert.Error(t, err)
}

func TestSetLevel(t *testing.T) {
	logger, atom, err := New("info")
	require.NoError(t, err)

	require.NoError(t, SetLevel(atom, "debug"))
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, SetLevel(atom, "chatty"))
	assert.Equal(t, zapcore.DebugLevel, atom.Level(), "invalid level leaves the old one")
}
