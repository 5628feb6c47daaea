package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-sec/sentra/internal/config"
)

// syncBuffer adapts an observer-free byte sink into a WriteSyncer.
type syncBuffer struct {
	lines []string
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lines = append(b.lines, string(p))
	return len(p), nil
}

func (b *syncBuffer) Sync() error { return nil }

func TestInitialize(t *testing.T) {
	t.Run("writes through console core at configured level", func(t *testing.T) {
		ResetForTest()
		buf := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "warn", Format: "console", ServiceName: "sentra-test"}, buf)
		logger := GetLogger()
		require.NotNil(t, logger)

		logger.Info("below threshold")
		logger.Warn("visible warning")

		require.Len(t, buf.lines, 1)
		assert.Contains(t, buf.lines[0], "visible warning")
		assert.Contains(t, buf.lines[0], "sentra-test")
	})

	t.Run("falls back to info on a bad level", func(t *testing.T) {
		ResetForTest()
		buf := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "loudest", Format: "json", ServiceName: "sentra-test"}, buf)
		GetLogger().Debug("suppressed")
		GetLogger().Info("kept")

		require.Len(t, buf.lines, 1)
		assert.Contains(t, buf.lines[0], "kept")
	})

	t.Run("initialization happens only once", func(t *testing.T) {
		ResetForTest()
		first := &syncBuffer{}
		second := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "a"}, first)
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "b"}, second)

		GetLogger().Info("routed")
		assert.NotEmpty(t, first.lines)
		assert.Empty(t, second.lines)
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	logger := GetLogger()
	require.NotNil(t, logger)
	// The fallback must be usable without panicking.
	logger.Debug("fallback logger in use")
}

func TestGetEncoderFormats(t *testing.T) {
	assert.NotNil(t, getEncoder(config.LoggerConfig{Format: "json"}))
	assert.NotNil(t, getEncoder(config.LoggerConfig{Format: "console"}))
}
