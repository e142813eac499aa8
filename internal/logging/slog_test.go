package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/jetpush/types"
)

func newBufferedSlog(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})

	return NewSlog(slog.New(handler)), buf
}

func TestSlogLogger_ImplementsInterface(_ *testing.T) {
	var _ types.Logger = (*SlogLogger)(nil)
}

func TestNewSlog_NilUsesDefault(t *testing.T) {
	logger := NewSlog(nil)

	require.NotNil(t, logger)
	require.Equal(t, slog.Default(), logger.logger)
}

func TestSlogLogger_Levels(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelDebug)

	logger.Debug("drain requested", "timeout", "10s")
	logger.Info("connected", "url", "nats://a:4222")
	logger.Warn("connection not in connected status", "status", "RECONNECTING")
	logger.Error("drain failed", "error", "timeout")

	output := buf.String()
	assert.Contains(t, output, "level=DEBUG")
	assert.Contains(t, output, "timeout=10s")
	assert.Contains(t, output, "level=INFO")
	assert.Contains(t, output, "url=nats://a:4222")
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "status=RECONNECTING")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, "error=timeout")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	assert.Empty(t, buf.String())

	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestSlogLogger_With(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelInfo)

	logger.With("consumer", "orders-sub").Info("subscribed", "subjects", "orders.created")

	output := buf.String()
	assert.Contains(t, output, "consumer=orders-sub")
	assert.Contains(t, output, "subjects=orders.created")
}
