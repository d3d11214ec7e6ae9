package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" debug "))
	assert.Equal(t, LogLevelTrace, ParseLogLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LogLevelWarn, &buf)

	logger.Info("hidden %d", 1)
	logger.Debug("hidden %d", 2)
	assert.Empty(t, buf.String())

	logger.Warn("shown %d", 3)
	assert.Contains(t, buf.String(), "shown 3")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestLogger_WithAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LogLevelInfo, &buf).With("run_id", "r-1")

	logger.Info("corrected")
	assert.Contains(t, buf.String(), `"run_id":"r-1"`)
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}
