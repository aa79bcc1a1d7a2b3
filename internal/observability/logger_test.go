package observability_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scout-cli/internal/config"
	"github.com/xkilldash9x/scout-cli/internal/observability"
)

func TestGetLoggerBeforeInitializeIsUsable(t *testing.T) {
	observability.ResetForTest()
	logger := observability.GetLogger()
	require.NotNil(t, logger)
	logger.Info("fallback logger should not panic")
}

func TestInitializeJSONFormat(t *testing.T) {
	observability.ResetForTest()

	var sink zaptest.Buffer
	observability.Initialize(config.LoggerConfig{Level: "debug", Format: "json"}, zapcore.AddSync(&sink))

	observability.GetLogger().Info("hello from test", zap.String("component", "logger_test"))

	lines := sink.Lines()
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "hello from test", entry["msg"])
	assert.Equal(t, "logger_test", entry["component"])
}

func TestInitializeRespectsLevel(t *testing.T) {
	observability.ResetForTest()

	var sink zaptest.Buffer
	observability.Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, zapcore.AddSync(&sink))

	observability.GetLogger().Info("should be filtered")
	observability.GetLogger().Warn("should appear")

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "should appear")
}

func TestInitializeOnlyOnce(t *testing.T) {
	observability.ResetForTest()

	var first zaptest.Buffer
	observability.Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&first))

	var second zaptest.Buffer
	observability.Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&second))

	observability.GetLogger().Info("routed to the first sink")
	assert.NotEmpty(t, first.Lines())
	assert.Empty(t, second.Lines())
}
