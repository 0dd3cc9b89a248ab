package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevelFromEnv(t *testing.T) {
	t.Setenv("SNAPFETCH_LOG_LEVEL", "warn")
	assert.Equal(t, LevelWarn, GetLevelFromEnv())
	t.Setenv("SNAPFETCH_LOG_LEVEL", "TRACE")
	assert.Equal(t, LevelTrace, GetLevelFromEnv())
	t.Setenv("SNAPFETCH_LOG_LEVEL", "bogus")
	assert.Equal(t, LevelInfo, GetLevelFromEnv())
}

func TestTestLoggerCaptures(t *testing.T) {
	log := NewTestLogger()
	log.Info("loading %s", "data")
	log.Warn("refresh failed")
	child := log.With(map[string]any{"cache": "Cache"})
	child.Debug("claimed lock")

	entries := log.Logs()
	require.Len(t, entries, 3)
	assert.Equal(t, "INFO", entries[0].Severity)
	assert.Equal(t, "loading %s", entries[0].Message)
	assert.Equal(t, []string{"loading %s", "refresh failed", "claimed lock"}, log.Messages())
}

func TestConsoleSinkTee(t *testing.T) {
	var sink bytes.Buffer
	log := NewConsole(LevelNone).WithSink(&sink, LevelInfo)
	log.Debug("below sink level")
	log.Info("refresh started")

	out := sink.String()
	assert.NotContains(t, out, "below sink level")
	assert.Contains(t, out, "refresh started")
	assert.Contains(t, out, "[INFO]")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(LevelDebug, &buf).With(map[string]any{"cache": "Cache"})
	log.Trace("dropped")
	log.Info("snapshot written: %s", "Cache2024.snap")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "snapshot written: Cache2024.snap", entry["msg"])
	assert.Equal(t, "Cache", entry["cache"])
	assert.NotEmpty(t, entry["ts"])
}
