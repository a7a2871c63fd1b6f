package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        LevelInfo,
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelSilent,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat(" Console ")
	require.NoError(t, err)
	assert.Equal(t, FormatConsole, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestLoggerRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewWithCore(core, LevelWarn)

	logger.Info("dropped")
	logger.Warn("kept", String("peer", "ws://sim"), Int64("tick", 7))
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "ws://sim", entry.ContextMap()["peer"])
	assert.Equal(t, int64(7), entry.ContextMap()["tick"])

	assert.False(t, logger.Enabled(LevelDebug))
	logger.SetLevel(LevelDebug)
	assert.True(t, logger.Enabled(LevelDebug))
	logger.Debug("now visible")
	assert.Equal(t, 2, logs.Len())
}

func TestNamedAndWithCarryContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	child := NewWithCore(core, LevelDebug).Named("world").With(Uint64("generation", 3))

	child.Error("failed", Error(errors.New("boom")), Error(nil))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "world", entry.LoggerName)
	assert.Equal(t, uint64(3), entry.ContextMap()["generation"])
	assert.Equal(t, "boom", entry.ContextMap()["error"])
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	logger.Named("transport").Info("connected", Duration("after", 250*time.Millisecond), Bool("retry", true))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "connected", entry["msg"])
	assert.Equal(t, "transport", entry["logger"])
	assert.Equal(t, "250ms", entry["after"])
	assert.Equal(t, true, entry["retry"])
}

func TestNewConsoleAndBadFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: LevelWarn, Format: FormatConsole, Output: &buf})
	require.NoError(t, err)
	logger.Warn("reconnecting")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "reconnecting")

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestNopIsSilent(t *testing.T) {
	logger := Nop()
	logger.Error("nothing happens")
	assert.False(t, logger.Enabled(LevelError))
}
