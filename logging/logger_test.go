package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt-g-everett/framefed/logging"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(content)), "\n")
}

func TestJSONLoggerRenamesKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "json.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	logger.Info("frame mounted", slog.Int("frame", 7))
	logger.Debug("hidden")

	lines := readLines(t, logPath)
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "frame mounted", entry["msg"])
	assert.Contains(t, entry, "ts")
	assert.NotContains(t, entry, "time")
	assert.EqualValues(t, 7, entry["frame"])
	assert.NotContains(t, entry, "source", "info level omits the caller")
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	logger.Debug("tick")
	lines := readLines(t, logPath)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "msg=tick")
	assert.Contains(t, lines[0], ".go:")
}

func TestAutoFormatUsesJSONForFiles(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "auto.log")
	logger, err := logging.New(logging.Options{Format: "auto", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	logger.Warn("stale")
	lines := readLines(t, logPath)
	require.Len(t, lines, 1)
	assert.True(t, json.Valid([]byte(lines[0])))
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logging.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logging.ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel("verbose"))
}

func TestContextLogger(t *testing.T) {
	assert.Same(t, slog.Default(), logging.FromContext(context.Background()))

	logger := logging.NewNop()
	ctx := logging.WithLogger(context.Background(), logger)
	assert.Same(t, logger, logging.FromContext(ctx))
}

func TestComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "component.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	logging.Component(logger, "scheduler").Info("started")
	lines := readLines(t, logPath)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"component":"scheduler"`)
}
