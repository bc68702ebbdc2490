package logging

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "[SESSION] phase change", FormatLog("SESSION", "phase change"))
	assert.Equal(t, "plain message", FormatLog("", "plain message"))
	// messages already tagged pass through untouched
	assert.Equal(t, "[HEART] 72 bpm", FormatLog("SESSION", "[HEART] 72 bpm"))
}

func TestConfigLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, configLevel("debug"))
	assert.Equal(t, slog.LevelWarn, configLevel("WARN"))
	assert.Equal(t, slog.LevelError, configLevel("error"))
	assert.Equal(t, slog.LevelInfo, configLevel(""))
	assert.Equal(t, slog.LevelInfo, configLevel("verbose"))
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: "debug", Dir: dir, Filename: "test.log"})
	require.NoError(t, err)
	defer logger.Close()

	logger.InfoTag("SESSION", "session %s started", "abc")
	logger.Debug("raw debug line")

	assert.FileExists(t, filepath.Join(dir, "test.log"))
}

func TestNilLoggerTagMethodsAreSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.DebugTag("BOOT", "ignored")
		l.InfoTag("BOOT", "ignored")
		l.WarnTag("BOOT", "ignored")
		l.ErrorTag("BOOT", "ignored")
	})
}
