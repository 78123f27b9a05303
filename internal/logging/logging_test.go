package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/settings"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(settings.Log{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("sync finished", zap.String("remote", "github:me/health/d.json"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "sync finished", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "github:me/health/d.json", entry["remote"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(settings.Log{Level: "debug", Format: "console"}, &buf)
	require.NoError(t, err)

	logger.Debug("sync skipped: no remote configured")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "sync skipped: no remote configured")
}

func TestNewWithWriter_Invalid(t *testing.T) {
	_, err := NewWithWriter(settings.Log{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = NewWithWriter(settings.Log{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medbuddy.log")
	logger, closeFn, err := New(settings.Log{Level: "info", Format: "json", File: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)

	logger.Info("remote configured")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "remote configured")
}
