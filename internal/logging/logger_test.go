package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureFiltersByLevel(t *testing.T) {
	t.Cleanup(DisableLogging)
	var buf bytes.Buffer
	Configure(LevelWarn, &buf)

	Info("not shown")
	Warn("shown", "model", "gemma2")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "gemma2", line["model"])
}

func TestWithAddsAttributes(t *testing.T) {
	t.Cleanup(DisableLogging)
	var buf bytes.Buffer
	Configure(LevelDebug, &buf)

	With("request_id", "abc").Debug("dispatch")

	assert.Contains(t, buf.String(), `"request_id":"abc"`)
}

func TestEnableFileLogging(t *testing.T) {
	t.Cleanup(DisableLogging)
	dir := filepath.Join(t.TempDir(), "logs")

	require.NoError(t, EnableFileLogging(dir, LevelInfo))
	Info("written to file")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
