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

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "debug", Format: "json", Output: &buf, Component: "orchestrator"})
	require.NoError(t, err)

	l.Debug().Str("conversation_id", "c1").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "c1", entry["conversation_id"])
	assert.Contains(t, entry, "time")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "WARN", Format: "json", Output: &buf})
	require.NoError(t, err)

	l.Info().Msg("dropped")
	l.Warn().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "switchboard.log")

	l, err := New(Options{File: path})
	require.NoError(t, err)
	l.Info().Msg("to file")
	require.NoError(t, l.Close())
	assert.NoError(t, l.Close(), "second Close should be a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error().Msg("nothing")
	assert.NoError(t, l.Close())
}
