package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(Options{Format: "json", Out: &buf}), "search")

	logger.Info().Str("mirror", "https://yts.mx/api/v2").Msg("switching mirror")
	logger.Debug().Msg("hidden at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "search", entry["component"])
	assert.Equal(t, "switching mirror", entry["message"])
	assert.Equal(t, "https://yts.mx/api/v2", entry["mirror"])
}

func TestNewDebugConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Debug: true, Out: &buf})

	logger.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.False(t, IsTerminal(&buf))
}
