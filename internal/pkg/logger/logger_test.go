package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, WarnLevel, ParseLevel("warn"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
}

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: InfoLevel, Format: FormatJSON, Output: &buf})
	t.Cleanup(func() { Configure(Config{Level: InfoLevel, Format: FormatText}) })

	Debug().Msg("hidden")
	componentLog := Component("reconciler")
	componentLog.Info().Str("obligationID", "abc").Msg("shown")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "reconciler", line["component"])
	assert.Equal(t, "bursar", line["service"])
	assert.Equal(t, "abc", line["obligationID"])
}
