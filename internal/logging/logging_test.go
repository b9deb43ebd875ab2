package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/voiceclone/internal/config"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LogConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	require.Zero(t, buf.Len())

	logger.Warn("visible", slog.String("voice", "voice.wav"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "visible", entry["msg"])
	require.Equal(t, "voice.wav", entry["voice"])
}

func TestNewTextByDefault(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, config.LogConfig{}).Info("hello")
	require.Contains(t, buf.String(), "msg=hello")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
