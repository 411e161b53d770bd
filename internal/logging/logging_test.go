package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug"}, &buf)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger.Info().Str("component", "sampler").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["message"])
	require.Equal(t, "sampler", line["component"])
	require.Contains(t, line, "time")
}

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "bogus", Format: "console"}, &buf)
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger.Warn().Msg("plain text")
	require.True(t, strings.Contains(buf.String(), "plain text"))
	require.False(t, strings.HasPrefix(buf.String(), "{"))
}
