package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log := New()
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("snapshot refreshed")

	assert.Contains(t, buf.String(), "snapshot refreshed")
}

func TestNewWithConfig_JSONLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithConfig(buf, "warn", FormatJSON)

	log.Info().Msg("dropped")
	log.Warn().Str("goal_id", "g1").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "g1", entry["goal_id"])
	assert.Equal(t, "warn", entry["level"])
}

func TestNewWithConfig_UnknownLevelFallsBackToInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithConfig(buf, "chatty", FormatJSON)

	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewWithConfig_Console(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithConfig(buf, "debug", FormatConsole)

	log.Debug().Msg("console line")

	out := buf.String()
	assert.Contains(t, out, "console line")
	assert.False(t, strings.HasPrefix(out, "{"), "console output must not be JSON")
}

func TestWithContext(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	assert.NotNil(t, ctx.Value(LoggerKey))
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("test")

	assert.NotZero(t, buf.Len())
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	fielded := WithFields(log, map[string]interface{}{
		"user_id": "123",
		"action":  "refresh",
	})
	fielded.Info().Msg("test message")

	out := buf.String()
	assert.Contains(t, out, `"user_id":"123"`)
	assert.Contains(t, out, `"action":"refresh"`)
}
