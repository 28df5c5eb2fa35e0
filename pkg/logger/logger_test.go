package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			New(Config{Level: tt.level})
			assert.Equal(t, tt.expected, zerolog.GlobalLevel())
		})
	}
}

func TestNewWritesStructuredOutput(t *testing.T) {
	log := New(Config{Level: "info"})

	var buf bytes.Buffer
	log = log.Output(&buf)
	log.Info().Str("module", "universe").Msg("price updated")

	out := buf.String()
	assert.Contains(t, out, "price updated")
	assert.Contains(t, out, "universe")
}

func TestNewFiltersBelowConfiguredLevel(t *testing.T) {
	log := New(Config{Level: "error"})

	var buf bytes.Buffer
	log = log.Output(&buf)

	log.Info().Msg("filtered out")
	assert.Empty(t, buf.String())

	log.Error().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewPrettyOutputStillLogs(t *testing.T) {
	log := New(Config{Level: "info", Pretty: true})

	var buf bytes.Buffer
	log = log.Output(&buf)
	log.Info().Msg("console message")

	assert.Contains(t, buf.String(), "console message")
}

func TestSetGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info"}).Output(&buf)

	SetGlobalLogger(log)
	defer SetGlobalLogger(zerolog.Logger{})

	log.Info().Msg("global logger wired")
	assert.Contains(t, buf.String(), "global logger wired")
}
