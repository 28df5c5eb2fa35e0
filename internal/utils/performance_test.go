package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOperationTimerLogsCompletion(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	done := OperationTimer("snapshot_capture", log)
	time.Sleep(time.Millisecond)
	done()

	out := buf.String()
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "snapshot_capture")
	assert.NotContains(t, out, "Slow operation detected")
}
