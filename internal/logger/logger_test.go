package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "info", "json")

	log.Info("job submitted", slog.String("job_id", "abc"))

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "job submitted", record["msg"])
	assert.Equal(t, "abc", record["job_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "error", "json")

	log.Info("ignored")
	assert.Zero(t, buf.Len())

	log.Error("kept")
	assert.NotZero(t, buf.Len())
}

func TestNewDefault(t *testing.T) {
	assert.NotNil(t, NewDefault())
}
