package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/OCAP2/evacsim/internal/dispatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	buf.Reset()
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	tests := []struct {
		level string
		log   func(string, ...any)
	}{
		{"DEBUG", dl.Debug},
		{"INFO", dl.Info},
		{"ERROR", dl.Error},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			tt.log("event complete", "subscriber", "stats", "count", 3)
			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "event complete", entry["msg"])
			assert.Equal(t, "dispatcher", entry["component"])
			assert.Equal(t, "stats", entry["subscriber"])
			assert.Equal(t, float64(3), entry["count"])
		})
	}
}

func TestDispatcherLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	dl.Debug("hidden")
	assert.Empty(t, buf.String())
}
