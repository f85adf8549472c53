package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		hasError bool
	}{
		{"DEBUG", slog.LevelDebug, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"WARNING", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"off", LevelOff, false},
		{"NONE", LevelOff, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelInfo},
	}))

	logger.Debug("hidden")
	logger.With("file", "main.py").WithGroup("flow").Info("loop capped", "iterations", 16)
	logger.Warn("slow")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INFO: loop capped")
	assert.Contains(t, lines[0], " file=main.py")
	assert.Contains(t, lines[0], " flow.iterations=16")
	assert.Contains(t, lines[1], "WARN: slow")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestPrettyHandlerOff(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, PrettyHandlerOptions{SlogOpts: slog.HandlerOptions{Level: LevelOff}})
	assert.False(t, h.Enabled(context.Background(), slog.LevelError))
}
