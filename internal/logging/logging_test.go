package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpair/meshpair-go/internal/config"
	"github.com/meshpair/meshpair-go/pkg/log"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("node started", "name", "kitchen_2_0011223344556677")
	logger.Debug("filtered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "node started", entry["msg"])
	assert.Equal(t, "meshpair", entry["service"])
	assert.Equal(t, "kitchen_2_0011223344556677", entry["name"])
	assert.NotContains(t, buf.String(), "filtered")
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)

	logger.Debug("tick")
	assert.Contains(t, buf.String(), "msg=tick")
	assert.Contains(t, buf.String(), "service=meshpair")
}

func TestNewDefaultsToStderr(t *testing.T) {
	assert.NotNil(t, New(config.LoggingConfig{}, nil))
	assert.NotNil(t, New(config.LoggingConfig{Output: "stdout"}, nil))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestEventsDisabled(t *testing.T) {
	em, closeFn, err := Events(config.LoggingConfig{}, nil, "kitchen_2_0011223344556677")
	require.NoError(t, err)
	assert.Nil(t, em)
	assert.NoError(t, closeFn())

	// A nil emitter is safe to use.
	em.Table("x", log.TableEvent{Table: log.TableDirectory, Action: log.ActionAdd})
}

func TestEventsToFileAndLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.mlog")
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug"}, &buf)

	em, closeFn, err := Events(config.LoggingConfig{Events: path, EventsToLog: true}, logger, "kitchen_2_0011223344556677")
	require.NoError(t, err)
	require.NotNil(t, em)

	em.Table("hall_3_aabbccddeeff0011", log.TableEvent{Table: log.TableDirectory, Action: log.ActionAdd, Slot: 0})
	require.NoError(t, closeFn())

	assert.Contains(t, buf.String(), "hall_3_aabbccddeeff0011")

	r, err := log.NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, em.SessionID(), ev.SessionID)
	assert.Equal(t, "kitchen_2_0011223344556677", ev.LocalName)
	require.NotNil(t, ev.Table)
	assert.Equal(t, log.ActionAdd, ev.Table.Action)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventsBadPath(t *testing.T) {
	_, _, err := Events(config.LoggingConfig{Events: filepath.Join(t.TempDir(), "missing", "x.mlog")}, nil, "n")
	assert.Error(t, err)
}

func TestOutput(t *testing.T) {
	assert.Equal(t, os.Stdout, Output(config.LoggingConfig{Output: "STDOUT"}))
	assert.Equal(t, os.Stderr, Output(config.LoggingConfig{Output: "stderr"}))
	assert.Equal(t, os.Stderr, Output(config.LoggingConfig{}))
}
