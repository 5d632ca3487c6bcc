package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bartetl/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBufferLogger returns a JSON logger writing into buf
func newBufferLogger(buf *bytes.Buffer) Logger {
	z := zerolog.New(buf)
	return &zerologLogger{logger: &z, fields: map[string]interface{}{}}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info console", &config.LoggingConfig{Level: "info", Format: "console"}, false},
		{"debug json", &config.LoggingConfig{Level: "debug", Format: "json"}, false},
		{"invalid level", &config.LoggingConfig{Level: "loud"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "etl.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)

			if tt.cfg.File != "" {
				_, statErr := os.Stat(tt.cfg.File)
				assert.NoError(t, statErr)
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"chatty", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStructuredFields(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithField("station_id", "EMBR").InfoWithFields("loaded", map[string]interface{}{
		"departures": 12,
		"elapsed":    1500 * time.Millisecond,
		"ok":         true,
	})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "EMBR", lines[0]["station_id"])
	assert.Equal(t, float64(12), lines[0]["departures"])
	assert.Equal(t, true, lines[0]["ok"])
	assert.Equal(t, "loaded", lines[0]["message"])
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	parent := newBufferLogger(&buf)

	_ = parent.WithField("phase", "extract")
	parent.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, has := lines[0]["phase"]
	assert.False(t, has)
}

func TestWithErrorNil(t *testing.T) {
	l := newBufferLogger(&bytes.Buffer{})
	assert.Same(t, l, l.WithError(nil))
}

func TestTestLoggerCapturesChildFields(t *testing.T) {
	tl := NewTestLogger()
	boom := errors.New("boom")

	tl.WithField("cycle_id", "c1").WithError(boom).WarnWithFields("retrying", map[string]interface{}{"attempt": 2})
	tl.Info("done")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "c1", msgs[0].Field("cycle_id"))
	assert.Equal(t, 2, msgs[0].Field("attempt"))
	assert.Equal(t, boom, msgs[0].Error)
	assert.True(t, tl.HasMessage("done"))
	assert.False(t, tl.HasError())

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestLogStation(t *testing.T) {
	tl := NewTestLogger()

	LogStation(tl, "EMBR", "load", 4, nil)
	LogStation(tl, "MONT", "extract", 0, errors.New("timeout"))

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	errs := tl.GetMessagesByLevel("ERROR")
	require.Len(t, errs, 1)
	assert.Equal(t, "MONT", errs[0].Field("station_id"))
	assert.Equal(t, "extract", errs[0].Field("phase"))
	assert.EqualError(t, errs[0].Error, "timeout")
}

func TestLogRequestLevels(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "http://x/etd", 200, time.Millisecond)
	LogRequest(tl, "GET", "http://x/etd", 404, time.Millisecond)
	LogRequest(tl, "GET", "http://x/etd", 503, time.Millisecond)

	levels := []string{}
	for _, m := range tl.GetMessages() {
		levels = append(levels, m.Level)
	}
	assert.Equal(t, []string{"DEBUG", "WARN", "ERROR"}, levels)
}
