package logging

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 10, 17, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			appName: "subconsole",
			want:    filepath.Join("logs", "subconsole.20261017_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			appName: "subconsole",
			want:    filepath.Join(".", "logs", "subconsole.20261017_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "subconsole"),
			appName: "subconsole",
			want:    filepath.Join("/var", "log", "subconsole", "subconsole.20261017_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.appName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeSession struct{ manual, polling bool }

func (f fakeSession) ManualEnabled() bool  { return f.manual }
func (f fakeSession) PollingStarted() bool { return f.polling }

func TestSessionContext(t *testing.T) {
	p := SessionContext(fakeSession{manual: true}, func() string { return "connecting" })

	var buf bytes.Buffer
	slog.New(withStamp(slog.NewTextHandler(&buf, nil), p)).Info("tick")

	out := buf.String()
	assert.Contains(t, out, "connection=connecting")
	assert.Contains(t, out, "manualEnabled=true")
	assert.Contains(t, out, "polling=false")
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "warn", func() []slog.Attr {
		return []slog.Attr{slog.Bool("manualEnabled", false)}
	})

	logger.Info().Msg("filtered")
	logger.Warn().Str("resource", "telemetry").Msg("batch dropped")

	out := buf.String()
	assert.NotContains(t, out, "filtered")
	assert.Contains(t, out, "batch dropped")
	assert.Contains(t, out, "resource=telemetry")
	assert.Contains(t, out, "manualEnabled=false")
}
