package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// SessionState is what SessionContext reads on every record.
type SessionState interface {
	ManualEnabled() bool
	PollingStarted() bool
}

// SessionContext builds a ContextProvider reporting the console session.
func SessionContext(s SessionState, phase func() string) ContextProvider {
	return func() []slog.Attr {
		return []slog.Attr{
			slog.String("connection", phase()),
			slog.Bool("manualEnabled", s.ManualEnabled()),
			slog.Bool("polling", s.PollingStarted()),
		}
	}
}
