package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// parseZerologLevel mirrors parseLevel for zerolog, which also knows TRACE.
func parseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds the zerolog logger used by the storage-side managers.
// Output is console formatted without colours; the hook stamps each event
// with the same context the slog handler adds.
func NewZerolog(out io.Writer, level string, ctx ContextProvider) zerolog.Logger {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	w := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}

	logger := zerolog.New(w).Level(parseZerologLevel(level)).With().Timestamp().Logger()
	if ctx != nil {
		logger = logger.Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			for _, a := range ctx() {
				e.Interface(a.Key, a.Value.Any())
			}
		}))
	}
	return logger
}
