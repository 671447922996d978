package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName tags OTel and Graylog records.
const ServiceName = "subconsole"

// osStdout is swapped by tests.
var osStdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional Graylog and OTel output.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	graylog *gelf.Writer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// SetupOption adds an optional sink or decorator to Setup.
type SetupOption func(*setup)

type setup struct {
	graylogAddr string
	context     ContextProvider
}

// WithGraylog ships every record as GELF over UDP to addr.
func WithGraylog(addr string) SetupOption {
	return func(s *setup) {
		s.graylogAddr = addr
	}
}

// WithContext stamps every record with the provider's attributes.
func WithContext(p ContextProvider) SetupOption {
	return func(s *setup) {
		s.context = p
	}
}

// parseLevel accepts the names slog knows ("debug", "WARN", "error+2").
// Anything else falls back to info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Setup initializes the logging system. Text output goes to file when one is
// given and to stdout otherwise, so an interactive console is not cluttered.
// If provider is nil, OTel logging is disabled. A Graylog address that cannot
// be resolved is reported as an error; the other sinks stay active.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...SetupOption) error {
	var s setup
	for _, opt := range opts {
		opt(&s)
	}

	lvl := parseLevel(level)
	m.logProvider = provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	var setupErr error
	if m.graylog != nil {
		_ = m.graylog.Close()
		m.graylog = nil
	}
	if s.graylogAddr != "" {
		w, err := gelf.NewWriter(s.graylogAddr)
		if err != nil {
			setupErr = fmt.Errorf("graylog writer for %s: %w", s.graylogAddr, err)
		} else {
			w.Facility = ServiceName
			m.graylog = w
			handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
		}
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	m.logger = slog.New(withStamp(newFanout(handlers...), s.context))
	m.logger.Info("Logging initialized", "level", level, "graylog", m.graylog != nil, "otel", provider != nil)
	return setupErr
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close flushes and releases the Graylog connection.
func (m *SlogManager) Close(ctx context.Context) error {
	err := m.Flush(ctx)
	if m.graylog != nil {
		if cerr := m.graylog.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.graylog = nil
	}
	return err
}
