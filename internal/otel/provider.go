// Package otel owns the OpenTelemetry log pipeline. Console log records go
// through the otelslog bridge into the session log file and, when an
// endpoint is set, to an OTLP/HTTP collector.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultBatchTimeout = 30 * time.Second

// ErrNoExporter is returned when OTel is enabled with nowhere to send records.
var ErrNoExporter = errors.New("otel enabled but no log writer or endpoint configured")

type Config struct {
	Enabled      bool
	ServiceName  string
	Version      string
	BatchTimeout time.Duration
	LogWriter    io.Writer // session log file
	Endpoint     string    // OTLP/HTTP host:port
	Insecure     bool
}

// Provider wraps the SDK logger provider. A disabled Provider is valid and
// every method on it is a no-op.
type Provider struct {
	logs *sdklog.LoggerProvider
}

func New(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}

	ctx := context.Background()
	exporters, err := buildExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(cfg.ServiceName))}
	if cfg.Version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.Version)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)),
		))
	}
	return &Provider{logs: sdklog.NewLoggerProvider(opts...)}, nil
}

func buildExporters(ctx context.Context, cfg Config) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter
	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		out = append(out, exp)
	}
	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		out = append(out, exp)
	}
	if len(out) == 0 {
		return nil, ErrNoExporter
	}
	return out, nil
}

// LoggerProvider is handed to logging.SlogManager; nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

// Meter returns a meter from the global provider, which the dispatcher
// counters also use.
func (p *Provider) Meter(name string) metric.Meter {
	return otel.Meter(name)
}

func (p *Provider) Enabled() bool {
	return p.logs != nil
}

func (p *Provider) Flush(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the exporters. Call once on exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}
