// Package syncer keeps the view store in step with the vehicle backend.
//
// Each resource has its own refresh function. Telemetry, events and the
// autonomy state are polled on fixed intervals once the engine is started;
// every resource can also be refreshed on demand after a mutation. A failed
// refresh is logged and counted but never touches the region it would have
// replaced, and never stops another loop.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/internal/metrics"
	"github.com/md-najmul-hossain-nur/Submarine/internal/session"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

// Resource names one backend collection.
type Resource string

const (
	Health    Resource = "health"
	Config    Resource = "config"
	Telemetry Resource = "telemetry"
	Events    Resource = "events"
	Missions  Resource = "missions"
	Clips     Resource = "clips"
	Targets   Resource = "targets"
	Auto      Resource = "auto"
)

// All is the initial refresh order. Config precedes telemetry so the first
// telemetry render already uses the backend's thresholds.
var All = []Resource{Health, Config, Telemetry, Events, Missions, Clips, Targets, Auto}

// ParseResource validates a resource name.
func ParseResource(s string) (Resource, error) {
	for _, r := range All {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown resource %q", s)
}

// API is the read side of the backend the engine needs.
type API interface {
	Health(ctx context.Context) (core.Health, error)
	Config(ctx context.Context) (core.BackendConfig, error)
	LatestTelemetry(ctx context.Context, limit int) ([]core.TelemetrySample, error)
	Events(ctx context.Context, limit int) ([]core.Event, error)
	Missions(ctx context.Context) ([]core.Mission, error)
	VideoClips(ctx context.Context) ([]core.VideoClip, error)
	Targets(ctx context.Context) ([]core.Target, error)
	AutoState(ctx context.Context) (core.AutoState, error)
}

// TelemetrySink receives every non-empty telemetry batch.
type TelemetrySink interface {
	WriteTelemetry(ctx context.Context, samples []core.TelemetrySample)
}

// EventSink receives every fetched event batch, in server order.
type EventSink interface {
	WriteEvents(ctx context.Context, events []core.Event)
}

// Settings are the poll intervals and fetch limits.
type Settings struct {
	TelemetryInterval time.Duration
	EventsInterval    time.Duration
	AutoInterval      time.Duration
	TelemetryLimit    int
	EventsLimit       int
}

// DefaultSettings returns the stock intervals and limits.
func DefaultSettings() Settings {
	return Settings{
		TelemetryInterval: 2 * time.Second,
		EventsInterval:    3 * time.Second,
		AutoInterval:      5 * time.Second,
		TelemetryLimit:    30,
		EventsLimit:       20,
	}
}

// ResourceStatus is the sync health of one resource.
type ResourceStatus struct {
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   string
	Failures    int
}

// Option configures an Engine.
type Option func(*Engine)

func WithSettings(s Settings) Option {
	return func(e *Engine) {
		d := DefaultSettings()
		if s.TelemetryInterval <= 0 {
			s.TelemetryInterval = d.TelemetryInterval
		}
		if s.EventsInterval <= 0 {
			s.EventsInterval = d.EventsInterval
		}
		if s.AutoInterval <= 0 {
			s.AutoInterval = d.AutoInterval
		}
		if s.TelemetryLimit <= 0 {
			s.TelemetryLimit = d.TelemetryLimit
		}
		if s.EventsLimit <= 0 {
			s.EventsLimit = d.EventsLimit
		}
		e.settings = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithTelemetrySink(s TelemetrySink) Option {
	return func(e *Engine) {
		if s != nil {
			e.telemetrySinks = append(e.telemetrySinks, s)
		}
	}
}

func WithEventSink(s EventSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.eventSinks = append(e.eventSinks, s)
		}
	}
}

// Engine is the sync engine.
type Engine struct {
	api      API
	store    *view.Store
	state    *session.State
	settings Settings
	logger   *slog.Logger

	telemetrySinks []TelemetrySink
	eventSinks     []EventSink

	mu      sync.RWMutex
	config  core.BackendConfig
	status  map[Resource]ResourceStatus
	loops   sync.WaitGroup
	started chan struct{}
}

// New creates an Engine writing into store and sharing state.
func New(api API, store *view.Store, state *session.State, opts ...Option) *Engine {
	e := &Engine{
		api:      api,
		store:    store,
		state:    state,
		settings: DefaultSettings(),
		logger:   slog.Default(),
		config:   core.DefaultBackendConfig(),
		status:   make(map[Resource]ResourceStatus),
		started:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the effective intervals and limits.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Start performs the initial refresh of every resource and installs the
// telemetry, events and auto loops. The loops run until ctx is cancelled.
// Only the first call does anything; later calls return false.
func (e *Engine) Start(ctx context.Context) bool {
	if !e.state.MarkPollingStarted() {
		return false
	}
	e.logger.Info("Starting sync engine",
		"telemetryInterval", e.settings.TelemetryInterval,
		"eventsInterval", e.settings.EventsInterval,
		"autoInterval", e.settings.AutoInterval)

	_ = e.Refresh(ctx, All...)

	e.loops.Add(3)
	go e.loop(ctx, Telemetry, e.settings.TelemetryInterval)
	go e.loop(ctx, Events, e.settings.EventsInterval)
	go e.loop(ctx, Auto, e.settings.AutoInterval)
	close(e.started)
	return true
}

// Started is closed once the poll loops have been installed.
func (e *Engine) Started() <-chan struct{} {
	return e.started
}

// Wait blocks until every poll loop has exited.
func (e *Engine) Wait() {
	e.loops.Wait()
}

func (e *Engine) loop(ctx context.Context, r Resource, every time.Duration) {
	defer e.loops.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("Poll loop stopped", "resource", r)
			return
		case <-ticker.C:
			_ = e.refresh(ctx, r)
		}
	}
}

// Refresh re-fetches the given resources in order. Failures are isolated:
// every resource is attempted and the joined error is returned for callers
// that care.
func (e *Engine) Refresh(ctx context.Context, resources ...Resource) error {
	var errs []error
	for _, r := range resources {
		if err := e.refresh(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status returns a copy of the per-resource sync health.
func (e *Engine) Status() map[Resource]ResourceStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[Resource]ResourceStatus, len(e.status))
	for k, v := range e.status {
		out[k] = v
	}
	return out
}

// BackendConfig returns the last fetched backend config, or the defaults.
func (e *Engine) BackendConfig() core.BackendConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

func (e *Engine) refresh(ctx context.Context, r Resource) error {
	start := time.Now()
	result, err := e.fetch(ctx, r)
	metrics.ObservePoll(string(r), result, time.Since(start))

	e.mu.Lock()
	st := e.status[r]
	st.LastAttempt = start
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	} else {
		st.LastSuccess = start
		st.LastError = ""
	}
	e.status[r] = st
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("Refresh failed", "resource", r, "error", err)
		return fmt.Errorf("refresh %s: %w", r, err)
	}
	return nil
}

func (e *Engine) fetch(ctx context.Context, r Resource) (string, error) {
	switch r {
	case Health:
		return e.refreshHealth(ctx)
	case Config:
		return e.refreshConfig(ctx)
	case Telemetry:
		return e.refreshTelemetry(ctx)
	case Events:
		return e.refreshEvents(ctx)
	case Missions:
		return e.refreshMissions(ctx)
	case Clips:
		return e.refreshClips(ctx)
	case Targets:
		return e.refreshTargets(ctx)
	case Auto:
		return e.refreshAuto(ctx)
	}
	return metrics.ResultError, fmt.Errorf("unknown resource %q", r)
}
