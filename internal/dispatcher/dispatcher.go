package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Action is one operator action, e.g. "target.delete" with Args ["12"].
type Action struct {
	Name      string
	Args      []string
	Timestamp time.Time
}

// Arg returns Args[i] or "" when absent.
func (a Action) Arg(i int) string {
	if i < 0 || i >= len(a.Args) {
		return ""
	}
	return a.Args[i]
}

// HandlerFunc processes an action and returns a result.
type HandlerFunc func(context.Context, Action) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
// Queued actions run one at a time in arrival order.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging and panic recovery to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type queued struct {
	ctx    context.Context
	action Action
}

// Dispatcher routes actions to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]chan queued
	closed  bool
	workers sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan queued),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of actions in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("action", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.actions.processed",
		metric.WithDescription("Total actions processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.actions.dropped",
		metric.WithDescription("Total actions dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.actions.failed",
		metric.WithDescription("Total actions whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given action with optional configuration.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(name, h)

	// logging sits inside the buffer so queued failures are still reported
	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(name, cfg.bufferSize, cfg.blocking, handler)
	}

	d.mu.Lock()
	d.handlers[name] = handler
	d.mu.Unlock()
}

// Dispatch routes an action to its registered handler.
func (d *Dispatcher) Dispatch(ctx context.Context, a Action) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[a.Name]
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("unknown action: %s", a.Name)
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	return h(ctx, a)
}

// HasHandler returns true if a handler is registered for the action.
func (d *Dispatcher) HasHandler(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}

// Actions lists registered action names, sorted.
func (d *Dispatcher) Actions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close stops accepting actions and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) withMetrics(name string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("action", name))
	return func(ctx context.Context, a Action) (any, error) {
		result, err := h(ctx, a)
		d.processed.Add(context.Background(), 1, attrs)
		if err != nil {
			d.failed.Add(context.Background(), 1, attrs)
		}
		return result, err
	}
}

func (d *Dispatcher) withBuffer(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan queued, size)

	d.mu.Lock()
	d.buffers[name] = buffer
	d.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("action", name))

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for q := range buffer {
			_, _ = h(q.ctx, q.action)
		}
	}()

	// The read lock is held across the send so Close cannot close the
	// buffer under a pending enqueue.
	if blocking {
		return func(ctx context.Context, a Action) (any, error) {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return nil, ErrClosed
			}
			select {
			case buffer <- queued{ctx: ctx, action: a}:
				return "queued", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return func(ctx context.Context, a Action) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		select {
		case buffer <- queued{ctx: ctx, action: a}:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("queue full: %s", name)
		}
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, a Action) (result any, err error) {
		start := time.Now()
		d.logger.Debug("handling action", "action", name, "args", len(a.Args))

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("action %s panicked: %v", name, r)
			}
			if err != nil {
				d.logger.Error("action failed", "action", name, "duration", time.Since(start), "error", err)
			} else {
				d.logger.Debug("action complete", "action", name, "duration", time.Since(start))
			}
		}()

		return h(ctx, a)
	}
}
