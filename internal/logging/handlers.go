package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes stamped on every record at write time.
type ContextProvider func() []slog.Attr

// fanout sends each record to every sink that accepts its level. A failing
// sink does not stop the others; their errors are joined.
type fanout []slog.Handler

func newFanout(sinks ...slog.Handler) fanout {
	out := make(fanout, 0, len(sinks))
	for _, h := range sinks {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// stamped adds the provider's attributes to each record before passing it on.
// The provider is read per record, so connection phase changes show up
// immediately.
type stamped struct {
	next     slog.Handler
	provider ContextProvider
}

func withStamp(next slog.Handler, p ContextProvider) slog.Handler {
	if p == nil {
		return next
	}
	return stamped{next: next, provider: p}
}

func (s stamped) Enabled(ctx context.Context, level slog.Level) bool {
	return s.next.Enabled(ctx, level)
}

func (s stamped) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(s.provider()...)
	return s.next.Handle(ctx, r)
}

func (s stamped) WithAttrs(attrs []slog.Attr) slog.Handler {
	return stamped{next: s.next.WithAttrs(attrs), provider: s.provider}
}

func (s stamped) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return stamped{next: s.next.WithGroup(name), provider: s.provider}
}
