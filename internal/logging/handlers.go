package logging

import (
	"context"
	"log/slog"
)

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }
func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler        { return NoopHandler{} }
func (NoopHandler) WithGroup(string) slog.Handler             { return NoopHandler{} }

// teeHandler sends each record to every member that accepts its level, so a
// verbose file sink and a quiet console can share one logger.
type teeHandler []slog.Handler

// TeeHandler combines handlers, dropping nils.
func TeeHandler(handlers ...slog.Handler) slog.Handler {
	var members teeHandler
	for _, h := range handlers {
		if h != nil {
			members = append(members, h)
		}
	}
	switch len(members) {
	case 0:
		return NoopHandler{}
	case 1:
		return members[0]
	}
	return members
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var first error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = fn(h)
	}
	return next
}

// floorHandler drops records below min. The wrapped handler must itself be
// at least as verbose as the lowest floor anyone will set, which is why
// NewFromConfig builds its sinks at the most verbose configured level.
type floorHandler struct {
	inner slog.Handler
	min   slog.Level
}

func (f floorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= f.min && f.inner.Enabled(ctx, level)
}

func (f floorHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < f.min {
		return nil
	}
	return f.inner.Handle(ctx, record)
}

func (f floorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return floorHandler{inner: f.inner.WithAttrs(attrs), min: f.min}
}

func (f floorHandler) WithGroup(name string) slog.Handler {
	return floorHandler{inner: f.inner.WithGroup(name), min: f.min}
}

// WithLevelOverride returns logger with its minimum level replaced. A logger
// that already carries a floor has it swapped rather than stacked, so an
// override may be more verbose than the level it replaces.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	inner := logger.Handler()
	if f, ok := inner.(floorHandler); ok {
		inner = f.inner
	}
	return slog.New(floorHandler{inner: inner, min: level})
}

// ForStage scopes logger to a pipeline stage and applies the stage's level
// from overrides when present.
func ForStage(logger *slog.Logger, stage string, overrides map[string]string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	scoped := logger.With(String(FieldStage, stage))
	if raw := overrides[stage]; raw != "" {
		return WithLevelOverride(scoped, parseLevel(raw))
	}
	return scoped
}

// lowestLevel is the most verbose of level and every override.
func lowestLevel(level string, overrides map[string]string) slog.Level {
	lowest := parseLevel(level)
	for _, raw := range overrides {
		if l := parseLevel(raw); l < lowest {
			lowest = l
		}
	}
	return lowest
}
