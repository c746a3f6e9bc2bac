package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor extracts a slog attribute from context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

type actorCtxKey struct{}

type actorIdentity struct {
	actorType string
	actorID   string
}

// WithActor returns a context carrying the identity of the actor whose turn is running.
// Loggers built by New add it to every record written with that context.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actorIdentity{actorType: actorType, actorID: actorID})
}

// ActorFromContext returns the actor identity stored by WithActor.
func ActorFromContext(ctx context.Context) (actorType, actorID string, ok bool) {
	id, ok := ctx.Value(actorCtxKey{}).(actorIdentity)
	if !ok {
		return "", "", false
	}
	return id.actorType, id.actorID, true
}

func actorExtractor(ctx context.Context) (slog.Attr, bool) {
	actorType, actorID, ok := ActorFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return Group("actor", slog.String("type", actorType), slog.String("id", actorID)), true
}

// LogHandlerDecorator wraps a slog.Handler and injects attributes from context.
type LogHandlerDecorator struct {
	next       slog.Handler
	extractors []ContextExtractor
}

// NewLogHandlerDecorator creates a new decorated handler. Nil extractors are dropped.
func NewLogHandlerDecorator(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	clean := make([]ContextExtractor, 0, len(extractors))
	for _, ex := range extractors {
		if ex != nil {
			clean = append(clean, ex)
		}
	}
	return &LogHandlerDecorator{next: next, extractors: clean}
}

func (h *LogHandlerDecorator) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle runs the extractors against ctx and delegates to the underlying handler.
func (h *LogHandlerDecorator) Handle(ctx context.Context, rec slog.Record) error {
	if len(h.extractors) == 0 || ctx == nil {
		return h.next.Handle(ctx, rec)
	}

	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *LogHandlerDecorator) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandlerDecorator{
		next:       h.next.WithAttrs(attrs),
		extractors: h.extractors,
	}
}

func (h *LogHandlerDecorator) WithGroup(name string) slog.Handler {
	return &LogHandlerDecorator{
		next:       h.next.WithGroup(name),
		extractors: h.extractors,
	}
}
