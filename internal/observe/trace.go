package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the Solace tracer.
const tracerName = "github.com/MrWong99/solace"

// Tracer returns the package-level [trace.Tracer] for Solace. It uses the
// globally registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// TurnIDKey is the span attribute carrying the conversation turn ID.
const TurnIDKey = attribute.Key("turn.id")

type turnIDCtxKey struct{}

// StartTurnSpan starts the root span of one conversation turn. The turn ID is
// recorded on the span and carried in the returned context, where [Logger]
// and [TurnID] pick it up.
func StartTurnSpan(ctx context.Context, turnID string) (context.Context, trace.Span) {
	ctx = context.WithValue(ctx, turnIDCtxKey{}, turnID)
	return StartSpan(ctx, "turn.process", trace.WithAttributes(TurnIDKey.String(turnID)))
}

// TurnID returns the turn ID stored by [StartTurnSpan], or "".
func TurnID(ctx context.Context) string {
	id, _ := ctx.Value(turnIDCtxKey{}).(string)
	return id
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns an [slog.Logger] enriched with trace_id and span_id from
// the OTel span context in ctx, plus turn_id inside a turn. Outside both, the
// returned logger is the default slog logger without extra attributes.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := TurnID(ctx); id != "" {
		l = l.With(slog.String("turn_id", id))
	}
	return l
}
