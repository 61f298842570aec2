package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names used by the console packages.
const (
	ConsoleTracer = "capcon/console"
	HostTracer    = "capcon/host"
)

// StartCapsuleRun starts the span covering a capsule process from launch
// until EndCapsuleRun.
func StartCapsuleRun(ctx context.Context, id int, command string) (context.Context, trace.Span) {
	return Tracer(HostTracer).Start(ctx, "capsule.run", trace.WithAttributes(
		attribute.Int("capsule.id", id),
		attribute.String("capsule.command", command),
	))
}

// CapsuleStarted records the pid of a launched capsule on its run span.
func CapsuleStarted(span trace.Span, pid int) {
	span.AddEvent("capsule.started", trace.WithAttributes(attribute.Int("capsule.pid", pid)))
}

// EndCapsuleRun ends a capsule run span. A non-nil err marks the span failed.
func EndCapsuleRun(span trace.Span, status string, err error) {
	span.SetAttributes(attribute.String("capsule.status", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}

	span.End()
}

// RecordWorkerFatal records a console worker stopping on an unrecoverable
// host error as a console.fatal span.
func RecordWorkerFatal(ctx context.Context, worker int, op string, kind, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int("worker.id", worker),
		attribute.String("console.fatal.op", op),
	}

	if kind != nil {
		attrs = append(attrs, attribute.String("console.fatal.kind", kind.Error()))
	}

	_, span := Tracer(ConsoleTracer).Start(ctx, "console.fatal", trace.WithAttributes(attrs...))
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	span.End()
}
