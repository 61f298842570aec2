package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryConfig holds the configuration for OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Namespace   string
	Version     string
	Commit      string
	Environment string

	// Console layout, attached to every span when Workers > 0.
	Workers     int
	InputTarget int
	Capsules    int
}

// TelemetryShutdown flushes pending spans and puts the previous globals back.
type TelemetryShutdown func(ctx context.Context) error

// SetupTelemetry installs an OTLP/HTTP tracing pipeline as the global
// TracerProvider. When disabled or cfg is nil nothing global changes.
func SetupTelemetry(ctx context.Context, cfg *TelemetryConfig) (TelemetryShutdown, error) {
	if cfg == nil || !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(cfg.attributes()...))
	if err != nil {
		return noopShutdown, fmt.Errorf("merge otel resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx, cfg.exporterOptions()...)
	if err != nil {
		return noopShutdown, fmt.Errorf("create otel exporter: %w", err)
	}

	prev := captureGlobals()

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	// Export failures must not be printed over the rendered console.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(error) {}))

	return func(shutdownCtx context.Context) error {
		defer prev.restore()

		if err := provider.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown otel provider: %w", err)
		}

		return nil
	}, nil
}

func (cfg *TelemetryConfig) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", firstNonEmpty(cfg.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), "capcon")),
		attribute.String("service.version", cfg.Version),
		attribute.String("service.namespace", firstNonEmpty(cfg.Namespace, "capsule-console")),
		attribute.String("deployment.environment", firstNonEmpty(cfg.Environment, os.Getenv("OTEL_ENVIRONMENT"), "development")),
	}

	if cfg.Commit != "" {
		attrs = append(attrs, attribute.String("service.commit", cfg.Commit))
	}

	if cfg.Workers > 0 {
		attrs = append(attrs,
			attribute.Int("console.workers", cfg.Workers),
			attribute.Int("console.input_target", cfg.InputTarget),
			attribute.Int("console.capsules", cfg.Capsules),
		)
	}

	return attrs
}

func (cfg *TelemetryConfig) exporterOptions() []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithCompression(otlptracehttp.GzipCompression)}

	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}

	return opts
}

type otelGlobals struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	errHandler otel.ErrorHandler
}

func captureGlobals() otelGlobals {
	return otelGlobals{
		provider:   otel.GetTracerProvider(),
		propagator: otel.GetTextMapPropagator(),
		errHandler: otel.GetErrorHandler(),
	}
}

func (g otelGlobals) restore() {
	otel.SetTracerProvider(g.provider)
	otel.SetTextMapPropagator(g.propagator)
	otel.SetErrorHandler(g.errHandler)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// Tracer returns a named tracer from the global TracerProvider.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// IsTelemetryEnabled checks the OTEL_ENABLED env var.
func IsTelemetryEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED")))
	return v == "1" || v == "true" || v == "yes"
}

func noopShutdown(context.Context) error { return nil }
