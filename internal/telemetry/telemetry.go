// Package telemetry sets up OpenTelemetry tracing. Chart builds and data
// refreshes open spans on the tracer returned here; with tracing off the
// tracer is a no-op.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/seenimoa/yieldcharts/internal/config"
	"github.com/seenimoa/yieldcharts/internal/logging"
)

// InstrumentationName names the tracer used across the module.
const InstrumentationName = "github.com/seenimoa/yieldcharts"

// Provider owns the tracer provider for the process lifetime.
type Provider struct {
	tp     *sdktrace.TracerProvider
	Tracer trace.Tracer
}

// Setup builds the tracer described by cfg and installs it globally.
// Spans go to stdout when cfg.Tracing is "stdout".
func Setup(cfg config.TelemetryConfig, version string, logger *slog.Logger) (*Provider, error) {
	return SetupWithWriter(cfg, version, os.Stdout, logger)
}

// SetupWithWriter is Setup with the stdout exporter writing to w.
func SetupWithWriter(cfg config.TelemetryConfig, version string, w io.Writer, logger *slog.Logger) (*Provider, error) {
	logger = logging.OrDefault(logger)

	switch cfg.Tracing {
	case "", "none":
		return &Provider{Tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}, nil
	case "stdout":
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Tracing)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "yieldcharts"
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(name),
		semconv.ServiceVersion(version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		slog.String("exporter", cfg.Tracing),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return &Provider{
		tp:     tp,
		Tracer: tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(version)),
	}, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Noop returns a tracer that records nothing.
func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer(InstrumentationName)
}

// RecordError marks span failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
