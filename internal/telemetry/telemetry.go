// Package telemetry wires OpenTelemetry tracing and metrics into weft.
//
// The whole package is inert unless WEFT_OTEL_ENABLED=true; the disabled
// path installs noop providers so instrumented code pays nothing.
//
// Exporter selection, all via environment:
//
//	WEFT_OTEL_STDOUT=true                    pretty-print to stderr (dev)
//	OTEL_EXPORTER_OTLP_ENDPOINT=host:4317    OTLP over gRPC (traces+metrics)
//	OTEL_EXPORTER_OTLP_METRICS_ENDPOINT=...  metrics-only override
//	OTEL_SERVICE_NAME=weft                   service name override
//
// With telemetry enabled but nothing configured, traces fall back to the
// stdout exporter so enabling is never silently a no-op.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/weftworks/weft"

// settings is the env snapshot taken once at Init.
type settings struct {
	stdout          bool
	traceEndpoint   string
	metricsEndpoint string
}

func readSettings() settings {
	s := settings{
		stdout:          os.Getenv("WEFT_OTEL_STDOUT") == "true",
		traceEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		metricsEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
	}
	if s.metricsEndpoint == "" {
		s.metricsEndpoint = s.traceEndpoint
	}
	return s
}

var shutdownFns []func(context.Context) error

// Enabled reports whether telemetry is active (WEFT_OTEL_ENABLED=true).
func Enabled() bool {
	return os.Getenv("WEFT_OTEL_ENABLED") == "true"
}

// Init installs global tracer and meter providers. Disabled mode installs
// noops and returns without touching the network.
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}
	cfg := readSettings()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	tp, err := traceProvider(ctx, cfg, res)
	if err != nil {
		return fmt.Errorf("telemetry: traces: %w", err)
	}
	mp, err := meterProvider(ctx, cfg, res)
	if err != nil {
		return fmt.Errorf("telemetry: metrics: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, tp.Shutdown, mp.Shutdown)
	return nil
}

func traceProvider(ctx context.Context, cfg settings, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	// stdout also serves as the fallback when no OTLP endpoint is set.
	if cfg.stdout || cfg.traceEndpoint == "" {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	if cfg.traceEndpoint != "" {
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.traceEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func meterProvider(ctx context.Context, cfg settings, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)),
		))
	}
	if cfg.metricsEndpoint != "" {
		exp, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.metricsEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second)),
		))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns a named tracer, defaulting to the module scope.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a named meter, defaulting to the module scope.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes and stops every installed provider. Call with a
// short-deadline context on process exit.
func Shutdown(ctx context.Context) {
	for _, fn := range shutdownFns {
		_ = fn(ctx)
	}
	shutdownFns = nil
}
