package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/voxbridge/voxbridge/internal/config"
)

// setupTelemetry installs the global tracer and meter providers and returns
// their combined shutdown plus the handler for the /metrics endpoint. Traces
// go to an OTLP collector when one is configured, to stdout otherwise; the
// bridge's identity (service version, provider mode) rides on the resource so
// every span and metric says which backend it fronted.
func setupTelemetry(cfg config.Config, version string, logger *slog.Logger) (func(context.Context) error, http.Handler, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
			attribute.String("deployment.environment", cfg.Environment),
			attribute.String("voxbridge.provider.mode", cfg.Provider.Mode),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	spanExporter, err := newSpanExporter(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, nil, err
	}
	tracer := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracer)

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	var metricHandler http.Handler
	if promExporter, err := prometheus.New(); err != nil {
		// Metrics are best-effort; the chat path must come up regardless.
		logger.Warn("prometheus exporter unavailable, metrics disabled",
			slog.String("error", err.Error()))
	} else {
		meterOpts = append(meterOpts, sdkmetric.WithReader(promExporter))
		metricHandler = promhttp.Handler()
	}
	meter := sdkmetric.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(meter)

	shutdown := func(ctx context.Context) error {
		return errors.Join(meter.Shutdown(ctx), tracer.Shutdown(ctx))
	}
	return shutdown, metricHandler, nil
}

func newSpanExporter(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if endpoint == "" {
		logger.Info("exporting traces to stdout")
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	logger.Info("exporting traces over otlp", slog.String("endpoint", endpoint))
	return otlptracegrpc.New(ctx, opts...)
}
