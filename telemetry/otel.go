// Package telemetry bootstraps OpenTelemetry tracing and log export for the
// API client command.
package telemetry

import (
	"context"
	"net/url"
	"time"

	"github.com/agentuity/go-apiclient/logger"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

type ShutdownFunc func()

func endpoint(base *url.URL, path string) string {
	u := *base
	u.Path = path
	return u.String()
}

// New installs a global tracer provider exporting to the OTLP/HTTP server at
// serverURL and returns log, teed to the same server. An empty serverURL
// leaves the global providers untouched and returns log unchanged.
func New(ctx context.Context, serverURL string, serviceName string, log logger.Logger) (logger.Logger, ShutdownFunc, error) {
	if serverURL == "" {
		return log, func() {}, nil
	}
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error parsing otlp server url")
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		log.Warn("partial telemetry resource: %s", err)
	} else if err != nil {
		return nil, nil, errors.Wrap(err, "error creating resource")
	}

	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(endpoint(base, "/v1/traces")),
		otlptracehttp.WithTimeout(10 * time.Second),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	logOpts := []otlploghttp.Option{
		otlploghttp.WithEndpointURL(endpoint(base, "/v1/logs")),
		otlploghttp.WithTimeout(10 * time.Second),
		otlploghttp.WithCompression(otlploghttp.GzipCompression),
	}
	if base.Scheme == "http" {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		logOpts = append(logOpts, otlploghttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating trace exporter")
	}
	logExporter, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating log exporter")
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	logProvider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	otelLog := logger.NewOtelLogger(logProvider.Logger(serviceName), logger.LevelDebug)
	return logger.NewMultiLogger(log, otelLog), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tracerProvider.Shutdown(ctx)
		logProvider.Shutdown(ctx)
	}, nil
}
