package tracing

import (
	"context"

	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/settings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
)

// InitTracer installs a global tracer provider exporting spans over OTLP/HTTP. The returned
// function flushes and stops the exporter. With tracing disabled nothing is installed and
// spans are no-ops.
func InitTracer(ctx context.Context, serviceName string, tSettings *settings.Settings) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if !tSettings.Tracing.Enabled {
		return noop, nil
	}

	var opts []otlptracehttp.Option
	if collector := tSettings.Tracing.CollectorURL; collector != nil && collector.String() != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(collector.String()))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noop, errors.NewConfigurationError("cannot initialize otlp trace exporter", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(tSettings.Tracing.SampleRate))),
		tracesdk.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("network", tSettings.ChainCfgParams.Name),
		)),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
