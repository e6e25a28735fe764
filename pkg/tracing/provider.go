package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// ProviderConfig controls how the trace provider is built
type ProviderConfig struct {
	ServiceName string
	Enabled     bool
	OTLP        exporters.OTLPConfig
}

// InitProvider installs the global tracer provider and sets the package
// tracer. The returned function flushes and shuts the provider down. When
// tracing is disabled spans are no-ops but span helpers still work.
func InitProvider(ctx context.Context, cfg ProviderConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		SetTracer(otel.Tracer(cfg.ServiceName))
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, cfg.OTLP)
	if err != nil {
		return nil, err
	}

	res := sdkresource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	SetTracer(provider.Tracer(cfg.ServiceName))

	return provider.Shutdown, nil
}
