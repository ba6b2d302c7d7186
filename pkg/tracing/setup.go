package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// SetupTracing installs the global propagator and, when an endpoint is configured,
// an OTLP/gRPC tracer provider. The returned function flushes and shuts it down.
func SetupTracing(ctx context.Context, config *Config, logger *slog.Logger) (func(context.Context) error, error) {
	// Propagation is needed even without export so trace ids flow to subscribers.
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.Enabled() {
		logger.Info("Tracing export disabled", slog.String("service", config.ServiceName))
		return func(context.Context) error { return nil }, nil
	}

	logger.Info("Initializing OpenTelemetry Tracer",
		slog.String("service", config.ServiceName),
		slog.String("collector", config.OTLPExporterEndpoint))

	dialOpts := []grpc.DialOption{}
	if config.OTLPExporterInsecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(config.OTLPExporterEndpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.ServiceInstanceID(config.InstanceID),
		semconv.DeploymentEnvironment(config.Environment),
		attribute.String("service.namespace", "ctxrelay"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(config.SamplingRatio),
		)),
	)
	otel.SetTracerProvider(tp)

	logger.Info("TracerProvider initialized", slog.String("service", config.ServiceName))

	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		return err
	}
	return shutdown, nil
}
