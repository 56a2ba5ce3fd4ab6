// Package observability installs OpenTelemetry tracer and meter providers
// for binaries built on go-livy. Library packages never call it; they use the
// global providers, which stay no-ops until a Provider is created here.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gaborage/go-livy/config"
)

// ErrInvalidExporter is returned for an exporter name that is not supported.
var ErrInvalidExporter = errors.New("invalid exporter")

const defaultMetricInterval = 10 * time.Second

// Provider owns the SDK providers installed as globals.
type Provider interface {
	// Shutdown flushes pending telemetry and stops the exporters.
	Shutdown(ctx context.Context) error
}

// Options adjust provider construction.
type Options struct {
	// Writer receives stdout exporter output. Defaults to os.Stderr so
	// telemetry does not mix with command output.
	Writer         io.Writer
	MetricInterval time.Duration
	ServiceVersion string
}

type provider struct {
	mu             sync.Mutex
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

type noopProvider struct{}

func (noopProvider) Shutdown(context.Context) error { return nil }

// NewProvider installs global tracer and meter providers according to s.
// When s.Enabled is false it installs nothing and returns a no-op provider.
func NewProvider(ctx context.Context, s config.ObservabilitySettings, opts Options) (Provider, error) {
	if !s.Enabled {
		return noopProvider{}, nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.MetricInterval <= 0 {
		opts.MetricInterval = defaultMetricInterval
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(s.ServiceName),
		semconv.ServiceVersion(opts.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	spanExporter, err := newSpanExporter(ctx, s, opts.Writer)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	metricExporter, err := newMetricExporter(ctx, s, opts.Writer)
	if err != nil {
		_ = spanExporter.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p := &provider{
		tracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(spanExporter),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRate))),
		),
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(opts.MetricInterval))),
		),
	}

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func newSpanExporter(ctx context.Context, s config.ObservabilitySettings, w io.Writer) (sdktrace.SpanExporter, error) {
	switch s.Exporter {
	case config.ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case config.ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.Endpoint)}
		if s.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(s.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(s.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	case config.ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.Endpoint)}
		if s.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(s.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(s.Headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("trace exporter '%s': %w", s.Exporter, ErrInvalidExporter)
	}
}

func newMetricExporter(ctx context.Context, s config.ObservabilitySettings, w io.Writer) (sdkmetric.Exporter, error) {
	switch s.Exporter {
	case config.ExporterStdout:
		return stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
	case config.ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(s.Endpoint)}
		if s.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(s.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(s.Headers))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case config.ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(s.Endpoint)}
		if s.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(s.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(s.Headers))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("metric exporter '%s': %w", s.Exporter, ErrInvalidExporter)
	}
}

// Shutdown flushes and stops both providers. Errors from each are joined.
func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
		}
		p.tracerProvider = nil
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
		p.meterProvider = nil
	}
	return errors.Join(errs...)
}
