// Package tracking instruments outbound Livy HTTP calls with OpenTelemetry
// spans and metrics. It uses the global tracer and meter providers, so it is
// a no-op until the application installs real ones.
package tracking

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "go-livy/httpclient"

	metricRequestDuration = "http.client.request.duration" // Histogram in seconds, one sample per attempt
	metricRetries         = "http.client.retries"          // Counter

	attrErrorType = "error.type"
	attrAttempts  = "livy.http.attempts"
)

var (
	meterOnce   sync.Once
	meterInitMu sync.Mutex
	meter       metric.Meter

	requestDuration metric.Float64Histogram
	retryCounter    metric.Int64Counter
)

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize http client metric %s: %v\n", name, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if meter != nil {
		return
	}
	meter = otel.Meter(instrumentationName)

	var err error
	requestDuration, err = meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of individual HTTP attempts against Livy"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	retryCounter, err = meter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of retried HTTP attempts"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)
}

func ensureMeter() {
	meterOnce.Do(initMeter)
}

// StartRequest opens a client span covering every attempt of one logical request.
func StartRequest(ctx context.Context, method, url string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "livy.http "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.URLFull(url),
		),
	)
}

// EndRequest closes a span opened by StartRequest. statusCode is the last
// status seen, or 0 when no response was received.
func EndRequest(span trace.Span, statusCode, attempts int, err error) {
	attrs := []attribute.KeyValue{attribute.Int(attrAttempts, attempts)}
	if statusCode > 0 {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(statusCode))
	}
	if attempts > 1 {
		attrs = append(attrs, semconv.HTTPRequestResendCount(attempts-1))
	}
	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordAttempt records the duration of a single attempt. errType is empty
// for attempts that produced an acceptable response.
func RecordAttempt(ctx context.Context, method string, statusCode int, duration time.Duration, errType string) {
	ensureMeter()
	if requestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{semconv.HTTPRequestMethodKey.String(method)}
	if statusCode > 0 {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(statusCode))
	}
	if errType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errType))
	}
	requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRetry counts one retry decision.
func RecordRetry(ctx context.Context, method string) {
	ensureMeter()
	if retryCounter == nil {
		return
	}
	retryCounter.Add(ctx, 1, metric.WithAttributes(semconv.HTTPRequestMethodKey.String(method)))
}

// InjectHeaders writes the span context of ctx into h using the global propagator.
func InjectHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// ResetForTesting drops the cached instruments so a test meter provider is picked up.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	meter = nil
	requestDuration = nil
	retryCounter = nil
	meterOnce = sync.Once{}
}
