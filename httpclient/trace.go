package httpclient

import (
	"context"
	nethttp "net/http"

	"github.com/google/uuid"
)

type contextKey string

const traceIDKey contextKey = "request_id"

// HeaderXRequestID carries the per-call request identifier.
const HeaderXRequestID = "X-Request-ID"

// WithTraceID stores a request identifier in ctx. Every attempt of a call
// made with ctx sends the same identifier.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the request identifier stored in ctx, if any.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(traceIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureTraceID returns the identifier from ctx or a new UUID.
func EnsureTraceID(ctx context.Context) string {
	if id, ok := TraceIDFromContext(ctx); ok {
		return id
	}
	return uuid.New().String()
}

// NewTraceIDInterceptor sets X-Request-ID on requests that do not carry one.
func NewTraceIDInterceptor() RequestInterceptor {
	return NewTraceIDInterceptorFor(HeaderXRequestID)
}

// NewTraceIDInterceptorFor is NewTraceIDInterceptor with a custom header name.
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, EnsureTraceID(ctx))
		}
		return nil
	}
}
