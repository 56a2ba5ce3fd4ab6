// Package httpclient provides a JSON REST client that retries failed calls
// according to a retry.Policy. An attempt fails when the transport errors or
// when the response status is not in the request's accepted set.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gaborage/go-livy/retry"
)

// Client is the reliable HTTP client used by the Livy endpoint table.
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
	// Headers returns a copy of the headers sent with every request.
	Headers() map[string]string
}

// Request describes one logical call. Path is joined to the client's base URL.
type Request struct {
	Path string
	// Accepted lists the status codes that end the call successfully.
	// An empty list accepts any 2xx status.
	Accepted []int
	// Body is JSON-encoded unless it is already []byte or json.RawMessage.
	Body    any
	Headers map[string]string
}

// Response is the outcome of the first acceptable attempt.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats describes the work spent on a call across all attempts.
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body (status %d): %w", r.StatusCode, err)
	}
	return nil
}

// BasicAuth holds credentials for HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor can mutate a request before it is sent. It runs on every attempt.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor can inspect a response before its status is evaluated.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config configures a client.
type Config struct {
	BaseURL string
	// Timeout bounds a single attempt, not the whole retry sequence.
	Timeout     time.Duration
	RetryPolicy retry.Policy
	BasicAuth   *BasicAuth
	// DefaultHeaders are merged over Content-Type: application/json.
	DefaultHeaders     map[string]string
	InsecureSkipVerify bool
	// RequestsPerSecond paces attempts. Zero disables pacing.
	RequestsPerSecond float64
	// Transport replaces the default transport. Used by tests.
	Transport            nethttp.RoundTripper
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	LogPayloads          bool
	MaxPayloadLogBytes   int
}
