package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	nethttp "net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-livy/internal/tracking"
	"github.com/gaborage/go-livy/logger"
	"github.com/gaborage/go-livy/retry"
)

const (
	// DefaultTimeout bounds a single attempt when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

type client struct {
	config     *Config
	logger     logger.Logger
	httpClient *nethttp.Client
	policy     retry.Policy
	baseURL    string
	headers    map[string]string
	limiter    *rate.Limiter
}

// New builds a client from cfg. A nil RetryPolicy disables retries.
func New(cfg Config, log logger.Logger) (Client, error) {
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxPayloadLogBytes <= 0 {
		cfg.MaxPayloadLogBytes = defaultMaxPayloadLogBytes
	}

	policy := cfg.RetryPolicy
	if policy == nil {
		policy = retry.NewLinear(0, 0)
	}

	headers := map[string]string{headerContentType: contentTypeJSON}
	maps.Copy(headers, cfg.DefaultHeaders)

	c := &client{
		config:  &cfg,
		logger:  log,
		policy:  policy,
		baseURL: base,
		headers: headers,
		httpClient: &nethttp.Client{
			Timeout:   cfg.Timeout,
			Transport: buildTransport(&cfg),
		},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}
	return c, nil
}

func normalizeBaseURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", NewValidationError("base URL is required", "base_url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("invalid base URL: %v", err), "base_url")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", NewValidationError(fmt.Sprintf("base URL %q must be an absolute http(s) URL", raw), "base_url")
	}
	return strings.TrimRight(raw, "/"), nil
}

func buildTransport(cfg *Config) nethttp.RoundTripper {
	if cfg.Transport != nil {
		return cfg.Transport
	}
	t := nethttp.DefaultTransport.(*nethttp.Transport).Clone()
	if cfg.InsecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via ignore_ssl_errors
	}
	return t
}

func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

func (c *client) Headers() map[string]string {
	return maps.Clone(c.headers)
}

// Do sends req until an attempt returns an accepted status or the retry policy
// gives up. Attempt n (zero-based) is followed by a wait of WaitTime(n) when
// ShouldRetry(n) holds. Validation and interceptor failures are never retried.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if req == nil {
		return nil, NewValidationError("request is required", "request")
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	target := c.resolve(req.Path)
	traceID := EnsureTraceID(ctx)
	ctx = WithTraceID(ctx, traceID)
	ctx, span := tracking.StartRequest(ctx, method, target)
	start := time.Now()

	lastStatus := 0
	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, method, target, req, body, traceID, attempt, start)
		if resp != nil {
			lastStatus = resp.StatusCode
		}
		if err == nil {
			tracking.EndRequest(span, lastStatus, attempt+1, nil)
			return resp, nil
		}

		if ctx.Err() != nil || !retryable(err) || !c.policy.ShouldRetry(attempt) {
			c.logFailure(method, target, traceID, attempt+1, time.Since(start), err)
			tracking.EndRequest(span, lastStatus, attempt+1, err)
			return nil, err
		}

		wait := c.policy.WaitTime(attempt)
		c.logRetry(method, target, traceID, attempt, wait, err)
		tracking.RecordRetry(ctx, method)
		if werr := sleep(ctx, wait); werr != nil {
			err = NewNetworkError("retry wait interrupted", werr)
			c.logFailure(method, target, traceID, attempt+1, time.Since(start), err)
			tracking.EndRequest(span, lastStatus, attempt+1, err)
			return nil, err
		}
	}
}

// attempt performs one round trip. On an unacceptable status it returns both
// the response and an HTTP error.
func (c *client) attempt(ctx context.Context, method, target string, req *Request, body []byte, traceID string, attempt int, start time.Time) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewNetworkError("rate limiter wait", err)
		}
	}

	var reader io.Reader = nethttp.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := nethttp.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("build request: %v", err), "path")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get(HeaderXRequestID) == "" {
		httpReq.Header.Set(HeaderXRequestID, traceID)
	}
	tracking.InjectHeaders(ctx, httpReq.Header)
	if auth := c.config.BasicAuth; auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
	for _, intercept := range c.config.RequestInterceptors {
		if err := intercept(ctx, httpReq); err != nil {
			return nil, NewInterceptorError("request interceptor failed", "request", err)
		}
	}

	c.logRequest(httpReq, body, traceID)

	attemptStart := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cerr := c.classifyTransportError(err)
		tracking.RecordAttempt(ctx, method, 0, time.Since(attemptStart), cerr.Type().String())
		return nil, cerr
	}
	defer httpResp.Body.Close()

	for _, intercept := range c.config.ResponseInterceptors {
		if err := intercept(ctx, httpReq, httpResp); err != nil {
			return nil, NewInterceptorError("response interceptor failed", "response", err)
		}
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		cerr := NewNetworkError("read response body", err)
		tracking.RecordAttempt(ctx, method, httpResp.StatusCode, time.Since(attemptStart), cerr.Type().String())
		return nil, cerr
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header.Clone(),
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   int64(attempt + 1),
		},
	}
	c.logResponse(resp, traceID)

	if !isAccepted(resp.StatusCode, req.Accepted) {
		tracking.RecordAttempt(ctx, method, resp.StatusCode, time.Since(attemptStart), HTTPError.String())
		msg := fmt.Sprintf("%s %s returned unexpected status (accepted: %s)", method, target, describeAccepted(req.Accepted))
		return resp, NewHTTPError(msg, resp.StatusCode, resp.Body)
	}
	tracking.RecordAttempt(ctx, method, resp.StatusCode, time.Since(attemptStart), "")
	return resp, nil
}

func (c *client) classifyTransportError(err error) ClientError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newTimeoutErrorWithCause("request exceeded transport timeout", c.config.Timeout, err)
	}
	return NewNetworkError("request failed", err)
}

func (c *client) resolve(path string) string {
	if path == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("encode request body: %v", err), "body")
		}
		return data, nil
	}
}

func isAccepted(status int, accepted []int) bool {
	if len(accepted) == 0 {
		return IsSuccessStatus(status)
	}
	return slices.Contains(accepted, status)
}

func describeAccepted(accepted []int) string {
	if len(accepted) == 0 {
		return "2xx"
	}
	parts := make([]string, len(accepted))
	for i, s := range accepted {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, ", ")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
