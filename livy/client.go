// Package livy implements the Livy REST endpoint table on top of the retrying
// HTTP client, plus RemoteSession, a handle that starts a session, runs
// statements in it and deletes it.
package livy

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/gaborage/go-livy/config"
	"github.com/gaborage/go-livy/httpclient"
	"github.com/gaborage/go-livy/logger"
	"github.com/gaborage/go-livy/retry"
)

// Option adjusts the HTTP client configuration built for an endpoint.
type Option func(*httpclient.Config)

// WithTransport replaces the HTTP transport.
func WithTransport(rt nethttp.RoundTripper) Option {
	return func(c *httpclient.Config) { c.Transport = rt }
}

// WithRateLimit paces requests to rps per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpclient.Config) { c.RequestsPerSecond = rps }
}

// WithRequestInterceptor runs i before every attempt.
func WithRequestInterceptor(i httpclient.RequestInterceptor) Option {
	return func(c *httpclient.Config) { c.RequestInterceptors = append(c.RequestInterceptors, i) }
}

// WithPayloadLogging logs request and response bodies at debug level.
func WithPayloadLogging(maxBytes int) Option {
	return func(c *httpclient.Config) {
		c.LogPayloads = true
		c.MaxPayloadLogBytes = maxBytes
	}
}

// WithRetryPolicy bypasses the policy selected from configuration.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *httpclient.Config) { c.RetryPolicy = p }
}

// Client issues the Livy REST calls for one endpoint.
type Client struct {
	endpoint Endpoint
	http     httpclient.Client
	logger   logger.Logger
}

// NewFromEndpoint builds a client for ep. The retry policy is selected from
// cfg before any request is made, so an unsupported policy fails here.
func NewFromEndpoint(ep Endpoint, cfg config.Provider, log logger.Logger, opts ...Option) (*Client, error) {
	policy, err := retry.FromProvider(cfg)
	if err != nil {
		return nil, err
	}

	hc := httpclient.Config{
		BaseURL:            ep.URL,
		Timeout:            cfg.HTTPTimeout(),
		RetryPolicy:        policy,
		DefaultHeaders:     cfg.CustomHeaders(),
		InsecureSkipVerify: cfg.IgnoreSSLErrors(),
	}
	if ep.UsesBasicAuth() {
		hc.BasicAuth = &httpclient.BasicAuth{Username: ep.Username, Password: ep.Password}
	}
	for _, opt := range opts {
		opt(&hc)
	}

	log = logger.Component(log, "livy")
	client, err := httpclient.New(hc, log)
	if err != nil {
		return nil, fmt.Errorf("livy client for %s: %w", ep.URL, err)
	}
	return &Client{endpoint: ep, http: client, logger: log}, nil
}

// Endpoint returns the endpoint this client talks to.
func (c *Client) Endpoint() Endpoint { return c.endpoint }

// Headers returns the headers sent with every request.
func (c *Client) Headers() map[string]string { return c.http.Headers() }

// PostStatement submits code to a session. Expects 201.
func (c *Client) PostStatement(ctx context.Context, sessionID int, stmt StatementRequest) (*Statement, error) {
	var out Statement
	if err := c.call(ctx, nethttp.MethodPost, fmt.Sprintf("/sessions/%d/statements", sessionID), stmt, &out, nethttp.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatement fetches one statement. Expects 200.
func (c *Client) GetStatement(ctx context.Context, sessionID, statementID int) (*Statement, error) {
	var out Statement
	if err := c.call(ctx, nethttp.MethodGet, fmt.Sprintf("/sessions/%d/statements/%d", sessionID, statementID), nil, &out, nethttp.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSessions lists the sessions known to the server. Expects 200.
func (c *Client) GetSessions(ctx context.Context) (*SessionList, error) {
	var out SessionList
	if err := c.call(ctx, nethttp.MethodGet, "/sessions", nil, &out, nethttp.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostSession creates a session with the given properties. Expects 201.
func (c *Client) PostSession(ctx context.Context, properties map[string]any) (*SessionInfo, error) {
	if properties == nil {
		properties = map[string]any{}
	}
	var out SessionInfo
	if err := c.call(ctx, nethttp.MethodPost, "/sessions", properties, &out, nethttp.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches one session. Expects 200.
func (c *Client) GetSession(ctx context.Context, id int) (*SessionInfo, error) {
	var out SessionInfo
	if err := c.call(ctx, nethttp.MethodGet, fmt.Sprintf("/sessions/%d", id), nil, &out, nethttp.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession deletes a session. 404 counts as success, so deleting an
// already-gone session is not retried.
func (c *Client) DeleteSession(ctx context.Context, id int) error {
	return c.call(ctx, nethttp.MethodDelete, fmt.Sprintf("/sessions/%d", id), nil, nil, nethttp.StatusOK, nethttp.StatusNotFound)
}

// GetAllSessionLogs returns the session log from the first line. Expects 200.
func (c *Client) GetAllSessionLogs(ctx context.Context, id int) (*SessionLog, error) {
	var out SessionLog
	if err := c.call(ctx, nethttp.MethodGet, fmt.Sprintf("/sessions/%d/log?from=0", id), nil, &out, nethttp.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, accepted ...int) error {
	resp, err := c.http.Do(ctx, method, &httpclient.Request{Path: path, Accepted: accepted, Body: body})
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.JSON(out)
}
