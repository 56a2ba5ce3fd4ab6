package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-livy/retry"
)

// countingPolicy records the attempts it is asked about.
type countingPolicy struct {
	mu       sync.Mutex
	inner    retry.Policy
	asked    []int
	waitedOn []int
}

func (p *countingPolicy) ShouldRetry(attempt int) bool {
	p.mu.Lock()
	p.asked = append(p.asked, attempt)
	p.mu.Unlock()
	return p.inner.ShouldRetry(attempt)
}

func (p *countingPolicy) WaitTime(attempt int) time.Duration {
	p.mu.Lock()
	p.waitedOn = append(p.waitedOn, attempt)
	p.mu.Unlock()
	return p.inner.WaitTime(attempt)
}

func zeroConfigurable(t *testing.T, maxRetries int) retry.Policy {
	t.Helper()
	p, err := retry.NewConfigurable([]time.Duration{0, 0}, maxRetries)
	require.NoError(t, err)
	return p
}

func newTestClient(t *testing.T, srv *httptest.Server, policy retry.Policy, mutate ...func(*Config)) Client {
	t.Helper()
	cfg := Config{BaseURL: srv.URL, RetryPolicy: policy, Timeout: 2 * time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg, &recordingLogger{})
	require.NoError(t, err)
	return c
}

// failingServer answers status for the first n requests and then final.
func failingServer(t *testing.T, n int32, status, final int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= n {
			w.WriteHeader(status)
			return
		}
		w.WriteHeader(final)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "localhost:8998", "ftp://livy", "http://"} {
		_, err := New(Config{BaseURL: raw}, nil)
		assert.True(t, IsErrorType(err, ValidationError), "base URL %q should be rejected", raw)
	}

	c, err := New(Config{BaseURL: "http://localhost:8998/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8998", c.(*client).baseURL)
}

func TestRetriesUntilAccepted(t *testing.T) {
	srv, calls := failingServer(t, 2, http.StatusInternalServerError, http.StatusCreated, `{"id":0}`)
	c := newTestClient(t, srv, zeroConfigurable(t, 2))

	resp, err := c.Post(context.Background(), &Request{Path: "/sessions", Accepted: []int{http.StatusCreated}, Body: map[string]any{"kind": "spark"}})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int64(3), resp.Stats.CallCount)

	var decoded map[string]int
	require.NoError(t, resp.JSON(&decoded))
	assert.Equal(t, 0, decoded["id"])
}

func TestStopsWhenPolicyGivesUp(t *testing.T) {
	srv, calls := failingServer(t, 10, http.StatusServiceUnavailable, http.StatusOK, "")
	policy := &countingPolicy{inner: zeroConfigurable(t, 2)}
	c := newTestClient(t, srv, policy)

	_, err := c.Get(context.Background(), &Request{Path: "/sessions", Accepted: []int{http.StatusOK}})
	require.Error(t, err)
	assert.True(t, IsHTTPStatusError(err, http.StatusServiceUnavailable))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int{0, 1, 2}, policy.asked)
	assert.Equal(t, []int{0, 1}, policy.waitedOn)
}

func TestNoWaitOnFirstSuccess(t *testing.T) {
	srv, calls := failingServer(t, 0, 0, http.StatusOK, `{}`)
	policy := &countingPolicy{inner: retry.NewLinear(time.Hour, 5)}
	c := newTestClient(t, srv, policy)

	_, err := c.Get(context.Background(), &Request{Path: "/sessions"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, policy.asked)
	assert.Empty(t, policy.waitedOn)
}

func TestAcceptedListOverridesSuccessRange(t *testing.T) {
	srv, calls := failingServer(t, 0, 0, http.StatusNotFound, `{"msg":"not found"}`)
	c := newTestClient(t, srv, zeroConfigurable(t, 3))

	resp, err := c.Delete(context.Background(), &Request{Path: "/sessions/4", Accepted: []int{http.StatusOK, http.StatusNotFound}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.Get(context.Background(), &Request{Path: "/sessions/4", Accepted: []int{http.StatusOK}})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestNilPolicyDoesNotRetry(t *testing.T) {
	srv, calls := failingServer(t, 5, http.StatusBadGateway, http.StatusOK, "")
	c := newTestClient(t, srv, nil)

	_, err := c.Get(context.Background(), &Request{Path: "/sessions"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportErrorIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	policy := &countingPolicy{inner: zeroConfigurable(t, 1)}
	c, err := New(Config{BaseURL: url, RetryPolicy: policy}, nil)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), &Request{Path: "/sessions"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkError))
	assert.Equal(t, []int{0, 1}, policy.asked)
}

func TestTimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv, nil, func(cfg *Config) { cfg.Timeout = 20 * time.Millisecond })
	_, err := c.Get(context.Background(), &Request{Path: "/sessions"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, TimeoutError), "got %v", err)
}

func TestContextCancelStopsRetryWait(t *testing.T) {
	srv, calls := failingServer(t, 10, http.StatusInternalServerError, http.StatusOK, "")
	c := newTestClient(t, srv, retry.NewLinear(time.Hour, 5))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Get(ctx, &Request{Path: "/sessions"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHeadersAndBody(t *testing.T) {
	var (
		mu       sync.Mutex
		captured []*http.Request
		bodies   [][]byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		captured = append(captured, r.Clone(context.Background()))
		bodies = append(bodies, body)
		n := len(captured)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv, zeroConfigurable(t, 1), func(cfg *Config) {
		cfg.BasicAuth = &BasicAuth{Username: "alice", Password: "s3cret"}
		cfg.DefaultHeaders = map[string]string{"X-Requested-By": "livy"}
	})

	assert.Equal(t, map[string]string{"Content-Type": "application/json", "X-Requested-By": "livy"}, c.Headers())

	ctx := WithTraceID(context.Background(), "call-42")
	_, err := c.Post(ctx, &Request{Path: "sessions/1/statements", Accepted: []int{http.StatusCreated}, Body: map[string]string{"code": "1 + 2"}})
	require.NoError(t, err)

	require.Len(t, captured, 2)
	for i, r := range captured {
		assert.Equal(t, "/sessions/1/statements", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "livy", r.Header.Get("X-Requested-By"))
		assert.Equal(t, "call-42", r.Header.Get(HeaderXRequestID), "attempt %d", i)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "s3cret", pass)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(bodies[i], &payload), "body must be resent on attempt %d", i)
		assert.Equal(t, "1 + 2", payload["code"])
	}
}

func TestHeadersReturnsCopy(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8998"}, nil)
	require.NoError(t, err)

	h := c.Headers()
	h["Content-Type"] = "text/plain"
	assert.Equal(t, "application/json", c.Headers()["Content-Type"])
}

func TestInterceptorErrorsAreNotRetried(t *testing.T) {
	srv, calls := failingServer(t, 0, 0, http.StatusOK, "")
	boom := errors.New("boom")

	c := newTestClient(t, srv, zeroConfigurable(t, 5), func(cfg *Config) {
		cfg.RequestInterceptors = []RequestInterceptor{func(context.Context, *http.Request) error { return boom }}
	})
	_, err := c.Get(context.Background(), &Request{Path: "/sessions"})
	assert.True(t, IsErrorType(err, InterceptorError))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(0), calls.Load())

	c = newTestClient(t, srv, zeroConfigurable(t, 5), func(cfg *Config) {
		cfg.ResponseInterceptors = []ResponseInterceptor{func(context.Context, *http.Request, *http.Response) error { return boom }}
	})
	_, err = c.Get(context.Background(), &Request{Path: "/sessions"})
	assert.True(t, IsErrorType(err, InterceptorError))
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnencodableBody(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8998"}, nil)
	require.NoError(t, err)

	_, err = c.Post(context.Background(), &Request{Path: "/sessions", Body: map[string]any{"bad": make(chan int)}})
	assert.True(t, IsErrorType(err, ValidationError))

	_, err = c.Do(context.Background(), http.MethodGet, nil)
	assert.True(t, IsErrorType(err, ValidationError))
}

func TestRawBodyPassesThrough(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv, nil)
	_, err := c.Post(context.Background(), &Request{Path: "/x", Body: json.RawMessage(`{"kind":"spark"}`)})
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"spark"}`, string(got))
}

func TestRateLimitedClient(t *testing.T) {
	srv, calls := failingServer(t, 0, 0, http.StatusOK, "")
	c, err := NewBuilder(&recordingLogger{}).
		WithBaseURL(srv.URL).
		WithRateLimit(1000).
		WithDefaultHeaders(map[string]string{"X-Requested-By": "tests"}).
		Build()
	require.NoError(t, err)

	for range 3 {
		_, err := c.Get(context.Background(), &Request{Path: "/sessions"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.NotNil(t, c.(*client).limiter)
}

func TestBuilderAppliesOptions(t *testing.T) {
	policy := zeroConfigurable(t, 1)
	noopReq := func(context.Context, *http.Request) error { return nil }
	noopResp := func(context.Context, *http.Request, *http.Response) error { return nil }

	b := NewBuilder(&recordingLogger{}).
		WithBaseURL("http://livy:8998").
		WithTimeout(5*time.Second).
		WithRetryPolicy(policy).
		WithBasicAuth("analyst", "pw").
		WithDefaultHeader("X-Requested-By", "livyctl").
		WithDefaultHeaders(map[string]string{"X-Team": "data"}).
		WithInsecureSkipVerify(true).
		WithRateLimit(20).
		WithRequestInterceptor(noopReq).
		WithResponseInterceptor(noopResp).
		WithLogPayloads(true, 64)

	cfg := b.config
	assert.Equal(t, "http://livy:8998", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Same(t, policy, cfg.RetryPolicy)
	assert.Equal(t, &BasicAuth{Username: "analyst", Password: "pw"}, cfg.BasicAuth)
	assert.Equal(t, map[string]string{"X-Requested-By": "livyctl", "X-Team": "data"}, cfg.DefaultHeaders)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 20.0, cfg.RequestsPerSecond)
	assert.Len(t, cfg.RequestInterceptors, 1)
	assert.Len(t, cfg.ResponseInterceptors, 1)
	assert.True(t, cfg.LogPayloads)
	assert.Equal(t, 64, cfg.MaxPayloadLogBytes)

	c, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "livyctl", c.Headers()["X-Requested-By"])
}
