package livy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-livy/config"
	"github.com/gaborage/go-livy/logger"
	"github.com/gaborage/go-livy/testing/livytest"
)

var fastSession = SessionOptions{StartupTimeout: 2 * time.Second, PollInterval: 5 * time.Millisecond}

func TestRemoteSessionLifecycle(t *testing.T) {
	srv := livytest.New(livytest.WithStartupPolls(3), livytest.WithStatementPolls(2))
	defer srv.Close()

	cfg := fastConfig(t, map[string]any{"session_configs": map[string]any{"driverMemory": "1000M"}})
	c := newTestClient(t, srv, cfg)

	props, err := cfg.SessionProperties("python")
	require.NoError(t, err)
	s := NewRemoteSession(c, props, SessionOptionsFromConfig(cfg))
	assert.Equal(t, -1, s.ID())
	assert.Equal(t, StateNotStarted, s.State())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Equal(t, 0, s.ID())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, "pyspark", s.Kind())
	assert.Equal(t, "1000M", srv.SessionProperties(0)["driverMemory"])
	assert.Equal(t, c.Endpoint(), s.Endpoint())

	assert.ErrorIs(t, s.Start(ctx), ErrSessionAlreadyStarted)

	out, err := s.Execute(ctx, "print(42)")
	require.NoError(t, err)
	assert.Equal(t, OutputOK, out.Status)
	assert.Equal(t, "print(42)", out.Text())

	logs, err := s.Logs(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, logs.Log)

	require.NoError(t, s.Delete(ctx))
	assert.Equal(t, StateDead, s.State())
	assert.Empty(t, srv.SessionIDs())

	// already dead: no further request
	before := srv.Requests(http.MethodDelete, livytest.RouteSession)
	require.NoError(t, s.Delete(ctx))
	assert.Equal(t, before, srv.Requests(http.MethodDelete, livytest.RouteSession))
}

func TestRemoteSessionNotStarted(t *testing.T) {
	srv := livytest.New()
	defer srv.Close()
	s := NewRemoteSession(newTestClient(t, srv, fastConfig(t, nil)), nil, fastSession)

	_, err := s.Execute(context.Background(), "1")
	assert.ErrorIs(t, err, ErrSessionNotStarted)
	_, err = s.Logs(context.Background())
	assert.ErrorIs(t, err, ErrSessionNotStarted)
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrSessionNotStarted)

	require.NoError(t, s.Delete(context.Background()))
	assert.Equal(t, 0, srv.Requests(http.MethodDelete, livytest.RouteSession))
}

func TestRemoteSessionStartFailure(t *testing.T) {
	srv := livytest.New(livytest.WithStartupFailure(StateDead))
	defer srv.Close()
	s := NewRemoteSession(newTestClient(t, srv, fastConfig(t, nil)), map[string]any{"kind": "spark"}, fastSession)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrSessionFailed)
	assert.Contains(t, err.Error(), "session is dead")
	assert.Equal(t, StateDead, s.State())
}

func TestRemoteSessionStartupTimeout(t *testing.T) {
	srv := livytest.New(livytest.WithStartupPolls(1_000_000))
	defer srv.Close()
	s := NewRemoteSession(newTestClient(t, srv, fastConfig(t, nil)), nil,
		SessionOptions{StartupTimeout: 40 * time.Millisecond, PollInterval: 5 * time.Millisecond})

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrStartupTimeout)
	assert.Equal(t, StateStarting, s.State())
}

func TestRemoteSessionStatementError(t *testing.T) {
	srv := livytest.New(livytest.WithEvaluator(func(_, code string) livytest.Output {
		return livytest.Output{Status: "error", EName: "NameError", EValue: "name 'x' is not defined", Traceback: []string{"line 1"}}
	}))
	defer srv.Close()
	s := NewRemoteSession(newTestClient(t, srv, fastConfig(t, nil)), nil, fastSession)
	require.NoError(t, s.Start(context.Background()))

	out, err := s.Execute(context.Background(), "x")
	require.Error(t, err)
	require.NotNil(t, out)

	var stmtErr *StatementError
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, "NameError", stmtErr.Name)
	assert.Equal(t, "NameError: name 'x' is not defined", err.Error())
	assert.Equal(t, []string{"line 1"}, out.Traceback)
}

func TestRemoteSessionStatementEndsInErrorState(t *testing.T) {
	for _, state := range []string{StatementStateError, StatementCancelled} {
		t.Run(state, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				switch {
				case r.Method == http.MethodPost && r.URL.Path == "/sessions/7/statements":
					w.WriteHeader(http.StatusCreated)
					_, _ = w.Write([]byte(`{"id":0,"state":"running"}`))
				case r.Method == http.MethodGet && r.URL.Path == "/sessions/7/statements/0":
					_, _ = w.Write([]byte(`{"id":0,"state":"` + state + `"}`))
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer srv.Close()

			ep, err := NewEndpoint(srv.URL, config.NoAuth, "", "")
			require.NoError(t, err)
			c, err := NewFromEndpoint(ep, fastConfig(t, nil), logger.Nop())
			require.NoError(t, err)

			s := AttachSession(c, SessionInfo{ID: 7, Kind: "pyspark", State: StateIdle}, fastSession)
			out, err := s.Execute(context.Background(), "1")
			require.ErrorIs(t, err, ErrStatementFailed)
			assert.Nil(t, out)
			assert.Contains(t, err.Error(), "statement 0 in session 7 is "+state)

			var stmtErr *StatementError
			assert.False(t, errors.As(err, &stmtErr))
		})
	}
}

func TestAttachSession(t *testing.T) {
	srv := livytest.New()
	defer srv.Close()
	c := newTestClient(t, srv, fastConfig(t, nil))

	created, err := c.PostSession(context.Background(), map[string]any{"kind": "sparkr"})
	require.NoError(t, err)

	s := AttachSession(c, *created, fastSession)
	assert.Equal(t, created.ID, s.ID())
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, "sparkr", s.Kind())
	assert.Contains(t, s.String(), "Session id: 0")
}

func TestRemoteSessionDeleteFailurePropagates(t *testing.T) {
	srv := livytest.New()
	defer srv.Close()
	c := newTestClient(t, srv, fastConfig(t, map[string]any{"configurable_retry_policy_max_retries": 0}))

	s := NewRemoteSession(c, nil, fastSession)
	require.NoError(t, s.Start(context.Background()))

	srv.FailNext(http.MethodDelete, livytest.RouteSession, 1, http.StatusInternalServerError)
	err := s.Delete(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.Len(t, srv.SessionIDs(), 1)
}
