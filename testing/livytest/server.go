// Package livytest runs an in-process fake Livy server for tests.
//
// The server keeps sessions and statements in memory. New sessions report
// "starting" until they have been polled StartupPolls times, statements report
// "running" for StatementPolls polls. Failures can be injected per route:
//
//	srv := livytest.New()
//	defer srv.Close()
//	srv.FailNext(http.MethodPost, "/sessions", 2, http.StatusInternalServerError)
package livytest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// ServiceName identifies the fake server in the server spans it records
// through the global tracer provider.
const ServiceName = "livytest"

// Route patterns as registered with echo. Use them with FailNext and Requests.
const (
	RouteSessions   = "/sessions"
	RouteSession    = "/sessions/:id"
	RouteStatements = "/sessions/:id/statements"
	RouteStatement  = "/sessions/:id/statements/:stmt"
	RouteLog        = "/sessions/:id/log"
)

// Evaluator produces the output of a statement.
type Evaluator func(kind, code string) Output

// Output is the statement result returned once a statement is available.
type Output struct {
	Status    string
	Text      string
	EName     string
	EValue    string
	Traceback []string
}

// EchoEvaluator returns the code itself as text/plain.
func EchoEvaluator(_, code string) Output {
	return Output{Status: "ok", Text: code}
}

type fakeSession struct {
	ID         int
	Kind       string
	State      string
	Polls      int
	Properties map[string]any
	Log        []string
	Statements []*fakeStatement
}

type fakeStatement struct {
	ID    int
	Code  string
	State string
	Polls int
	Out   Output
}

type failure struct {
	remaining int
	status    int
}

// Server is a fake Livy server.
type Server struct {
	URL string

	echo *echo.Echo
	srv  *httptest.Server

	mu             sync.Mutex
	nextID         int
	sessions       map[int]*fakeSession
	failures       map[string]*failure
	requests       map[string]int
	headers        []http.Header
	startupPolls   int
	statementPolls int
	finalState     string
	evaluator      Evaluator
}

// Option configures a Server.
type Option func(*Server)

// WithStartupPolls sets how many GET /sessions/{id} calls a new session stays "starting".
func WithStartupPolls(n int) Option {
	return func(s *Server) { s.startupPolls = n }
}

// WithStatementPolls sets how many GET calls a statement stays "running".
func WithStatementPolls(n int) Option {
	return func(s *Server) { s.statementPolls = n }
}

// WithStartupFailure makes new sessions end in state instead of "idle".
func WithStartupFailure(state string) Option {
	return func(s *Server) { s.finalState = state }
}

// WithEvaluator replaces EchoEvaluator.
func WithEvaluator(e Evaluator) Option {
	return func(s *Server) { s.evaluator = e }
}

// New starts a fake server. Call Close when done.
func New(opts ...Option) *Server {
	s := &Server{
		sessions:       map[int]*fakeSession{},
		failures:       map[string]*failure{},
		requests:       map[string]int{},
		startupPolls:   1,
		statementPolls: 1,
		finalState:     "idle",
		evaluator:      EchoEvaluator,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(otelecho.Middleware(ServiceName))
	e.Use(s.record)

	e.GET(RouteSessions, s.listSessions)
	e.POST(RouteSessions, s.createSession)
	e.GET(RouteSession, s.getSession)
	e.DELETE(RouteSession, s.deleteSession)
	e.POST(RouteStatements, s.createStatement)
	e.GET(RouteStatement, s.getStatement)
	e.GET(RouteLog, s.getLog)

	s.echo = e
	s.srv = httptest.NewServer(e)
	s.URL = s.srv.URL
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

func key(method, route string) string {
	return method + " " + route
}

// FailNext makes the next n requests to method+route answer status.
func (s *Server) FailNext(method, route string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key(method, route)] = &failure{remaining: n, status: status}
}

// Requests returns how many requests hit method+route, failed ones included.
func (s *Server) Requests(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key(method, route)]
}

// Headers returns the headers of every request received so far.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]http.Header, len(s.headers))
	copy(out, s.headers)
	return out
}

// SetSessionState forces a session into state, e.g. "dead".
func (s *Server) SetSessionState(id int, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.State = state
	}
}

// SessionIDs returns the ids of the sessions currently stored.
func (s *Server) SessionIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// SessionProperties returns the body a session was created with.
func (s *Server) SessionProperties(id int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess.Properties
	}
	return nil
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		k := key(c.Request().Method, c.Path())

		s.mu.Lock()
		s.requests[k]++
		s.headers = append(s.headers, c.Request().Header.Clone())
		f := s.failures[k]
		var status int
		if f != nil && f.remaining > 0 {
			f.remaining--
			status = f.status
		}
		s.mu.Unlock()

		if status != 0 {
			return c.JSON(status, map[string]string{"msg": fmt.Sprintf("injected failure %d", status)})
		}
		return next(c)
	}
}

func notFound(c echo.Context, what string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"msg": what + " not found."})
}

func (s *Server) lookup(c echo.Context) (*fakeSession, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, false
	}
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) listSessions(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]map[string]any, 0, len(s.sessions))
	for id := 0; id < s.nextID; id++ {
		if sess, ok := s.sessions[id]; ok {
			list = append(list, sessionBody(sess))
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"from": 0, "total": len(list), "sessions": list})
}

func (s *Server) createSession(c echo.Context) error {
	props := map[string]any{}
	if err := c.Bind(&props); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"msg": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind, _ := props["kind"].(string)
	if kind == "" {
		kind = "spark"
	}
	sess := &fakeSession{
		ID:         s.nextID,
		Kind:       kind,
		State:      "starting",
		Properties: props,
		Log:        []string{"stdout: ", "\nstderr: ", fmt.Sprintf("session %d starting", s.nextID)},
	}
	s.sessions[sess.ID] = sess
	s.nextID++
	return c.JSON(http.StatusCreated, sessionBody(sess))
}

func (s *Server) getSession(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(c)
	if !ok {
		return notFound(c, "Session")
	}
	if sess.State == "starting" {
		sess.Polls++
		if sess.Polls >= s.startupPolls {
			sess.State = s.finalState
			sess.Log = append(sess.Log, "session is "+sess.State)
		}
	}
	return c.JSON(http.StatusOK, sessionBody(sess))
}

func (s *Server) deleteSession(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(c)
	if !ok {
		return notFound(c, "Session")
	}
	delete(s.sessions, sess.ID)
	return c.JSON(http.StatusOK, map[string]string{"msg": "deleted"})
}

func (s *Server) createStatement(c echo.Context) error {
	var body struct {
		Code string `json:"code"`
		Kind string `json:"kind"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"msg": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(c)
	if !ok {
		return notFound(c, "Session")
	}
	if sess.State != "idle" && sess.State != "busy" {
		return c.JSON(http.StatusBadRequest, map[string]string{"msg": fmt.Sprintf("Session is in state %s", sess.State)})
	}

	kind := body.Kind
	if kind == "" {
		kind = sess.Kind
	}
	stmt := &fakeStatement{
		ID:    len(sess.Statements),
		Code:  body.Code,
		State: "waiting",
		Out:   s.evaluator(kind, body.Code),
	}
	sess.Statements = append(sess.Statements, stmt)
	return c.JSON(http.StatusCreated, statementBody(stmt))
}

func (s *Server) getStatement(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(c)
	if !ok {
		return notFound(c, "Session")
	}
	idx, err := strconv.Atoi(c.Param("stmt"))
	if err != nil || idx < 0 || idx >= len(sess.Statements) {
		return notFound(c, "Statement")
	}

	stmt := sess.Statements[idx]
	if stmt.State != "available" {
		stmt.Polls++
		stmt.State = "running"
		if stmt.Polls >= s.statementPolls {
			stmt.State = "available"
		}
	}
	return c.JSON(http.StatusOK, statementBody(stmt))
}

func (s *Server) getLog(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(c)
	if !ok {
		return notFound(c, "Session")
	}
	from, _ := strconv.Atoi(c.QueryParam("from"))
	from = min(max(from, 0), len(sess.Log))
	return c.JSON(http.StatusOK, map[string]any{
		"id":    sess.ID,
		"from":  from,
		"total": len(sess.Log),
		"log":   sess.Log[from:],
	})
}

func sessionBody(sess *fakeSession) map[string]any {
	return map[string]any{
		"id":      sess.ID,
		"appId":   nil,
		"owner":   nil,
		"kind":    sess.Kind,
		"state":   sess.State,
		"log":     sess.Log,
		"appInfo": map[string]any{"driverLogUrl": nil, "sparkUiUrl": nil},
	}
}

func statementBody(stmt *fakeStatement) map[string]any {
	body := map[string]any{
		"id":    stmt.ID,
		"code":  stmt.Code,
		"state": stmt.State,
	}
	if stmt.State != "available" {
		body["output"] = nil
		return body
	}

	out := map[string]any{
		"status":          stmt.Out.Status,
		"execution_count": stmt.ID,
	}
	if stmt.Out.Status == "error" {
		out["ename"] = stmt.Out.EName
		out["evalue"] = stmt.Out.EValue
		out["traceback"] = stmt.Out.Traceback
	} else {
		out["data"] = map[string]any{"text/plain": stmt.Out.Text}
	}
	body["output"] = out
	body["progress"] = 1.0
	return body
}
