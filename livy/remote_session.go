package livy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/gaborage/go-livy/config"
	"github.com/gaborage/go-livy/logger"
)

const (
	// DefaultStartupTimeout bounds Start when SessionOptions leaves it unset.
	DefaultStartupTimeout = 60 * time.Second
	// DefaultPollInterval is the delay between state polls.
	DefaultPollInterval = time.Second

	notStartedID = -1
)

var (
	// ErrSessionNotStarted is returned by operations that need a live session.
	ErrSessionNotStarted = errors.New("session has not been started")
	// ErrSessionAlreadyStarted is returned when Start is called twice.
	ErrSessionAlreadyStarted = errors.New("session has already been started")
	// ErrSessionFailed is returned when a session ends in a final state while starting.
	ErrSessionFailed = errors.New("session failed to start")
	// ErrStartupTimeout is returned when a session does not become idle in time.
	ErrStartupTimeout = errors.New("session did not become idle in time")
	// ErrStatementFailed is returned when a statement ends in error or cancelled state.
	ErrStatementFailed = errors.New("statement did not complete")
)

// StatementError describes a statement whose output status is "error".
type StatementError struct {
	Name      string
	Value     string
	Traceback []string
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Value)
}

// SessionOptions tune the polling behaviour of a RemoteSession.
type SessionOptions struct {
	StartupTimeout time.Duration
	PollInterval   time.Duration
}

// SessionOptionsFromConfig reads the startup timeout and poll interval from cfg.
func SessionOptionsFromConfig(cfg *config.Config) SessionOptions {
	return SessionOptions{
		StartupTimeout: cfg.LivySessionStartupTimeout(),
		PollInterval:   cfg.StatementPollInterval(),
	}
}

// RemoteSession is a Livy session created (or attached to) through a Client.
// It is safe for concurrent use; statements are serialized by the server.
type RemoteSession struct {
	client     *Client
	properties map[string]any
	opts       SessionOptions
	logger     logger.Logger

	mu    sync.RWMutex
	id    int
	kind  string
	state string
}

// NewRemoteSession prepares a session that Start will create with properties.
func NewRemoteSession(client *Client, properties map[string]any, opts SessionOptions) *RemoteSession {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = DefaultStartupTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	kind, _ := properties[config.LivyKindParam].(string)
	return &RemoteSession{
		client:     client,
		properties: maps.Clone(properties),
		opts:       opts,
		logger:     client.logger,
		id:         notStartedID,
		kind:       kind,
		state:      StateNotStarted,
	}
}

// AttachSession wraps a session that already exists on the server.
func AttachSession(client *Client, info SessionInfo, opts SessionOptions) *RemoteSession {
	s := NewRemoteSession(client, nil, opts)
	s.id = info.ID
	s.kind = info.Kind
	s.state = info.State
	return s
}

// ID returns the server-assigned id, or -1 before Start.
func (s *RemoteSession) ID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Endpoint returns the endpoint the session lives on.
func (s *RemoteSession) Endpoint() Endpoint { return s.client.Endpoint() }

// State returns the last state observed.
func (s *RemoteSession) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Kind returns the session kind.
func (s *RemoteSession) Kind() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind
}

func (s *RemoteSession) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("Session id: %d\tKind: %s\tState: %s\tEndpoint: %s", s.id, s.kind, s.state, s.client.Endpoint())
}

func (s *RemoteSession) update(info *SessionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = info.ID
	if info.Kind != "" {
		s.kind = info.Kind
	}
	s.state = info.State
}

// Start creates the session and waits until it is idle.
func (s *RemoteSession) Start(ctx context.Context) error {
	if s.ID() != notStartedID {
		return ErrSessionAlreadyStarted
	}

	info, err := s.client.PostSession(ctx, s.properties)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	s.update(info)
	s.logger.Info().Int("session_id", info.ID).Str("kind", info.Kind).Str("state", info.State).Msg("Session created")

	return s.waitForIdle(ctx)
}

func (s *RemoteSession) waitForIdle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StartupTimeout)
	defer cancel()

	for {
		state := s.State()
		if state == StateIdle {
			return nil
		}
		if IsFinalSessionState(state) {
			return s.startFailure(state)
		}

		if err := wait(ctx, s.opts.PollInterval); err != nil {
			return s.startWaitError(err)
		}

		info, err := s.client.GetSession(ctx, s.ID())
		if err != nil {
			if ctx.Err() != nil {
				return s.startWaitError(ctx.Err())
			}
			return fmt.Errorf("poll session %d: %w", s.ID(), err)
		}
		if info.State != state {
			s.logger.Debug().Int("session_id", info.ID).Str("from", state).Str("to", info.State).Msg("Session state changed")
		}
		s.update(info)
	}
}

func (s *RemoteSession) startWaitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: session %d still %s after %s", ErrStartupTimeout, s.ID(), s.State(), s.opts.StartupTimeout)
	}
	return err
}

// startFailure reports a session that died while starting, with its log tail when available.
func (s *RemoteSession) startFailure(state string) error {
	err := fmt.Errorf("%w: session %d is %s", ErrSessionFailed, s.ID(), state)

	logCtx, cancel := context.WithTimeout(context.Background(), s.opts.PollInterval+5*time.Second)
	defer cancel()
	if logs, lerr := s.client.GetAllSessionLogs(logCtx, s.ID()); lerr == nil && len(logs.Log) > 0 {
		err = fmt.Errorf("%w\n%s", err, strings.Join(logs.Log, "\n"))
	}
	return err
}

// Execute runs code in the session and waits for the statement to finish.
// A statement whose output status is "error" returns both the output and a *StatementError.
func (s *RemoteSession) Execute(ctx context.Context, code string) (*StatementOutput, error) {
	id := s.ID()
	if id == notStartedID {
		return nil, ErrSessionNotStarted
	}

	stmt, err := s.client.PostStatement(ctx, id, StatementRequest{Code: code})
	if err != nil {
		return nil, fmt.Errorf("submit statement to session %d: %w", id, err)
	}
	s.logger.Debug().Int("session_id", id).Int("statement_id", stmt.ID).Msg("Statement submitted")

	for {
		switch stmt.State {
		case StatementAvailable:
			return statementResult(stmt)
		case StatementStateError, StatementCancelled:
			return nil, fmt.Errorf("%w: statement %d in session %d is %s", ErrStatementFailed, stmt.ID, id, stmt.State)
		}

		if err := wait(ctx, s.opts.PollInterval); err != nil {
			return nil, err
		}
		stmt, err = s.client.GetStatement(ctx, id, stmt.ID)
		if err != nil {
			return nil, fmt.Errorf("poll statement in session %d: %w", id, err)
		}
	}
}

func statementResult(stmt *Statement) (*StatementOutput, error) {
	out := stmt.Output
	if out == nil {
		return &StatementOutput{Status: OutputOK}, nil
	}
	if out.Status == OutputError {
		return out, &StatementError{Name: out.EName, Value: out.EValue, Traceback: out.Traceback}
	}
	return out, nil
}

// Logs returns the full session log.
func (s *RemoteSession) Logs(ctx context.Context) (*SessionLog, error) {
	id := s.ID()
	if id == notStartedID {
		return nil, ErrSessionNotStarted
	}
	return s.client.GetAllSessionLogs(ctx, id)
}

// Refresh re-reads the session state from the server.
func (s *RemoteSession) Refresh(ctx context.Context) error {
	id := s.ID()
	if id == notStartedID {
		return ErrSessionNotStarted
	}
	info, err := s.client.GetSession(ctx, id)
	if err != nil {
		return err
	}
	s.update(info)
	return nil
}

// Delete removes the session from the server. Sessions that never started or
// are already dead are left alone.
func (s *RemoteSession) Delete(ctx context.Context) error {
	id, state := s.ID(), s.State()
	if id == notStartedID || state == StateDead {
		return nil
	}
	if err := s.client.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}

	s.mu.Lock()
	s.state = StateDead
	s.mu.Unlock()
	s.logger.Info().Int("session_id", id).Msg("Session deleted")
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
