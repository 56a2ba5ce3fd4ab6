// Package session keeps the named sessions of one client process.
//
// The registry preserves insertion order, which is the order used for
// listings and for CleanUpAll.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gaborage/go-livy/livy"
	"github.com/gaborage/go-livy/logger"
)

// Session is what the registry needs from a remote session.
type Session interface {
	ID() int
	Endpoint() livy.Endpoint
	Delete(ctx context.Context) error
}

// Manager is a registry of sessions keyed by a user-chosen name.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions *orderedmap.OrderedMap[string, Session]
	logger   logger.Logger
}

// NewManager returns an empty registry.
func NewManager(log logger.Logger) *Manager {
	return &Manager{
		sessions: orderedmap.New[string, Session](),
		logger:   logger.Component(log, "session_manager"),
	}
}

// Add registers s under name. Names are unique.
func (m *Manager) Add(name string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions.Get(name); exists {
		return newDuplicateError(name)
	}
	m.sessions.Set(name, s)
	m.logger.Debug().Str("name", name).Int("session_id", s.ID()).Msg("Session registered")
	return nil
}

// Get returns the session registered under name.
func (m *Manager) Get(name string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions.Get(name)
	if !ok {
		return nil, newNotFoundError("get", name, m.namesLocked())
	}
	return s, nil
}

// GetAny returns the only registered session. It fails when there are none
// or more than one.
func (m *Manager) GetAny() (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch m.sessions.Len() {
	case 0:
		return nil, newNoSessionsError()
	case 1:
		return m.sessions.Oldest().Value, nil
	default:
		return nil, newAmbiguousError(m.namesLocked())
	}
}

// IDForClient returns the session id registered under name.
func (m *Manager) IDForClient(name string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions.Get(name)
	if !ok {
		return 0, false
	}
	return s.ID(), true
}

// NameByIDEndpoint returns the first name, in registry order, whose session
// has the given id on the given endpoint.
func (m *Manager) NameByIDEndpoint(id int, ep livy.Endpoint) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for pair := m.sessions.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.ID() == id && pair.Value.Endpoint() == ep {
			return pair.Key, true
		}
	}
	return "", false
}

// Delete deletes the remote session and then unregisters it. When the remote
// delete fails the entry stays registered and the error is returned.
func (m *Manager) Delete(ctx context.Context, name string) error {
	m.mu.RLock()
	s, ok := m.sessions.Get(name)
	var names []string
	if !ok {
		names = m.namesLocked()
	}
	m.mu.RUnlock()

	if !ok {
		return newNotFoundError("delete", name, names)
	}

	if err := s.Delete(ctx); err != nil {
		m.logger.Warn().Str("name", name).Int("session_id", s.ID()).Err(err).Msg("Remote session delete failed, keeping registration")
		return newDeleteError(name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// the name may have been re-registered while the remote call ran
	if current, ok := m.sessions.Get(name); ok && current == s {
		m.sessions.Delete(name)
	}
	m.logger.Info().Str("name", name).Int("session_id", s.ID()).Msg("Session deleted")
	return nil
}

// CleanUpAll deletes every session in registry order. Failures do not stop
// the sweep; they are joined into the returned error and their entries stay.
func (m *Manager) CleanUpAll(ctx context.Context) error {
	var errs []error
	for _, name := range m.Names() {
		if err := m.Delete(ctx, name); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Names returns the registered names in registry order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namesLocked()
}

func (m *Manager) namesLocked() []string {
	names := make([]string, 0, m.sessions.Len())
	for pair := m.sessions.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Info returns one "Name: <name>\t<session>" line per session.
func (m *Manager) Info() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := make([]string, 0, m.sessions.Len())
	for pair := m.sessions.Oldest(); pair != nil; pair = pair.Next() {
		lines = append(lines, fmt.Sprintf("Name: %s\t%v", pair.Key, describe(pair.Value)))
	}
	return lines
}

func describe(s Session) string {
	if str, ok := s.(fmt.Stringer); ok {
		return str.String()
	}
	return fmt.Sprintf("Session id: %d\tEndpoint: %s", s.ID(), s.Endpoint())
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions.Len()
}

// String renders Info as a block.
func (m *Manager) String() string {
	return strings.Join(m.Info(), "\n")
}
