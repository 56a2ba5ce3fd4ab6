package mocks

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-livy/livy"
)

// MockSession provides a testify-based mock of session.Session.
//
// Example usage:
//
//	s := mocks.NewMockSession(3, endpoint)
//	s.On("Delete", mock.Anything).Return(errors.New("livy unavailable")).Once()
//	s.On("Delete", mock.Anything).Return(nil)
type MockSession struct {
	mock.Mock

	id       int
	endpoint livy.Endpoint
}

// NewMockSession creates a mock whose ID and Endpoint are fixed.
func NewMockSession(id int, endpoint livy.Endpoint) *MockSession {
	return &MockSession{id: id, endpoint: endpoint}
}

// ID implements session.Session
func (m *MockSession) ID() int { return m.id }

// String matches the registry's description of sessions without a String method.
// It also hides the String promoted from mock.Mock.
func (m *MockSession) String() string {
	return fmt.Sprintf("Session id: %d\tEndpoint: %s", m.id, m.endpoint)
}

// Endpoint implements session.Session
func (m *MockSession) Endpoint() livy.Endpoint { return m.endpoint }

// Delete implements session.Session
func (m *MockSession) Delete(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ExpectDelete sets up a Delete expectation returning err.
func (m *MockSession) ExpectDelete(err error) *mock.Call {
	return m.On("Delete", mock.Anything).Return(err)
}
