package fixtures

import (
	"errors"

	"github.com/gaborage/go-livy/config"
	"github.com/gaborage/go-livy/livy"
	"github.com/gaborage/go-livy/testing/mocks"
)

// Endpoint constants
const (
	LocalLivyURL  = "http://localhost:8998"
	RemoteLivyURL = "https://livy.example.com:8998"
)

// ErrLivyUnavailable is returned by failing session fixtures.
var ErrLivyUnavailable = errors.New("livy unavailable")

// LocalEndpoint is an unauthenticated endpoint on localhost.
func LocalEndpoint() livy.Endpoint {
	return livy.Endpoint{URL: LocalLivyURL, Auth: config.NoAuth}
}

// RemoteEndpoint is a basic-auth endpoint.
func RemoteEndpoint() livy.Endpoint {
	return livy.Endpoint{URL: RemoteLivyURL, Auth: config.AuthBasic, Username: "analyst", Password: "secret"}
}

// NewWorkingSession returns a mock session whose Delete succeeds.
func NewWorkingSession(id int, ep livy.Endpoint) *mocks.MockSession {
	s := mocks.NewMockSession(id, ep)
	s.ExpectDelete(nil)
	return s
}

// NewFailingSession returns a mock session whose Delete always fails with ErrLivyUnavailable.
func NewFailingSession(id int, ep livy.Endpoint) *mocks.MockSession {
	s := mocks.NewMockSession(id, ep)
	s.ExpectDelete(ErrLivyUnavailable)
	return s
}
