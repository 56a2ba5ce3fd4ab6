// Package testing groups the test helpers shipped with go-livy.
//
// # Fake server
//
// The livytest subpackage runs an in-process Livy server with scripted
// session startup, statement progress and per-route failure injection, so
// the HTTP client, retry policies and RemoteSession can be exercised end to end.
//
// # Mocks
//
// The mocks subpackage provides testify-based mocks of the session.Session
// interface consumed by session.Manager.
//
// # Fixtures
//
// The fixtures subpackage provides ready-made endpoints and mock sessions that
// delete cleanly or fail with ErrLivyUnavailable.
//
// Import the specific subpackages you need:
//
//	import (
//		"github.com/gaborage/go-livy/testing/livytest"
//		"github.com/gaborage/go-livy/testing/mocks"
//		"github.com/gaborage/go-livy/testing/fixtures"
//	)
package testing
