package livy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gaborage/go-livy/config"
)

// ErrInvalidEndpoint is returned for endpoints that cannot be dialled.
var ErrInvalidEndpoint = errors.New("invalid livy endpoint")

// Endpoint identifies a Livy server and the credentials used against it.
// Two endpoints are equal when all four fields match, so Endpoint can be
// compared with == and used as a map key.
type Endpoint struct {
	URL      string
	Auth     string
	Username string
	Password string
}

// NewEndpoint validates and builds an endpoint. An empty auth is derived from
// the presence of a username or password.
func NewEndpoint(rawURL, auth, username, password string) (Endpoint, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Endpoint{}, fmt.Errorf("%w: URL must not be empty", ErrInvalidEndpoint)
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Endpoint{}, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidEndpoint, rawURL)
	}

	if auth == "" {
		auth = config.AuthValue(username, password)
	}
	switch auth {
	case config.NoAuth, config.AuthBasic:
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported auth %q (must be %s or %s)", ErrInvalidEndpoint, auth, config.NoAuth, config.AuthBasic)
	}

	return Endpoint{
		URL:      strings.TrimRight(rawURL, "/"),
		Auth:     auth,
		Username: username,
		Password: password,
	}, nil
}

// EndpointFromCredentials builds an endpoint from a decoded credential block.
func EndpointFromCredentials(c config.Credentials) (Endpoint, error) {
	return NewEndpoint(c.URL, c.Auth, c.Username, c.Password)
}

// UsesBasicAuth reports whether requests carry basic authentication.
func (e Endpoint) UsesBasicAuth() bool {
	return e.Auth == config.AuthBasic
}

// String never includes the password.
func (e Endpoint) String() string {
	if e.Username == "" {
		return fmt.Sprintf("%s (auth=%s)", e.URL, e.Auth)
	}
	return fmt.Sprintf("%s (auth=%s, user=%s)", e.URL, e.Auth, e.Username)
}
