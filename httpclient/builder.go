package httpclient

import (
	"time"

	"github.com/gaborage/go-livy/logger"
	"github.com/gaborage/go-livy/retry"
)

// Builder assembles a Config fluently.
type Builder struct {
	config Config
	logger logger.Logger
}

// NewBuilder starts a builder that logs through log.
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		logger: log,
		config: Config{
			Timeout:            DefaultTimeout,
			MaxPayloadLogBytes: defaultMaxPayloadLogBytes,
			DefaultHeaders:     map[string]string{},
		},
	}
}

// WithBaseURL sets the Livy endpoint every request path is resolved against.
func (b *Builder) WithBaseURL(u string) *Builder {
	b.config.BaseURL = u
	return b
}

// WithTimeout bounds each attempt, not the whole retry sequence.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetryPolicy sets the policy consulted after each failed attempt.
func (b *Builder) WithRetryPolicy(p retry.Policy) *Builder {
	b.config.RetryPolicy = p
	return b
}

// WithBasicAuth sends HTTP basic credentials on every attempt.
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{Username: username, Password: password}
	return b
}

// WithDefaultHeader adds a header sent with every request.
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithDefaultHeaders merges headers into the defaults.
func (b *Builder) WithDefaultHeaders(headers map[string]string) *Builder {
	for k, v := range headers {
		b.config.DefaultHeaders[k] = v
	}
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification.
func (b *Builder) WithInsecureSkipVerify(skip bool) *Builder {
	b.config.InsecureSkipVerify = skip
	return b
}

// WithRateLimit paces attempts to rps per second.
func (b *Builder) WithRateLimit(rps float64) *Builder {
	b.config.RequestsPerSecond = rps
	return b
}

// WithRequestInterceptor runs i on every attempt before it is sent.
func (b *Builder) WithRequestInterceptor(i RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, i)
	return b
}

// WithResponseInterceptor runs i on every response before the status check.
func (b *Builder) WithResponseInterceptor(i ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, i)
	return b
}

// WithLogPayloads logs headers and body previews of up to maxBytes at debug level.
func (b *Builder) WithLogPayloads(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

// Build validates the configuration and returns the client.
func (b *Builder) Build() (Client, error) {
	return New(b.config, b.logger)
}
