// Package retry provides the policies that decide whether and how long the
// HTTP client waits before re-attempting a failed request.
package retry

import (
	"fmt"
	"slices"
	"time"

	"github.com/gaborage/go-livy/config"
)

// DefaultConfigurableWait is used when a configurable policy is given an empty list.
const DefaultConfigurableWait = 5 * time.Second

// Policy decides whether a failed attempt is retried and how long to wait first.
// Attempts are zero-based: attempt 0 is the first request.
type Policy interface {
	ShouldRetry(attempt int) bool
	WaitTime(attempt int) time.Duration
}

// Kind tags the supported policy variants.
type Kind string

// Supported policy kinds
const (
	KindLinear       Kind = config.LinearRetry
	KindConfigurable Kind = config.ConfigurableRetry
)

// Linear waits a fixed duration between attempts.
type Linear struct {
	wait       time.Duration
	maxRetries int
}

// NewLinear creates a linear policy.
func NewLinear(wait time.Duration, maxRetries int) *Linear {
	return &Linear{wait: wait, maxRetries: maxRetries}
}

// ShouldRetry is true while attempt < max retries.
func (p *Linear) ShouldRetry(attempt int) bool {
	return attempt < p.maxRetries
}

// WaitTime always returns the configured wait.
func (p *Linear) WaitTime(int) time.Duration {
	return p.wait
}

// MaxRetries returns the attempt cap.
func (p *Linear) MaxRetries() int { return p.maxRetries }

func (p *Linear) String() string {
	return fmt.Sprintf("linear(wait=%s, max_retries=%d)", p.wait, p.maxRetries)
}

// Configurable waits sleeps[attempt], reusing the last entry once the list is exhausted.
type Configurable struct {
	sleeps     []time.Duration
	maxRetries int
}

// NewConfigurable creates a configurable policy. An empty list falls back to a single
// DefaultConfigurableWait entry; negative entries are a configuration error.
func NewConfigurable(sleeps []time.Duration, maxRetries int) (*Configurable, error) {
	if len(sleeps) == 0 {
		sleeps = []time.Duration{DefaultConfigurableWait}
	}
	for _, s := range sleeps {
		if s < 0 {
			return nil, config.NewInvalidFieldError("retry_seconds_to_sleep_list",
				fmt.Sprintf("contains negative wait %s", s), nil)
		}
	}
	return &Configurable{sleeps: slices.Clone(sleeps), maxRetries: maxRetries}, nil
}

// ShouldRetry is true while attempt < max retries; max retries may exceed the list length.
func (p *Configurable) ShouldRetry(attempt int) bool {
	return attempt < p.maxRetries
}

// WaitTime returns the wait for attempt, clamped to the bounds of the list.
func (p *Configurable) WaitTime(attempt int) time.Duration {
	switch {
	case attempt < 0:
		return p.sleeps[0]
	case attempt >= len(p.sleeps):
		return p.sleeps[len(p.sleeps)-1]
	default:
		return p.sleeps[attempt]
	}
}

// MaxRetries returns the attempt cap.
func (p *Configurable) MaxRetries() int { return p.maxRetries }

func (p *Configurable) String() string {
	return fmt.Sprintf("configurable(sleeps=%v, max_retries=%d)", p.sleeps, p.maxRetries)
}
