package retry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-livy/config"
)

func TestLinearShouldRetry(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 5, 8} {
		t.Run(fmt.Sprintf("max_%d", maxRetries), func(t *testing.T) {
			p := NewLinear(time.Second, maxRetries)
			for attempt := 0; attempt < maxRetries; attempt++ {
				assert.True(t, p.ShouldRetry(attempt), "attempt %d", attempt)
			}
			assert.False(t, p.ShouldRetry(maxRetries))
			assert.False(t, p.ShouldRetry(maxRetries+1))
		})
	}
}

func TestLinearWaitTime(t *testing.T) {
	p := NewLinear(5*time.Second, 5)
	for attempt := 0; attempt < 10; attempt++ {
		assert.Equal(t, 5*time.Second, p.WaitTime(attempt))
	}
	assert.Equal(t, 5, p.MaxRetries())
}

func TestConfigurableWaitTime(t *testing.T) {
	sleeps := []time.Duration{
		200 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		3 * time.Second,
		5 * time.Second,
	}
	p, err := NewConfigurable(sleeps, 8)
	require.NoError(t, err)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 200 * time.Millisecond},
		{0, 200 * time.Millisecond},
		{2, time.Second},
		{4, 5 * time.Second},
		{5, 5 * time.Second},
		{7, 5 * time.Second},
		{100, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, p.WaitTime(tt.attempt))
		})
	}
}

func TestConfigurableShouldRetryBeyondList(t *testing.T) {
	p, err := NewConfigurable([]time.Duration{time.Millisecond}, 3)
	require.NoError(t, err)

	assert.True(t, p.ShouldRetry(0))
	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
}

func TestConfigurableEmptyListFallsBack(t *testing.T) {
	p, err := NewConfigurable(nil, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigurableWait, p.WaitTime(0))
	assert.Equal(t, DefaultConfigurableWait, p.WaitTime(9))
}

func TestConfigurableZeroWaitsAllowed(t *testing.T) {
	p, err := NewConfigurable([]time.Duration{0, 0}, 2)
	require.NoError(t, err)
	assert.Zero(t, p.WaitTime(1))
}

func TestConfigurableRejectsNegativeWaits(t *testing.T) {
	_, err := NewConfigurable([]time.Duration{time.Second, -time.Second}, 2)
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
}

func TestConfigurableCopiesList(t *testing.T) {
	sleeps := []time.Duration{time.Second}
	p, err := NewConfigurable(sleeps, 1)
	require.NoError(t, err)

	sleeps[0] = time.Hour
	assert.Equal(t, time.Second, p.WaitTime(0))
}
