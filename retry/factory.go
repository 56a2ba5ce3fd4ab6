package retry

import (
	"fmt"
	"time"

	"github.com/gaborage/go-livy/config"
)

// Settings carries the parameters of every policy kind; New reads the ones its kind needs.
type Settings struct {
	LinearWait             time.Duration
	LinearMaxRetries       int
	ConfigurableSleeps     []time.Duration
	ConfigurableMaxRetries int
}

// New builds the policy for kind. Unknown kinds fail fast with a *config.ConfigError.
func New(kind Kind, s Settings) (Policy, error) {
	switch kind {
	case KindLinear:
		return NewLinear(s.LinearWait, s.LinearMaxRetries), nil
	case KindConfigurable:
		policy, err := NewConfigurable(s.ConfigurableSleeps, s.ConfigurableMaxRetries)
		if err != nil {
			return nil, err
		}
		return policy, nil
	default:
		return nil, config.NewInvalidFieldError("retry_policy",
			fmt.Sprintf("retry policy '%s' not supported", kind),
			[]string{string(KindLinear), string(KindConfigurable)})
	}
}

// FromProvider selects and builds the policy named by the retry_policy setting.
func FromProvider(p config.Provider) (Policy, error) {
	return New(Kind(p.RetryPolicy()), Settings{
		LinearWait:             p.LinearRetrySecondsToSleep(),
		LinearMaxRetries:       p.LinearRetryMaxRetries(),
		ConfigurableSleeps:     p.RetrySecondsToSleepList(),
		ConfigurableMaxRetries: p.ConfigurableRetryPolicyMaxRetries(),
	})
}
