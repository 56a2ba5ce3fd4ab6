package config

import (
	"encoding/base64"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Provider exposes one typed accessor per setting consumed by the client packages.
// Implementations must be safe for concurrent use.
type Provider interface {
	RetryPolicy() string
	RetrySecondsToSleepList() []time.Duration
	ConfigurableRetryPolicyMaxRetries() int
	LinearRetrySecondsToSleep() time.Duration
	LinearRetryMaxRetries() int
	CustomHeaders() map[string]string
	IgnoreSSLErrors() bool
	HTTPTimeout() time.Duration
}

// RetryPolicy returns the retry policy name ("linear" or "configurable").
func (c *Config) RetryPolicy() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.RetryPolicy
}

// RetrySecondsToSleepList returns the per-attempt waits of the configurable policy.
func (c *Config) RetrySecondsToSleepList() []time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.settings.RetrySecondsToSleepList)
}

// ConfigurableRetryPolicyMaxRetries returns the attempt cap of the configurable policy.
func (c *Config) ConfigurableRetryPolicyMaxRetries() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.ConfigurableRetryPolicyMaxRetries
}

// LinearRetrySecondsToSleep returns the fixed wait of the linear policy.
func (c *Config) LinearRetrySecondsToSleep() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.LinearRetrySecondsToSleep
}

// LinearRetryMaxRetries returns the attempt cap of the linear policy.
func (c *Config) LinearRetryMaxRetries() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.LinearRetryMaxRetries
}

// CustomHeaders returns the headers merged into every outgoing request.
func (c *Config) CustomHeaders() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.settings.CustomHeaders == nil {
		return map[string]string{}
	}
	return maps.Clone(c.settings.CustomHeaders)
}

// IgnoreSSLErrors reports whether TLS verification is disabled.
func (c *Config) IgnoreSSLErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.IgnoreSSLErrors
}

// HTTPTimeout returns the per-attempt transport timeout.
func (c *Config) HTTPTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.HTTPTimeout
}

// SessionConfigs returns the extra properties sent when creating a session.
func (c *Config) SessionConfigs() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.settings.SessionConfigs)
}

// LivySessionStartupTimeout bounds how long a new session may take to become idle.
func (c *Config) LivySessionStartupTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.LivySessionStartupTimeout
}

// StatementPollInterval is the delay between session/statement state polls.
func (c *Config) StatementPollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.StatementPollInterval
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.LogLevel
}

// LogPretty reports whether console-formatted logs are requested.
func (c *Config) LogPretty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.LogPretty
}

// Observability returns the telemetry export settings.
func (c *Config) Observability() ObservabilitySettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o := c.settings.Observability
	o.Headers = maps.Clone(o.Headers)
	return o
}

// SessionProperties returns session_configs plus the Livy kind for language.
func (c *Config) SessionProperties(language string) (map[string]any, error) {
	kind, err := LivyKind(language)
	if err != nil {
		return nil, err
	}
	properties := c.SessionConfigs()
	if properties == nil {
		properties = map[string]any{}
	}
	properties[LivyKindParam] = kind
	return properties, nil
}

// Credentials returns the decoded credentials for a kernel language.
// python3 shares the python block.
func (c *Config) Credentials(language string) (Credentials, error) {
	c.mu.RLock()
	var (
		raw   RawCredentials
		field string
	)
	switch language {
	case LangPython, LangPython3:
		raw, field = c.settings.KernelPythonCredentials, "kernel_python_credentials"
	case LangScala:
		raw, field = c.settings.KernelScalaCredentials, "kernel_scala_credentials"
	case LangR:
		raw, field = c.settings.KernelRCredentials, "kernel_r_credentials"
	default:
		c.mu.RUnlock()
		return Credentials{}, NewInvalidFieldError("language", fmt.Sprintf("cannot get credentials for %q", language),
			[]string{LangScala, LangPython, LangPython3, LangR})
	}
	c.mu.RUnlock()

	return DecodeCredentials(field, raw)
}

// DecodeCredentials resolves base64_password and derives auth when it is unset.
// An undecodable base64_password is a fatal *ConfigError.
func DecodeCredentials(field string, raw RawCredentials) (Credentials, error) {
	creds := Credentials{
		Username: raw.Username,
		Password: raw.Password,
		URL:      raw.URL,
		Auth:     raw.Auth,
	}

	if raw.Base64Password != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw.Base64Password)
		if err != nil {
			return Credentials{}, &ConfigError{
				Category: "invalid",
				Field:    field + ".base64_password",
				Message:  "contains an invalid base64 string",
				Err:      err,
			}
		}
		creds.Password = string(decoded)
	}

	if creds.Auth == "" {
		creds.Auth = AuthValue(creds.Username, creds.Password)
	}
	return creds, nil
}

// AuthValue derives the auth mode from the presence of a username or password.
func AuthValue(username, password string) string {
	if username == "" && password == "" {
		return NoAuth
	}
	return AuthBasic
}

// LivyKind maps a kernel language to its Livy session kind.
func LivyKind(language string) (string, error) {
	switch language {
	case LangScala:
		return SessionKindSpark, nil
	case LangPython:
		return SessionKindPySpark, nil
	case LangPython3:
		return SessionKindPySpark3, nil
	case LangR:
		return SessionKindSparkR, nil
	default:
		return "", NewInvalidFieldError("language", fmt.Sprintf("cannot get session kind for %q", language),
			[]string{LangScala, LangPython, LangPython3, LangR})
	}
}
