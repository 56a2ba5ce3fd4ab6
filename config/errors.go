package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured indicates a setting is intentionally absent (not an error state)
var ErrNotConfigured = errors.New("not configured")

// ConfigError represents a user configuration error with actionable guidance.
// Configuration errors are fatal: callers surface them immediately and never retry.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string // error category: "missing", "invalid"
	Field    string // config key (e.g., "retry_policy", "kernel_python_credentials.base64_password")
	Message  string // user-friendly error message (lowercase)
	Action   string // actionable instruction (lowercase)
	Err      error  // underlying cause, if any
}

// Error implements the error interface with lowercase formatting.
func (e *ConfigError) Error() string {
	var parts []string

	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if e.Err != nil {
		parts = append(parts, "("+e.Err.Error()+")")
	}

	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewInvalidFieldError creates an error for an invalid configuration value.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
	}

	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}

	return err
}

// NewMissingFieldError creates an error for a required configuration key.
func NewMissingFieldError(field, envVar string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to the config file", envVar, field),
	}
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
