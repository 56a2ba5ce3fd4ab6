package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials(t *testing.T) {
	cfg := loadIsolated(t, WithOverrides(map[string]any{
		"kernel_python_credentials": map[string]any{
			"username":        "admin",
			"base64_password": "c2VjcmV0", // "secret"
			"url":             "https://livy.example.com",
		},
		"kernel_scala_credentials": map[string]any{
			"password": "plain",
			"auth":     NoAuth,
		},
	}))

	tests := []struct {
		language string
		expected Credentials
	}{
		{
			language: LangPython,
			expected: Credentials{Username: "admin", Password: "secret", URL: "https://livy.example.com", Auth: AuthBasic},
		},
		{
			language: LangPython3,
			expected: Credentials{Username: "admin", Password: "secret", URL: "https://livy.example.com", Auth: AuthBasic},
		},
		{
			language: LangScala,
			expected: Credentials{Password: "plain", URL: "http://localhost:8998", Auth: NoAuth},
		},
		{
			language: LangR,
			expected: Credentials{URL: "http://localhost:8998", Auth: NoAuth},
		},
	}

	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			creds, err := cfg.Credentials(tt.language)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, creds)
		})
	}
}

func TestCredentialsInvalidBase64(t *testing.T) {
	cfg := loadIsolated(t, WithOverrides(map[string]any{
		"kernel_r_credentials": map[string]any{"base64_password": "%%%not-base64"},
	}))

	_, err := cfg.Credentials(LangR)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "kernel_r_credentials.base64_password", cfgErr.Field)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestCredentialsUnknownLanguage(t *testing.T) {
	cfg := loadIsolated(t)
	_, err := cfg.Credentials("cobol")
	assert.True(t, IsConfigError(err))
}

func TestLivyKind(t *testing.T) {
	tests := map[string]string{
		LangScala:   SessionKindSpark,
		LangPython:  SessionKindPySpark,
		LangPython3: SessionKindPySpark3,
		LangR:       SessionKindSparkR,
	}
	for language, kind := range tests {
		got, err := LivyKind(language)
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}

	_, err := LivyKind("sql")
	assert.True(t, IsConfigError(err))
}

func TestSessionProperties(t *testing.T) {
	cfg := loadIsolated(t, WithOverrides(map[string]any{
		"session_configs": map[string]any{"driverMemory": "2g"},
	}))

	props, err := cfg.SessionProperties(LangPython)
	require.NoError(t, err)
	assert.Equal(t, "2g", props["driverMemory"])
	assert.Equal(t, SessionKindPySpark, props[LivyKindParam])

	// the cached settings are not mutated by callers
	assert.NotContains(t, cfg.SessionConfigs(), LivyKindParam)
}

func TestSessionConfigsKeepDottedKeys(t *testing.T) {
	path := writeFile(t, "config.json", `{"session_configs": {"conf": {"spark.executor.memory": "4g"}}}`)
	cfg := loadIsolated(t, WithFile(path))

	conf, ok := cfg.SessionConfigs()["conf"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "4g", conf["spark.executor.memory"])
}

func TestAuthValue(t *testing.T) {
	assert.Equal(t, NoAuth, AuthValue("", ""))
	assert.Equal(t, AuthBasic, AuthValue("u", ""))
	assert.Equal(t, AuthBasic, AuthValue("", "p"))
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewInvalidFieldError("retry_policy", "retry policy 'x' not supported", []string{LinearRetry, ConfigurableRetry})
	assert.Equal(t, "config_invalid: retry_policy retry policy 'x' not supported must be one of: linear, configurable", err.Error())

	missing := NewMissingFieldError("kernel_python_credentials.url", "LIVY_URL")
	assert.Contains(t, missing.Error(), "config_missing:")
	assert.Contains(t, missing.Error(), "LIVY_URL")
}
