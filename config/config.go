// Package config provides the layered configuration used by the Livy client.
//
// Values are merged from, lowest priority first: built-in defaults, the config
// file, raw bytes supplied by the caller, LIVY_* environment variables and
// runtime overrides. The merged view is cached and re-evaluated on Override.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultEnvPrefix is the prefix of environment variables mapped onto config keys
	DefaultEnvPrefix = "LIVY_"
	// ConfigFileEnv names the variable that points at the config file
	ConfigFileEnv = "LIVY_CONFIG_FILE"

	defaultHomeDir    = ".sparkmagic"
	defaultConfigFile = "config.json"
	// Spark conf keys such as "spark.executor.memory" live inside session_configs,
	// so the key path delimiter must not be a dot.
	keyDelim = "::"
)

// Config is the layered configuration provider. It is safe for concurrent use.
type Config struct {
	mu       sync.RWMutex
	layers   []*koanf.Koanf
	runtime  map[string]any
	settings Settings
	k        *koanf.Koanf
}

// Ensure Config implements Provider
var _ Provider = (*Config)(nil)

type loadOptions struct {
	path        string
	usePath     bool
	raw         []byte
	rawFormat   string
	envPrefix   string
	useEnv      bool
	overrides   map[string]any
	environFunc func() []string
}

// Option customizes Load.
type Option func(*loadOptions)

// WithFile reads configuration from path. JSON is assumed unless the extension is .yaml or .yml.
// A missing file is not an error.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.path = path
		o.usePath = path != ""
	}
}

// WithoutFile skips the config file layer.
func WithoutFile() Option {
	return func(o *loadOptions) { o.usePath = false }
}

// WithBytes adds an in-memory layer above the file, parsed as "json" or "yaml".
func WithBytes(data []byte, format string) Option {
	return func(o *loadOptions) {
		o.raw = data
		o.rawFormat = format
	}
}

// WithEnvPrefix changes the environment variable prefix (default LIVY_).
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) { o.envPrefix = prefix }
}

// WithoutEnv skips the environment layer.
func WithoutEnv() Option {
	return func(o *loadOptions) { o.useEnv = false }
}

// WithEnviron replaces os.Environ as the source of the environment layer.
func WithEnviron(fn func() []string) Option {
	return func(o *loadOptions) { o.environFunc = fn }
}

// WithOverrides seeds the runtime layer, which takes precedence over everything else.
func WithOverrides(overrides map[string]any) Option {
	return func(o *loadOptions) { o.overrides = maps.Clone(overrides) }
}

// DefaultPath returns the config file location: $LIVY_CONFIG_FILE, else ~/.sparkmagic/config.json.
func DefaultPath() string {
	if p := os.Getenv(ConfigFileEnv); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(defaultHomeDir, defaultConfigFile)
	}
	return filepath.Join(home, defaultHomeDir, defaultConfigFile)
}

// Load builds the configuration from all layers, validates it and returns the provider.
func Load(opts ...Option) (*Config, error) {
	o := &loadOptions{
		path:      DefaultPath(),
		usePath:   true,
		envPrefix: DefaultEnvPrefix,
		useEnv:    true,
	}
	for _, opt := range opts {
		opt(o)
	}

	defaults := koanf.New(keyDelim)
	if err := loadDefaults(defaults); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	layers := []*koanf.Koanf{defaults}

	if o.usePath {
		fileLayer, err := loadFile(o.path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, fileLayer)
	}

	if len(o.raw) > 0 {
		rawLayer := koanf.New(keyDelim)
		if err := rawLayer.Load(rawbytes.Provider(o.raw), parserFor(o.rawFormat)); err != nil {
			return nil, &ConfigError{Category: "invalid", Field: "<bytes>", Message: "could not parse configuration", Err: err}
		}
		layers = append(layers, rawLayer)
	}

	if o.useEnv {
		envLayer := koanf.New(keyDelim)
		if err := envLayer.Load(envProvider(o.envPrefix, o.environFunc), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
		layers = append(layers, envLayer)
	}

	c := &Config{layers: layers, runtime: o.overrides}
	if c.runtime == nil {
		c.runtime = map[string]any{}
	}
	if err := c.rebuild(c.runtime); err != nil {
		return nil, err
	}
	return c, nil
}

// Override sets a runtime value for key. It has the highest precedence.
// The merged view is re-evaluated immediately; on error the previous view is kept.
func (c *Config) Override(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := maps.Clone(c.runtime)
	next[key] = value
	return c.rebuild(next)
}

// OverrideAll replaces the whole runtime layer.
func (c *Config) OverrideAll(overrides map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := maps.Clone(overrides)
	if next == nil {
		next = map[string]any{}
	}
	return c.rebuild(next)
}

// All returns the merged key/value view, mainly for diagnostics.
func (c *Config) All() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k.Raw()
}

// Settings returns a copy of the merged settings.
func (c *Config) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// rebuild merges every layer plus runtime into a fresh view. Callers hold mu, except Load.
func (c *Config) rebuild(runtime map[string]any) error {
	k := koanf.New(keyDelim)
	for _, layer := range c.layers {
		if err := k.Merge(layer); err != nil {
			return fmt.Errorf("failed to merge configuration: %w", err)
		}
	}
	if err := k.Load(confmap.Provider(runtime, keyDelim), nil); err != nil {
		return fmt.Errorf("failed to load overrides: %w", err)
	}

	var s Settings
	if err := unmarshal(k, &s); err != nil {
		return &ConfigError{Category: "invalid", Message: "could not decode configuration", Err: err}
	}
	if err := Validate(&s); err != nil {
		return err
	}

	c.k = k
	c.runtime = runtime
	c.settings = s
	return nil
}

func unmarshal(k *koanf.Koanf, s *Settings) error {
	return k.UnmarshalWithConf("", s, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				secondsToDurationHook(),
				stringToMapHook(),
			),
			Result:           s,
			WeaklyTypedInput: true,
		},
	})
}

func loadFile(path string) (*koanf.Koanf, error) {
	layer := koanf.New(keyDelim)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return layer, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}
	if info.Size() == 0 {
		return layer, nil
	}

	if err := layer.Load(file.Provider(path), parserFor(filepath.Ext(path))); err != nil {
		return nil, &ConfigError{Category: "invalid", Field: path, Message: "could not parse config file", Err: err}
	}
	return layer, nil
}

func parserFor(format string) koanf.Parser {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "yaml", "yml":
		return yaml.Parser()
	default:
		return json.Parser()
	}
}

func envProvider(prefix string, environ func() []string) *env.Env {
	return env.Provider(keyDelim, env.Opt{
		Prefix:      prefix,
		EnvironFunc: environ,
		TransformFunc: func(k, v string) (string, any) {
			// a double underscore separates nested keys: LIVY_KERNEL_PYTHON_CREDENTIALS__URL
			key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, prefix)), "__", keyDelim)
			switch key {
			case "config_file":
				return "", nil
			case "retry_seconds_to_sleep_list":
				return key, strings.Split(v, ",")
			}
			return key, v
		},
	})
}

func loadDefaults(k *koanf.Koanf) error {
	credentials := func() map[string]any {
		return map[string]any{
			"username":        "",
			"base64_password": "",
			"url":             "http://localhost:8998",
		}
	}

	defaults := map[string]any{
		"retry_policy":                          ConfigurableRetry,
		"retry_seconds_to_sleep_list":           []any{0.2, 0.5, 1, 3, 5},
		"configurable_retry_policy_max_retries": 8,
		"linear_retry_seconds_to_sleep":         5,
		"linear_retry_max_retries":              5,

		"custom_headers":       map[string]any{},
		"ignore_ssl_errors":    false,
		"http_timeout_seconds": 30,

		"session_configs":                      map[string]any{},
		"livy_session_startup_timeout_seconds": 60,
		"statement_poll_interval_seconds":      1,

		"kernel_python_credentials": credentials(),
		"kernel_scala_credentials":  credentials(),
		"kernel_r_credentials":      credentials(),

		"log_level":  "info",
		"log_pretty": false,

		"observability": map[string]any{
			"enabled":      false,
			"service_name": "go-livy",
			"exporter":     ExporterStdout,
			"endpoint":     "",
			"insecure":     false,
			"sample_rate":  1.0,
			"headers":      map[string]any{},
		},
	}

	return k.Load(confmap.Provider(defaults, keyDelim), nil)
}
