package config

import "time"

// Retry policy names accepted by the retry_policy key
const (
	LinearRetry       = "linear"
	ConfigurableRetry = "configurable"
)

// Authentication modes for Livy endpoints
const (
	NoAuth    = "None"
	AuthBasic = "Basic_Access"
)

// Kernel languages
const (
	LangScala   = "scala"
	LangPython  = "python"
	LangPython3 = "python3"
	LangR       = "r"
)

// Livy session kinds
const (
	SessionKindSpark    = "spark"
	SessionKindPySpark  = "pyspark"
	SessionKindPySpark3 = "pyspark3"
	SessionKindSparkR   = "sparkr"
)

// LivyKindParam is the session property carrying the session kind
const LivyKindParam = "kind"

// Settings is the merged view of every configuration layer.
// Keys mirror the flat layout of the sparkmagic config.json so existing files load unchanged.
// Duration fields accept numbers (seconds) or Go duration strings.
type Settings struct {
	RetryPolicy                       string          `koanf:"retry_policy" json:"retry_policy"`
	RetrySecondsToSleepList           []time.Duration `koanf:"retry_seconds_to_sleep_list" json:"retry_seconds_to_sleep_list" validate:"dive,gte=0"`
	ConfigurableRetryPolicyMaxRetries int             `koanf:"configurable_retry_policy_max_retries" json:"configurable_retry_policy_max_retries" validate:"gte=0"`
	LinearRetrySecondsToSleep         time.Duration   `koanf:"linear_retry_seconds_to_sleep" json:"linear_retry_seconds_to_sleep" validate:"gte=0"`
	LinearRetryMaxRetries             int             `koanf:"linear_retry_max_retries" json:"linear_retry_max_retries" validate:"gte=0"`

	CustomHeaders   map[string]string `koanf:"custom_headers" json:"custom_headers"`
	IgnoreSSLErrors bool              `koanf:"ignore_ssl_errors" json:"ignore_ssl_errors"`
	HTTPTimeout     time.Duration     `koanf:"http_timeout_seconds" json:"http_timeout_seconds" validate:"gt=0"`

	SessionConfigs            map[string]any `koanf:"session_configs" json:"session_configs"`
	LivySessionStartupTimeout time.Duration  `koanf:"livy_session_startup_timeout_seconds" json:"livy_session_startup_timeout_seconds" validate:"gt=0"`
	StatementPollInterval     time.Duration  `koanf:"statement_poll_interval_seconds" json:"statement_poll_interval_seconds" validate:"gt=0"`

	KernelPythonCredentials RawCredentials `koanf:"kernel_python_credentials" json:"kernel_python_credentials"`
	KernelScalaCredentials  RawCredentials `koanf:"kernel_scala_credentials" json:"kernel_scala_credentials"`
	KernelRCredentials      RawCredentials `koanf:"kernel_r_credentials" json:"kernel_r_credentials"`

	LogLevel  string `koanf:"log_level" json:"log_level"`
	LogPretty bool   `koanf:"log_pretty" json:"log_pretty"`

	Observability ObservabilitySettings `koanf:"observability" json:"observability"`
}

// Telemetry exporters
const (
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// ObservabilitySettings configures OpenTelemetry export. The library itself only
// talks to the global providers; binaries use these settings to install them.
type ObservabilitySettings struct {
	Enabled     bool              `koanf:"enabled" json:"enabled"`
	ServiceName string            `koanf:"service_name" json:"service_name" validate:"required"`
	Exporter    string            `koanf:"exporter" json:"exporter" validate:"oneof=stdout otlp-http otlp-grpc"`
	Endpoint    string            `koanf:"endpoint" json:"endpoint" validate:"required_unless=Exporter stdout"`
	Insecure    bool              `koanf:"insecure" json:"insecure"`
	SampleRate  float64           `koanf:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
	Headers     map[string]string `koanf:"headers" json:"headers"`
}

// RawCredentials is a kernel credential block as written in configuration.
type RawCredentials struct {
	Username       string `koanf:"username" json:"username"`
	Password       string `koanf:"password" json:"password"`
	Base64Password string `koanf:"base64_password" json:"base64_password"`
	URL            string `koanf:"url" json:"url" validate:"omitempty,url"`
	Auth           string `koanf:"auth" json:"auth" validate:"omitempty,oneof=None Basic_Access"`
}

// Credentials is a decoded credential block ready to build an endpoint.
type Credentials struct {
	Username string
	Password string
	URL      string
	Auth     string
}
