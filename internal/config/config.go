// Package config loads and validates urlprobe configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/urlprobe/internal/probe"
)

// Supported fetch backends.
const (
	BackendNetHTTP = "nethttp"
	BackendColly   = "colly"
)

// Config captures every knob of a probe run.
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// InputConfig locates the URL list.
type InputConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig controls where and how the report is written.
type OutputConfig struct {
	Path   string `mapstructure:"path"`
	Pretty bool   `mapstructure:"pretty"`
}

// FetchConfig governs the engine and the fetch backend.
type FetchConfig struct {
	Backend        string        `mapstructure:"backend"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Concurrency    int           `mapstructure:"concurrency"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	UserAgent      string        `mapstructure:"user_agent"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
}

// HTTPConfig configures the shared transport.
type HTTPConfig struct {
	InsecureSkipVerify    bool          `mapstructure:"insecure_skip_verify"`
	MaxIdleConns          int           `mapstructure:"max_idle_conns"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
}

// LoggingConfig toggles zap features.
type LoggingConfig struct {
	Verbose     bool   `mapstructure:"verbose"`
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig points at an optional Prometheus textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// NotifyConfig holds completion notification targets.
type NotifyConfig struct {
	PubSub PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ProgressConfig toggles the terminal progress bar.
type ProgressConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// flagKeys maps config keys to the CLI flag names that override them.
var flagKeys = map[string]string{
	"input.path":                "input",
	"output.path":               "output",
	"output.pretty":             "pretty",
	"fetch.backend":             "backend",
	"fetch.timeout":             "timeout",
	"fetch.concurrency":         "concurrency",
	"fetch.max_attempts":        "attempts",
	"fetch.user_agent":          "user-agent",
	"fetch.backoff_initial":     "backoff",
	"http.insecure_skip_verify": "insecure",
	"logging.verbose":           "verbose",
	"metrics.textfile":          "metrics-file",
	"progress.enabled":          "progress",
}

// Load builds a Config from defaults, an optional file, the environment
// and flags, in increasing order of precedence. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("URLPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindEnv("logging.level", "URLPROBE_LOGGING_LEVEL", "LOGLEVEL"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}
	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Fetch.Backend = strings.ToLower(strings.TrimSpace(cfg.Fetch.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.path", "")
	v.SetDefault("output.path", "result.json")
	v.SetDefault("output.pretty", false)
	v.SetDefault("fetch.backend", BackendNetHTTP)
	v.SetDefault("fetch.timeout", probe.DefaultTimeout)
	v.SetDefault("fetch.concurrency", probe.DefaultMaxConcurrency)
	v.SetDefault("fetch.max_attempts", probe.DefaultMaxAttempts)
	v.SetDefault("fetch.user_agent", probe.DefaultUserAgent)
	v.SetDefault("fetch.backoff_initial", time.Duration(0))
	v.SetDefault("fetch.backoff_max", 5*time.Second)
	v.SetDefault("http.insecure_skip_verify", false)
	v.SetDefault("http.max_idle_conns", 100)
	v.SetDefault("http.response_header_timeout", time.Duration(0))
	v.SetDefault("logging.verbose", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("notify.pubsub.project_id", "")
	v.SetDefault("notify.pubsub.topic_id", "")
	v.SetDefault("progress.enabled", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Output.Path == "" {
		return fmt.Errorf("output.path must be set")
	}
	switch c.Fetch.Backend {
	case BackendNetHTTP, BackendColly:
	default:
		return fmt.Errorf("fetch.backend must be %q or %q, got %q", BackendNetHTTP, BackendColly, c.Fetch.Backend)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Fetch.BackoffInitial < 0 {
		return fmt.Errorf("fetch.backoff_initial must be >= 0")
	}
	if c.Fetch.BackoffInitial > 0 && c.Fetch.BackoffMax < c.Fetch.BackoffInitial {
		return fmt.Errorf("fetch.backoff_max must be >= fetch.backoff_initial")
	}
	if c.HTTP.MaxIdleConns < 0 {
		return fmt.Errorf("http.max_idle_conns must be >= 0")
	}
	if c.HTTP.ResponseHeaderTimeout < 0 {
		return fmt.Errorf("http.response_header_timeout must be >= 0")
	}
	if c.Notify.PubSub.TopicID != "" && c.Notify.PubSub.ProjectID == "" {
		return fmt.Errorf("notify.pubsub.project_id must be set when notify.pubsub.topic_id is set")
	}
	return nil
}

// Engine converts the fetch settings into the engine's configuration.
func (c Config) Engine() probe.Config {
	return probe.Config{
		Timeout:        c.Fetch.Timeout,
		MaxConcurrency: c.Fetch.Concurrency,
		MaxAttempts:    c.Fetch.MaxAttempts,
		UserAgent:      c.Fetch.UserAgent,
	}
}

// RetryPolicy builds the retry policy described by the fetch settings.
func (c Config) RetryPolicy() *probe.ExponentialRetryPolicy {
	return probe.NewRetryPolicy(c.Fetch.MaxAttempts, c.Fetch.BackoffInitial, c.Fetch.BackoffMax)
}
