package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"

	"github.com/ryabkov82/pvoutput-ingest/internal/client"
)

// Environment variables read by Populate
const (
	EnvAPIKey          = "PVOUTPUT_APIKEY"
	EnvSystemID        = "PVOUTPUT_SYSTEMID"
	EnvBaseURL         = "PVOUTPUT_BASE_URL"
	EnvCharset         = "PVOUTPUT_CHARSET"
	EnvTimeoutSeconds  = "PVOUTPUT_TIMEOUT_SECONDS"
	EnvRequestsPerHour = "PVOUTPUT_REQUESTS_PER_HOUR"
	EnvIngestAPIKey    = "PVOUTPUT_INGEST_API_KEY"
	EnvConfigPath      = "PVOUTPUT_CONFIG"
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvEnvironment     = "ENVIRONMENT"
)

// EnvError means a required setting is missing
type EnvError struct {
	Name string
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("unable to access environment variable: %s", e.Name)
}

// EnvTypeError means an environment variable could not be converted
type EnvTypeError struct {
	Name  string
	Value string
}

func (e *EnvTypeError) Error() string {
	return fmt.Sprintf("unable to convert environment variable: %s=%q", e.Name, e.Value)
}

// Config holds all service settings
type Config struct {
	API    APIConfig    `toml:"api"`
	Retry  RetryConfig  `toml:"retry"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// APIConfig configures access to the remote API
type APIConfig struct {
	Key                 string `toml:"key"`
	SystemID            string `toml:"system_id"`
	BaseURL             string `toml:"base_url"`
	Charset             string `toml:"charset"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	SafetyMarginSeconds int    `toml:"safety_margin_seconds"`
	RequestsPerHour     int    `toml:"requests_per_hour"`
}

// RetryConfig bounds transport retries per failure class
type RetryConfig struct {
	Connect      int `toml:"connect"`
	Read         int `toml:"read"`
	Status       int `toml:"status"`
	BackoffMs    int `toml:"backoff_ms"`
	BackoffMaxMs int `toml:"backoff_max_ms"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port      string `toml:"port"`
	APIKey    string `toml:"api_key"` // required on job routes when set
	QueueSize int    `toml:"queue_size"`
}

// LogConfig configures logging
type LogConfig struct {
	Level       string `toml:"level"`
	Environment string `toml:"environment"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	policy := client.DefaultRetryPolicy()
	return &Config{
		API: APIConfig{
			BaseURL:             client.DefaultBaseURL,
			Charset:             client.Latin1.Name(),
			TimeoutSeconds:      30,
			SafetyMarginSeconds: int(client.DefaultSafetyMargin / time.Second),
			RequestsPerHour:     60,
		},
		Retry: RetryConfig{
			Connect:      policy.Connect,
			Read:         policy.Read,
			Status:       policy.Status,
			BackoffMs:    int(policy.Backoff / time.Millisecond),
			BackoffMaxMs: int(policy.BackoffMax / time.Millisecond),
		},
		Server: ServerConfig{
			Port:      "8080",
			QueueSize: 1000,
		},
		Log: LogConfig{
			Level:       "info",
			Environment: "production",
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Populate(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes the TOML file at path over cfg
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Populate applies environment overrides. Unset or empty variables keep
// the current value.
func (c *Config) Populate() error {
	strs := []struct {
		name string
		dst  *string
	}{
		{EnvAPIKey, &c.API.Key},
		{EnvSystemID, &c.API.SystemID},
		{EnvBaseURL, &c.API.BaseURL},
		{EnvCharset, &c.API.Charset},
		{EnvIngestAPIKey, &c.Server.APIKey},
		{EnvPort, &c.Server.Port},
		{EnvLogLevel, &c.Log.Level},
		{EnvEnvironment, &c.Log.Environment},
	}
	for _, s := range strs {
		if v, found := os.LookupEnv(s.name); found && v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvTimeoutSeconds, &c.API.TimeoutSeconds},
		{EnvRequestsPerHour, &c.API.RequestsPerHour},
	}
	for _, i := range ints {
		v, found := os.LookupEnv(i.name)
		if !found || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &EnvTypeError{Name: i.name, Value: v}
		}
		*i.dst = n
	}

	return nil
}

// Validate checks required settings and value ranges
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return &EnvError{Name: EnvAPIKey}
	}
	if c.API.SystemID == "" {
		return &EnvError{Name: EnvSystemID}
	}
	if _, err := strconv.Atoi(c.API.SystemID); err != nil {
		return fmt.Errorf("system id must be numeric, got %q", c.API.SystemID)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("base url is empty")
	}
	if _, err := client.LookupCharset(c.API.Charset); err != nil {
		return err
	}
	if c.API.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must be >= 0, got %d", c.API.TimeoutSeconds)
	}
	// The client treats a zero margin as unset
	if c.API.SafetyMarginSeconds <= 0 {
		return fmt.Errorf("safety_margin_seconds must be > 0, got %d", c.API.SafetyMarginSeconds)
	}
	if c.API.RequestsPerHour < 0 {
		return fmt.Errorf("requests_per_hour must be >= 0, got %d", c.API.RequestsPerHour)
	}

	if c.Retry.Connect < 0 || c.Retry.Read < 0 || c.Retry.Status < 0 {
		return fmt.Errorf("retry counts must be >= 0")
	}
	if c.Retry.BackoffMs < 0 || c.Retry.BackoffMaxMs < c.Retry.BackoffMs {
		return fmt.Errorf("backoff_ms must be >= 0 and <= backoff_max_ms")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("port is empty")
	}
	if c.Server.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be > 0, got %d", c.Server.QueueSize)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// RetryPolicy returns the transport retry policy
func (c *Config) RetryPolicy() client.RetryPolicy {
	return client.RetryPolicy{
		Connect:    c.Retry.Connect,
		Read:       c.Retry.Read,
		Status:     c.Retry.Status,
		Backoff:    time.Duration(c.Retry.BackoffMs) * time.Millisecond,
		BackoffMax: time.Duration(c.Retry.BackoffMaxMs) * time.Millisecond,
	}
}

// Timeout returns the per-exchange HTTP timeout, zero for none
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// SafetyMargin returns the delay added to the quota reset time
func (c *Config) SafetyMargin() time.Duration {
	return time.Duration(c.API.SafetyMarginSeconds) * time.Second
}

// LogLevel returns the parsed log level, info if invalid
func (c *Config) LogLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// IsProduction reports whether production logging should be used
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Log.Environment, "production")
}
