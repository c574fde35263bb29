// Package config handles the persisted osprey configuration: scan
// settings, API keys for external services, logging, optional scan
// history storage, and the API server mode.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/averlane/osprey/internal/logging"
)

const (
	configDirPerm  = 0750
	configFilePerm = 0600

	// DefaultGuardrailMaxUnits is the pre-flight ceiling on expanded
	// probe units for IP batches.
	DefaultGuardrailMaxUnits = 1000

	defaultMaxThreads     = 10
	defaultHTTPTimeout    = 30 * time.Second
	defaultConnectTimeout = 1 * time.Second
	defaultRetryCount     = 3
	defaultRateLimitDelay = 100 * time.Millisecond
)

// UserAgentPreset names a built-in User-Agent string.
type UserAgentPreset string

const (
	PresetChrome  UserAgentPreset = "chrome"
	PresetFirefox UserAgentPreset = "firefox"
	PresetSafari  UserAgentPreset = "safari"
	PresetEdge    UserAgentPreset = "edge"
	PresetMobile  UserAgentPreset = "mobile"
	PresetOsprey  UserAgentPreset = "osprey"
	PresetCustom  UserAgentPreset = "custom"
)

var userAgents = map[UserAgentPreset]string{
	PresetChrome: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	PresetFirefox: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	PresetSafari: "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2_1) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	PresetEdge: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	PresetMobile: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2_1 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
	PresetOsprey: "osprey/1.0 (open source recon toolkit)",
}

// Config represents the complete osprey configuration.
type Config struct {
	// Settings holds scan behavior configuration.
	Settings Settings `yaml:"settings" json:"settings"`

	// APIKeys maps external service names to API keys.
	APIKeys map[string]string `yaml:"api_keys" json:"api_keys"`

	// Logging configuration.
	Logging logging.Config `yaml:"logging" json:"logging"`

	// Database holds optional scan history storage settings.
	Database DatabaseConfig `yaml:"database" json:"database"`

	// API holds API server mode settings.
	API APIConfig `yaml:"api" json:"api"`
}

// Settings holds scan behavior configuration shared by all commands.
type Settings struct {
	// MaxThreads is the concurrency limit for probe batches.
	MaxThreads int `yaml:"max_threads" json:"max_threads" validate:"gte=1,lte=1024"`

	// HTTPTimeout applies to HTTP requests (liveness checks, CT harvest).
	HTTPTimeout time.Duration `yaml:"http_timeout" json:"http_timeout" validate:"gt=0"`

	// ConnectTimeout applies to a single TCP connect or DNS probe.
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" validate:"gt=0"`

	// GuardrailMaxUnits is the pre-flight ceiling on expanded IP batches.
	GuardrailMaxUnits int `yaml:"guardrail_max_units" json:"guardrail_max_units" validate:"gte=1"`

	// UserAgentPreset selects a built-in User-Agent string.
	UserAgentPreset UserAgentPreset `yaml:"user_agent_preset" json:"user_agent_preset"`

	// UserAgent overrides the preset when UserAgentPreset is "custom".
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// Proxy is an optional proxy URL for HTTP requests.
	Proxy string `yaml:"proxy" json:"proxy" validate:"omitempty,url"`

	// ProxyAuth holds optional proxy credentials.
	ProxyAuth *ProxyAuth `yaml:"proxy_auth,omitempty" json:"proxy_auth,omitempty"`

	// RetryCount is the number of retries for external source requests.
	RetryCount int `yaml:"retry_count" json:"retry_count" validate:"gte=0,lte=10"`

	// RateLimitDelay is the delay between retries of external requests.
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" json:"rate_limit_delay"`
}

// ProxyAuth holds proxy basic-auth credentials.
type ProxyAuth struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// DatabaseConfig holds optional Postgres settings for scan history.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port" validate:"omitempty,gte=1,lte=65535"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Database, d.Username, d.Password, d.SSLMode)
}

// APIConfig holds API server mode settings.
type APIConfig struct {
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr"`
	Port           int           `yaml:"port" json:"port" validate:"gte=1,lte=65535"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	CORSEnabled    bool          `yaml:"cors_enabled" json:"cors_enabled"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Settings: Settings{
			MaxThreads:        defaultMaxThreads,
			HTTPTimeout:       defaultHTTPTimeout,
			ConnectTimeout:    defaultConnectTimeout,
			GuardrailMaxUnits: DefaultGuardrailMaxUnits,
			UserAgentPreset:   PresetChrome,
			RetryCount:        defaultRetryCount,
			RateLimitDelay:    defaultRateLimitDelay,
		},
		APIKeys: make(map[string]string),
		Logging: logging.DefaultConfig(),
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5432,
			Database: "osprey",
			Username: "osprey",
			SSLMode:  "disable",
		},
		API: APIConfig{
			ListenAddr:     "127.0.0.1",
			Port:           1337,
			RequestTimeout: 60 * time.Second,
			CORSEnabled:    true,
		},
	}
}

// DefaultPath returns the default config file location under the user
// config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	return filepath.Join(dir, "osprey", "config.yaml"), nil
}

// Load loads configuration from a file, falling back to defaults when the
// file does not exist. An unparsable file is an error, never a silent reset.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Settings.UserAgentPreset != "" {
		if _, ok := userAgents[c.Settings.UserAgentPreset]; !ok && c.Settings.UserAgentPreset != PresetCustom {
			return fmt.Errorf("unknown user agent preset: %s", c.Settings.UserAgentPreset)
		}
	}
	if c.Settings.UserAgentPreset == PresetCustom && c.Settings.UserAgent == "" {
		return fmt.Errorf("user_agent is required when user_agent_preset is custom")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required when database is enabled")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required when database is enabled")
		}
	}

	switch c.Logging.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError, "":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// ResolveUserAgent returns the effective User-Agent string for HTTP requests.
func (s Settings) ResolveUserAgent() string {
	if s.UserAgentPreset == PresetCustom || s.UserAgentPreset == "" {
		if s.UserAgent != "" {
			return s.UserAgent
		}
		return userAgents[PresetChrome]
	}
	if ua, ok := userAgents[s.UserAgentPreset]; ok {
		return ua
	}
	return userAgents[PresetChrome]
}

// GetAPIKey returns the stored API key for a service, if any.
func (c *Config) GetAPIKey(service string) (string, bool) {
	key, ok := c.APIKeys[service]
	return key, ok
}

// SetAPIKey stores an API key for a service.
func (c *Config) SetAPIKey(service, key string) {
	if c.APIKeys == nil {
		c.APIKeys = make(map[string]string)
	}
	c.APIKeys[service] = key
}

// APIAddress returns the full API listen address.
func (c *Config) APIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}
