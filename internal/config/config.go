// ABOUTME: Configuration loading and parsing for mcp-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete mcp-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	SessionSecret string `yaml:"session_secret"`

	JWKSFetchTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	JWKSFetchTimeoutRaw string `yaml:"jwks_fetch_timeout"`
}

// CacheConfig holds TTL overrides for the lookup cache. Zero values fall
// back to the built-in defaults.
type CacheConfig struct {
	ServerTTL       time.Duration `yaml:"-"`
	ServerAccessTTL time.Duration `yaml:"-"`
	JWKSTTL         time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ServerTTLRaw       string `yaml:"server_ttl"`
	ServerAccessTTLRaw string `yaml:"server_access_ttl"`
	JWKSTTLRaw         string `yaml:"jwks_ttl"`
}

// SessionsConfig holds streaming session configuration
type SessionsConfig struct {
	KeepAliveInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	KeepAliveIntervalRaw string `yaml:"keep_alive_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("auth.session_secret is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.jwks_fetch_timeout", cfg.Auth.JWKSFetchTimeoutRaw, &cfg.Auth.JWKSFetchTimeout},
		{"cache.server_ttl", cfg.Cache.ServerTTLRaw, &cfg.Cache.ServerTTL},
		{"cache.server_access_ttl", cfg.Cache.ServerAccessTTLRaw, &cfg.Cache.ServerAccessTTL},
		{"cache.jwks_ttl", cfg.Cache.JWKSTTLRaw, &cfg.Cache.JWKSTTL},
		{"sessions.keep_alive_interval", cfg.Sessions.KeepAliveIntervalRaw, &cfg.Sessions.KeepAliveInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
