// Package config handles loading and validating hostwatch configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when an explicitly specified
// config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level hostwatch configuration.
type Config struct {
	PollingInterval    int            `yaml:"polling_interval"` // seconds between metric ticks
	AuthLog            string         `yaml:"auth_log"`
	ExternalProbeHost  string         `yaml:"external_probe_host"`
	PingCount          int            `yaml:"ping_count"`
	PingTimeoutSeconds int            `yaml:"ping_timeout_seconds"`
	LogLevel           string         `yaml:"log_level"`
	LogFormat          string         `yaml:"log_format"`
	Database           DatabaseConfig `yaml:"database"`
}

// DatabaseConfig selects and parameterizes the relational store. The sqlite
// driver uses only Path; the mysql driver uses the credential fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite only
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Name     string `yaml:"name"`
}

// Interval returns the polling interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.PollingInterval) * time.Second
}

// PingTimeout returns the per-probe timeout as a duration.
func (c *Config) PingTimeout() time.Duration {
	return time.Duration(c.PingTimeoutSeconds) * time.Second
}

// Load reads configuration from a YAML file. An empty path or a missing
// default file falls back to built-in defaults plus environment overrides;
// an explicitly given path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for mysql")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required for mysql")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or mysql, got %q", c.Database.Driver)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		PollingInterval:    300,
		AuthLog:            "/var/log/auth.log",
		ExternalProbeHost:  "8.8.8.8",
		PingCount:          2,
		PingTimeoutSeconds: 2,
		LogLevel:           "info",
		LogFormat:          "text",
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "/var/lib/hostwatch/hostwatch.db",
			Host:   "localhost",
			Name:   "secsuite",
		},
	}
}

// applyFallbacks restores defaults that were erased or mangled by an explicit
// but unusable config value. A nonsense interval should degrade to the
// default, not kill the daemon.
func (c *Config) applyFallbacks() {
	d := defaults()
	if c.PollingInterval <= 0 {
		c.PollingInterval = d.PollingInterval
	}
	if c.PingCount <= 0 {
		c.PingCount = d.PingCount
	}
	if c.PingTimeoutSeconds <= 0 {
		c.PingTimeoutSeconds = d.PingTimeoutSeconds
	}
	if c.AuthLog == "" {
		c.AuthLog = d.AuthLog
	}
	if c.ExternalProbeHost == "" {
		c.ExternalProbeHost = d.ExternalProbeHost
	}
	if c.Database.Host == "" {
		c.Database.Host = d.Database.Host
	}
	if c.Database.Name == "" {
		c.Database.Name = d.Database.Name
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOSTWATCH_POLLING_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollingInterval = n
		}
	}
	if v := os.Getenv("HOSTWATCH_AUTH_LOG"); v != "" {
		cfg.AuthLog = v
	}
	if v := os.Getenv("HOSTWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HOSTWATCH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("HOSTWATCH_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("HOSTWATCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("HOSTWATCH_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("HOSTWATCH_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("HOSTWATCH_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("HOSTWATCH_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
}
