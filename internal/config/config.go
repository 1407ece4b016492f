// Package config handles configuration loading for Relay.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv overrides the configuration file location.
const ConfigPathEnv = "RELAY_CONFIG"

// ServerConfig describes the remote workflow endpoint.
type ServerConfig struct {
	// URL is the base URL of the remote workflow (e.g. "http://localhost:8080").
	URL string `yaml:"url"`
	// APIPrefix is an optional path prefix for the API (e.g. "/api").
	APIPrefix string `yaml:"api_prefix"`
	// TimeoutSeconds is the HTTP request timeout. Zero means the default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LogConfig describes logging behavior.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level"`
	// File is an optional rotating log file path.
	File string `yaml:"file"`
	// MaxSizeMB is the log file size before rotation.
	MaxSizeMB int `yaml:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep.
	MaxBackups int `yaml:"max_backups"`
}

// Config is the complete Relay configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration from a YAML file. Fields the file omits
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.Server.URL == "" {
		return nil, fmt.Errorf("config file %s: server.url must not be empty", path)
	}
	return cfg, nil
}

// LoadOrDefault loads the configuration from path if the file exists;
// a missing file yields the defaults. path may come from the RELAY_CONFIG
// environment variable or the data directory.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}
