package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the CLI settings.
type Config struct {
	ServicesDir string `yaml:"services_dir,omitempty"`
	Profile     string `yaml:"profile,omitempty"`
	LogLevel    string `yaml:"log_level,omitempty"`
	LogFormat   string `yaml:"log_format,omitempty"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfigFile loads configuration from a YAML file over the defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// FindConfigFile returns the first existing standard config location, or
// the empty string.
func FindConfigFile() string {
	locations := []string{
		"./mediagraph.yaml",
		"./mediagraph.yml",
		filepath.Join(os.Getenv("HOME"), ".mediagraph", "config.yaml"),
		"/etc/mediagraph/config.yaml",
	}
	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errors []string
	if _, err := parseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s', must be one of: text, json", c.LogFormat))
	}
	if c.ServicesDir != "" {
		if info, err := os.Stat(c.ServicesDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("services directory does not exist: %s", c.ServicesDir))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", name)
	}
	return level, nil
}

// Logger builds the configured slog logger writing to stderr.
func (c *Config) Logger() *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
