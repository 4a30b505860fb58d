// Package config loads the webget configuration: optional webget.yaml
// overridden by WEBGET_* environment variables, with working defaults
// when neither is present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server and CLI configuration.
type Config struct {
	// Addr is the server listen address.
	Addr string `yaml:"addr"`

	// Workers caps concurrent renders, both server-side and in the CLI
	// batch.
	Workers int `yaml:"workers"`

	// DataDir roots the blob store (baselines, scratch captures) and the
	// history database.
	DataDir string `yaml:"data_dir"`

	// TemplatesDir holds the composite frame documents served under
	// /templates.
	TemplatesDir string `yaml:"templates_dir"`

	// ActionTimeout bounds each element lookup and interaction.
	ActionTimeout time.Duration `yaml:"action_timeout"`

	// NavTimeout bounds navigation and capture.
	NavTimeout time.Duration `yaml:"nav_timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":3637"
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 5 * time.Second
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 10 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ServerURL derives the base URL the browser and the CLI use to reach
// the server on this host.
func (c *Config) ServerURL() string {
	addr := c.Addr
	if addr != "" && addr[0] == ':' {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Load reads path (missing file is fine), then applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file: env and defaults only.
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("WEBGET_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("WEBGET_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: WEBGET_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("WEBGET_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("WEBGET_TEMPLATES_DIR"); v != "" {
		c.TemplatesDir = v
	}
	if v := os.Getenv("WEBGET_ACTION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: WEBGET_ACTION_TIMEOUT: %w", err)
		}
		c.ActionTimeout = d
	}
	if v := os.Getenv("WEBGET_NAV_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: WEBGET_NAV_TIMEOUT: %w", err)
		}
		c.NavTimeout = d
	}
	if v := os.Getenv("WEBGET_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}
