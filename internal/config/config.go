// Package config provides configuration management for whodis.
//
// Config file locations (priority order):
//  1. $WHODIS_CONFIG
//  2. ./whodis.yaml
//  3. $XDG_CONFIG_HOME/whodis/config.yaml
//  4. ~/.config/whodis/config.yaml
//  5. /etc/whodis/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Database: DatabaseConfig{Path: "./whodis.db"},
		Probe:    ProbeConfig{Backend: "arp-scan"},
		Scan: ScanConfig{
			Interval:     Duration(30 * time.Minute),
			ProbeTimeout: Duration(2 * time.Minute),
		},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Path == "" {
		c.Database.Path = "./whodis.db"
	}
	if c.Probe.Backend == "" {
		c.Probe.Backend = "arp-scan"
	}
	if c.Scan.Interval <= 0 {
		c.Scan.Interval = Duration(30 * time.Minute)
	}
	if c.Scan.ProbeTimeout <= 0 {
		c.Scan.ProbeTimeout = Duration(2 * time.Minute)
	}
}

// validate rejects values the pipeline cannot run with
func (c *Config) validate() error {
	if c.Scan.ProbeTimeout.Duration() >= c.Scan.Interval.Duration() {
		return fmt.Errorf("probe_timeout (%s) must be shorter than the scan interval (%s)",
			c.Scan.ProbeTimeout.Duration(), c.Scan.Interval.Duration())
	}
	return nil
}
