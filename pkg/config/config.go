// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Health    HealthConfig     `yaml:"health"`
	Primary   string           `yaml:"primary_provider"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig tunes the background health monitor and the staleness
// threshold for synchronous re-checks during a provider switch.
type HealthConfig struct {
	Interval       time.Duration `yaml:"interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	StaleThreshold time.Duration `yaml:"stale_threshold"`
}

// ProviderConfig declares one storage provider instance.
type ProviderConfig struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`     // "memory", "filesystem", "s3", "sqlite", "postgres"
	Enabled  bool              `yaml:"enabled"`
	Priority int               `yaml:"priority"` // lower is preferred on failover
	Params   map[string]string `yaml:"params"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration: a single in-memory provider,
// useful for local development and tests.
func Default() *Config {
	cfg := &Config{
		Primary: "memory",
		Providers: []ProviderConfig{
			{Name: "memory", Type: "memory", Enabled: true, Priority: 1},
		},
	}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

// Validate checks cross-field constraints that yaml parsing cannot.
func (c *Config) Validate() error {
	if len(c.enabledProviders()) == 0 {
		return fmt.Errorf("no enabled providers configured")
	}

	seen := make(map[string]bool)
	primaryFound := false
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if p.Type == "" {
			return fmt.Errorf("provider %q: empty type", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Enabled && p.Name == c.Primary {
			primaryFound = true
		}
	}
	if c.Primary != "" && !primaryFound {
		return fmt.Errorf("primary provider %q is not an enabled provider", c.Primary)
	}
	return nil
}

// EnabledProviders returns the providers that are switched on, in
// declaration order.
func (c *Config) EnabledProviders() []ProviderConfig {
	return c.enabledProviders()
}

func (c *Config) enabledProviders() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STORAGEGW_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("STORAGEGW_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STORAGEGW_PRIMARY_PROVIDER"); v != "" {
		cfg.Primary = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 60 * time.Second
	}
	if cfg.Health.Interval == 0 {
		cfg.Health.Interval = 30 * time.Second
	}
	if cfg.Health.ProbeTimeout == 0 {
		cfg.Health.ProbeTimeout = 5 * time.Second
	}
	if cfg.Health.StaleThreshold == 0 {
		cfg.Health.StaleThreshold = time.Minute
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].Priority == 0 {
			cfg.Providers[i].Priority = i + 1
		}
	}
}
