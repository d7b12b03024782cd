package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon-level configuration sysdbd reads at startup
// (spec.md §6's "-C <config>" flag) and re-reads on SIGHUP.
type Config struct {
	// Listen is the set of socket addresses to bind, each of the form
	// "unix:/path/to/socket" (spec.md §6).
	Listen []string `yaml:"listen"`
	// Workers is the fixed size of the connection worker pool
	// (spec.md §4.10 default 5).
	Workers int `yaml:"workers"`
	// ChannelDepth is the bounded dispatch channel's capacity
	// (spec.md §4.10 default 1024).
	ChannelDepth int `yaml:"channel_depth"`
	// CollectorInterval is the default period for collector tasks that
	// don't specify their own (spec.md §4.11).
	CollectorInterval time.Duration `yaml:"collector_interval"`
	// LogLevel and LogDev feed internal/logging.Config directly.
	LogLevel string `yaml:"log_level"`
	LogDev   bool   `yaml:"log_dev"`
}

// Default returns the configuration a daemon started with no config file
// (or an empty one) runs with.
func Default() *Config {
	return &Config{
		Listen:            []string{"unix:/var/run/sysdb/sysdbd.sock"},
		Workers:           5,
		ChannelDepth:      1024,
		CollectorInterval: 30 * time.Second,
		LogLevel:          "info",
	}
}

// Load reads and parses the YAML configuration file at path, filling any
// field the file omits with Default's value. A missing file is not an
// error: sysdbd falls back to Default so "-D" smoke runs work without a
// config file in place.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDefaults fills zero-valued fields a partially-specified YAML file
// left unset.
func (c *Config) withDefaults() *Config {
	d := Default()
	if len(c.Listen) == 0 {
		c.Listen = d.Listen
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.ChannelDepth == 0 {
		c.ChannelDepth = d.ChannelDepth
	}
	if c.CollectorInterval == 0 {
		c.CollectorInterval = d.CollectorInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	return c
}

// Validate reports an error for a configuration that cannot start a
// server: no listen addresses, or a non-positive worker count.
func (c *Config) Validate() error {
	if len(c.Listen) == 0 {
		return fmt.Errorf("config: at least one listen address is required")
	}
	for _, addr := range c.Listen {
		if len(addr) < 6 || addr[:5] != "unix:" {
			return fmt.Errorf("config: unsupported listen address %q, want \"unix:/path\"", addr)
		}
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.ChannelDepth <= 0 {
		return fmt.Errorf("config: channel_depth must be positive, got %d", c.ChannelDepth)
	}
	return nil
}
