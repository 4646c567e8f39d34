// Package config loads the YAML configuration for the wudooh daemon.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	// DB is the path of the settings database.
	DB string `yaml:"db"`

	Relay    RelayConfig    `yaml:"relay"`
	Browser  BrowserConfig  `yaml:"browser"`
	Debounce DebounceConfig `yaml:"debounce"`
	Pages    []PageConfig   `yaml:"pages"`
}

// RelayConfig controls the HTTP message ingress.
type RelayConfig struct {
	// Addr is the listen address. Empty disables the HTTP relay.
	Addr string `yaml:"addr"`
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty launches a local one.
	Remote string `yaml:"remote"`

	// Stealth applies the anti-automation-detection page setup.
	Stealth bool `yaml:"stealth"`

	// NavTimeout bounds page navigation.
	NavTimeout time.Duration `yaml:"nav_timeout"`
}

// DebounceConfig controls mutation batching.
type DebounceConfig struct {
	Window    time.Duration `yaml:"window"`
	MaxBuffer int           `yaml:"max_buffer"`
}

// PageConfig names one page to restyle.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// Load reads a YAML configuration file and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DB == "" {
		c.DB = "wudooh.db"
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Debounce.Window <= 0 {
		c.Debounce.Window = 250 * time.Millisecond
	}
	if c.Debounce.MaxBuffer <= 0 {
		c.Debounce.MaxBuffer = 1000
	}
}
