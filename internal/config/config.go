// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default endpoints
const (
	DefaultCollectorURL    = "http://localhost:5000"
	DefaultSafeBrowsingURL = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	DefaultListenAddr      = "127.0.0.1:5000"
)

// Config holds all configuration for the monitor
type Config struct {
	CollectorURL      string        `mapstructure:"collector_url"`
	SafeBrowsingKey   string        `mapstructure:"safe_browsing_key"`
	SafeBrowsingURL   string        `mapstructure:"safe_browsing_url"`
	ClientID          string        `mapstructure:"client_id"`
	ClientVersion     string        `mapstructure:"client_version"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ReputationTimeout time.Duration `mapstructure:"reputation_timeout"`
	Compress          bool          `mapstructure:"compress"` // Enable gzip request bodies
	StateFile         string        `mapstructure:"state_file"`
	LogFile           string        `mapstructure:"log_file"`

	// Collector (collection endpoint) settings
	ListenAddr     string   `mapstructure:"listen_addr"`
	Database       string   `mapstructure:"database"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// ExtensionIDs are written into the native messaging host manifest
	ExtensionIDs []string `mapstructure:"extension_ids"`

	// discoveredConfig is true if config was obtained via auto-discovery
	discoveredConfig bool
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		CollectorURL:      DefaultCollectorURL,
		SafeBrowsingURL:   DefaultSafeBrowsingURL,
		ClientID:          "tab_monitor",
		ClientVersion:     "1.0",
		Timeout:           10 * time.Second,
		ReputationTimeout: 5 * time.Second,
		Compress:          false,
		ListenAddr:        DefaultListenAddr,
	}
}

// Load reads configuration from file, environment, and optionally auto-discovery.
// Priority (highest to lowest): CLI flags > Env vars > Config file > Auto-discovery
func Load(configPath string) (*Config, error) {
	return load(configPath, Discover)
}

func load(configPath string, discover func() *DiscoveryResult) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix("TAB_MONITOR")
	v.AutomaticEnv()

	// Bind config keys so AutomaticEnv sees them during Unmarshal
	v.SetDefault("collector_url", cfg.CollectorURL)
	v.SetDefault("safe_browsing_key", "")
	v.SetDefault("safe_browsing_url", cfg.SafeBrowsingURL)
	v.SetDefault("client_id", cfg.ClientID)
	v.SetDefault("client_version", cfg.ClientVersion)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("reputation_timeout", cfg.ReputationTimeout)
	v.SetDefault("compress", cfg.Compress)
	v.SetDefault("state_file", "")
	v.SetDefault("log_file", "")
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("database", "")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("extension_ids", []string{})

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The Safe Browsing key is a provisioned secret; fall back to discovery
	// when neither the file nor the environment supplied one.
	if cfg.SafeBrowsingKey == "" && discover != nil {
		if discovered := discover(); discovered != nil {
			cfg.SafeBrowsingKey = discovered.SafeBrowsingKey
			if cfg.CollectorURL == DefaultCollectorURL && discovered.CollectorURL != "" {
				cfg.CollectorURL = discovered.CollectorURL
			}
			cfg.discoveredConfig = true
		}
	}

	return cfg, nil
}

// WasDiscovered returns true if configuration was obtained via auto-discovery
func (c *Config) WasDiscovered() bool {
	return c.discoveredConfig
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.CollectorURL == "" {
		return fmt.Errorf("collector_url is required")
	}
	u, err := url.Parse(c.CollectorURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("collector_url must be an http(s) URL: %q", c.CollectorURL)
	}
	if c.SafeBrowsingURL == "" {
		return fmt.Errorf("safe_browsing_url is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if c.ReputationTimeout <= 0 {
		return fmt.Errorf("reputation_timeout must be > 0")
	}
	return nil
}

// ApplyFlags merges CLI flag values into config (non-empty values override)
func (c *Config) ApplyFlags(collectorURL, safeBrowsingKey, stateFile, logFile string, compress bool, compressSet bool, timeout time.Duration) {
	if collectorURL != "" {
		c.CollectorURL = collectorURL
	}
	if safeBrowsingKey != "" {
		c.SafeBrowsingKey = safeBrowsingKey
	}
	if stateFile != "" {
		c.StateFile = stateFile
	}
	if logFile != "" {
		c.LogFile = logFile
	}
	if compressSet {
		c.Compress = compress
	}
	if timeout > 0 {
		c.Timeout = timeout
	}
}

// configFile represents the YAML structure for saving config
type configFile struct {
	CollectorURL      string   `yaml:"collector_url"`
	SafeBrowsingKey   string   `yaml:"safe_browsing_key,omitempty"`
	SafeBrowsingURL   string   `yaml:"safe_browsing_url"`
	ClientID          string   `yaml:"client_id"`
	ClientVersion     string   `yaml:"client_version"`
	Timeout           string   `yaml:"timeout"`
	ReputationTimeout string   `yaml:"reputation_timeout"`
	Compress          bool     `yaml:"compress"`
	StateFile         string   `yaml:"state_file,omitempty"`
	LogFile           string   `yaml:"log_file,omitempty"`
	ListenAddr        string   `yaml:"listen_addr,omitempty"`
	Database          string   `yaml:"database,omitempty"`
	AllowedOrigins    []string `yaml:"allowed_origins,omitempty"`
	ExtensionIDs      []string `yaml:"extension_ids,omitempty"`
}

// SaveToFile writes the configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cf := configFile{
		CollectorURL:      c.CollectorURL,
		SafeBrowsingKey:   c.SafeBrowsingKey,
		SafeBrowsingURL:   c.SafeBrowsingURL,
		ClientID:          c.ClientID,
		ClientVersion:     c.ClientVersion,
		Timeout:           c.Timeout.String(),
		ReputationTimeout: c.ReputationTimeout.String(),
		Compress:          c.Compress,
		StateFile:         c.StateFile,
		LogFile:           c.LogFile,
		ListenAddr:        c.ListenAddr,
		Database:          c.Database,
		AllowedOrigins:    c.AllowedOrigins,
		ExtensionIDs:      c.ExtensionIDs,
	}

	data, err := yaml.Marshal(cf)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with restricted permissions (contains API key)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
