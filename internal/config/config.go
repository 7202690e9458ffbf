// Package config holds all audiencedeck configuration, loaded from
// <state dir>/config.yaml with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all audiencedeck configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Backend API configuration
	API APIConfig `yaml:"api"`

	// Phyllo Connect widget configuration
	Phyllo PhylloConfig `yaml:"phyllo"`

	// Browser host for the Connect widget
	Browser BrowserConfig `yaml:"browser"`

	// Local storage paths
	Storage StorageConfig `yaml:"storage"`

	// Dashboard UI settings
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the backend REST client.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// PhylloConfig configures the vendor Connect widget.
type PhylloConfig struct {
	// Display name shown inside the Connect widget
	AppName string `yaml:"app_name"`

	// Environment tag passed to the widget (sandbox, staging, production)
	Environment string `yaml:"environment"`

	// URL of the Connect SDK script loaded into the host page
	SDKURL string `yaml:"sdk_url"`
}

// BrowserConfig configures the Chrome instance hosting the widget.
type BrowserConfig struct {
	Headless            bool   `yaml:"headless"`
	Bin                 string `yaml:"bin"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
}

// StorageConfig configures local state paths.
type StorageConfig struct {
	// SQLite snapshot cache of accounts and audience records
	SnapshotPath string `yaml:"snapshot_path"`

	// Directory for the two credential entries (token, profile)
	CredentialsDir string `yaml:"credentials_dir"`
}

// UIConfig configures the dashboard TUI.
type UIConfig struct {
	Theme string `yaml:"theme"` // light, dark, auto
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "audiencedeck",
		Version: "0.3.0",

		API: APIConfig{
			BaseURL: "http://localhost:4000",
			Timeout: "30s",
		},

		Phyllo: PhylloConfig{
			AppName:     "audiencedeck",
			Environment: "sandbox",
			SDKURL:      "https://cdn.getphyllo.com/connect/v2/phyllo-connect.js",
		},

		Browser: BrowserConfig{
			Headless:            false,
			ViewportWidth:       1280,
			ViewportHeight:      860,
			NavigationTimeoutMs: 30000,
		},

		Storage: StorageConfig{
			SnapshotPath:   "snapshot.db",
			CredentialsDir: "credentials",
		},

		UI: UIConfig{
			Theme: "auto",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultStateDir returns the per-user state directory.
func DefaultStateDir() string {
	if dir := os.Getenv("AUDIENCEDECK_HOME"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ".audiencedeck"
	}
	return filepath.Join(base, "audiencedeck")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadFromStateDir loads <stateDir>/config.yaml and resolves relative storage
// paths against the state directory.
func LoadFromStateDir(stateDir string) (*Config, error) {
	cfg, err := Load(filepath.Join(stateDir, "config.yaml"))
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Storage.SnapshotPath) {
		cfg.Storage.SnapshotPath = filepath.Join(stateDir, cfg.Storage.SnapshotPath)
	}
	if !filepath.IsAbs(cfg.Storage.CredentialsDir) {
		cfg.Storage.CredentialsDir = filepath.Join(stateDir, cfg.Storage.CredentialsDir)
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("AUDIENCEDECK_API_URL"); url != "" {
		c.API.BaseURL = url
	}
	if env := os.Getenv("AUDIENCEDECK_PHYLLO_ENV"); env != "" {
		c.Phyllo.Environment = env
	}
	if url := os.Getenv("AUDIENCEDECK_SDK_URL"); url != "" {
		c.Phyllo.SDKURL = url
	}
	if os.Getenv("AUDIENCEDECK_HEADLESS") == "1" {
		c.Browser.Headless = true
	}
	if path := os.Getenv("AUDIENCEDECK_DB"); path != "" {
		c.Storage.SnapshotPath = path
	}
	if theme := os.Getenv("AUDIENCEDECK_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// APITimeout returns the backend request timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// NavigationTimeout returns the browser navigation timeout.
func (c *Config) NavigationTimeout() time.Duration {
	if c.Browser.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Browser.NavigationTimeoutMs) * time.Millisecond
}
