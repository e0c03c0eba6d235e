package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Benchmark     BenchmarkConfig     `toml:"benchmark"`
	Policy        PolicyConfig        `toml:"policy"`
	Maintenance   MaintenanceConfig   `toml:"maintenance"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	WorkspaceRoot string `toml:"workspace_root"`
	DatabasePath  string `toml:"database_path"`
}

// BenchmarkConfig holds benchmark harness settings
type BenchmarkConfig struct {
	HarnessCommand      []string `toml:"harness_command"`
	HarnessTimeoutSecs  int      `toml:"harness_timeout_secs"`
	DefaultThresholdPct float64  `toml:"default_threshold_pct"`
}

// PolicyConfig holds message policy settings
type PolicyConfig struct {
	RulesPath string `toml:"rules_path"`
}

// MaintenanceConfig holds sweeper settings
type MaintenanceConfig struct {
	SweepCron      string `toml:"sweep_cron"`
	StaleAfter     string `toml:"stale_after"`     // duration, e.g. "72h"
	SessionTimeout string `toml:"session_timeout"` // duration; empty disables
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds status server settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			WorkspaceRoot: filepath.Join(home, ".benchwright", "workspaces"),
			DatabasePath:  filepath.Join(home, ".benchwright", "benchwright.db"),
		},
		Benchmark: BenchmarkConfig{
			HarnessCommand:      []string{"go", "test", "-bench"},
			HarnessTimeoutSecs:  600,
			DefaultThresholdPct: 5,
		},
		Policy: PolicyConfig{
			RulesPath: filepath.Join(home, ".benchwright", "policy.yaml"),
		},
		Maintenance: MaintenanceConfig{
			SweepCron:  "0 * * * *",
			StaleAfter: "72h",
			// SessionTimeout deliberately empty: sessions wait indefinitely
			// unless a timeout is configured.
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.WorkspaceRoot = ExpandPath(cfg.General.WorkspaceRoot)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.Policy.RulesPath = ExpandPath(cfg.Policy.RulesPath)

	return cfg, nil
}

// StaleAfterDuration returns the parsed stale-after duration
func (c *MaintenanceConfig) StaleAfterDuration() time.Duration {
	d, err := time.ParseDuration(c.StaleAfter)
	if err != nil {
		return 72 * time.Hour
	}
	return d
}

// SessionTimeoutDuration returns the parsed session timeout, or zero when
// no timeout is configured
func (c *MaintenanceConfig) SessionTimeoutDuration() time.Duration {
	if c.SessionTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.SessionTimeout)
	if err != nil {
		return 0
	}
	return d
}

// HarnessTimeout returns the harness timeout as a duration
func (c *BenchmarkConfig) HarnessTimeout() time.Duration {
	return time.Duration(c.HarnessTimeoutSecs) * time.Second
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "benchwright", "config.toml")
}
