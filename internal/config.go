package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type DaemonConfig struct {
	TickSeconds               int   `yaml:"tick_seconds"`
	CompactionIntervalMinutes int   `yaml:"compaction_interval_minutes"`
	HealthIntervalMinutes     int   `yaml:"health_interval_minutes"`
	LogMaxBytes               int64 `yaml:"log_max_bytes"`
}

type Config struct {
	RetentionDays         int          `yaml:"retention_days"`
	SnapshotRetentionDays int          `yaml:"snapshot_retention_days"`
	SessionLogMaxLines    int          `yaml:"session_log_max_lines"`
	RecentWindowHours     int          `yaml:"recent_window_hours"`
	RecentCommitLimit     int          `yaml:"recent_commit_limit"`
	Enrichment            bool         `yaml:"enrichment"`
	Daemon                DaemonConfig `yaml:"daemon"`
}

func DefaultConfig() *Config {
	return &Config{
		RetentionDays:         30,
		SnapshotRetentionDays: 7,
		SessionLogMaxLines:    1000,
		RecentWindowHours:     24,
		RecentCommitLimit:     15,
		Enrichment:            true,
		Daemon: DaemonConfig{
			TickSeconds:               30,
			CompactionIntervalMinutes: 360,
			HealthIntervalMinutes:     60,
			LogMaxBytes:               1 << 20,
		},
	}
}

func (c *Config) RecentWindow() time.Duration {
	return time.Duration(c.RecentWindowHours) * time.Hour
}

func (c *Config) RetentionCutoff(now time.Time) string {
	return Stamp(now.AddDate(0, 0, -c.RetentionDays))
}

func (c *Config) SnapshotCutoff(now time.Time) string {
	return Stamp(now.AddDate(0, 0, -c.SnapshotRetentionDays))
}

func (d DaemonConfig) Tick() time.Duration {
	return time.Duration(d.TickSeconds) * time.Second
}

func (d DaemonConfig) CompactionInterval() time.Duration {
	return time.Duration(d.CompactionIntervalMinutes) * time.Minute
}

func (d DaemonConfig) HealthInterval() time.Duration {
	return time.Duration(d.HealthIntervalMinutes) * time.Minute
}

// ConfigPath is the process-wide config file location. The file is read once
// at startup; the resulting value is passed explicitly to every component.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cortex", "config.yaml")
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
