package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models homecrew.yml.
type Config struct {
	Quota struct {
		DailyCap        float64 `yaml:"daily_cap"`
		MinMissionHours float64 `yaml:"min_mission_hours"`
	} `yaml:"quota"`
	Retry struct {
		ScanSeconds     int `yaml:"scan_seconds"`
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAttempts     int `yaml:"max_attempts"`
	} `yaml:"retry"`
	Mail struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		From     string `yaml:"from"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"mail"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// ScanInterval is the retry-queue rescan cadence.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Retry.ScanSeconds) * time.Second
}

// RetryInterval is the minimum delay between attempts on one job.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Retry.IntervalMinutes) * time.Minute
}

// MinMissionSpan is the shortest allowed mission duration.
func (c *Config) MinMissionSpan() time.Duration {
	return time.Duration(c.Quota.MinMissionHours * float64(time.Hour))
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Quota.DailyCap <= 0 {
		return fmt.Errorf("config.quota.daily_cap must be positive")
	}
	if c.Quota.MinMissionHours < 0 {
		return fmt.Errorf("config.quota.min_mission_hours cannot be negative")
	}
	if c.Retry.ScanSeconds <= 0 {
		return fmt.Errorf("config.retry.scan_seconds must be positive")
	}
	if c.Retry.IntervalMinutes <= 0 {
		return fmt.Errorf("config.retry.interval_minutes must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config.retry.max_attempts must be positive")
	}
	if c.Mail.Enabled {
		if c.Mail.Host == "" {
			return fmt.Errorf("config.mail.host is required when mail is enabled")
		}
		if c.Mail.Port <= 0 {
			return fmt.Errorf("config.mail.port must be positive when mail is enabled")
		}
		if c.Mail.From == "" {
			return fmt.Errorf("config.mail.from is required when mail is enabled")
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds cannot be negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "homecrew.yml")
}

// Load reads and validates config from the workspace, falling back to
// defaults when the file is absent.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `quota:
  daily_cap: 3
  min_mission_hours: 1

retry:
  scan_seconds: 60
  interval_minutes: 10
  max_attempts: 20

mail:
  enabled: false
  host: localhost
  port: 25
  from: no-reply@homecrew.local
  username: ""
  password: ""

webhooks: []
`
