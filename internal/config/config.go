// Package config provides YAML-based configuration loading for zappi.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level process configuration, loaded from zappi.yaml.
type Config struct {
	DataDir           string             `yaml:"data_dir"`
	EstablishmentsDir string             `yaml:"establishments_dir"`
	Database          DatabaseConfig     `yaml:"database"`
	Conversation      ConversationConfig `yaml:"conversation"`
	Supervisor        SupervisorConfig   `yaml:"supervisor"`
	Dashboard         DashboardConfig    `yaml:"dashboard"`
	Housekeeping      HousekeepingConfig `yaml:"housekeeping"`
}

// DatabaseConfig selects and addresses the durable store shared by all tenants.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ConversationConfig tunes message handling.
type ConversationConfig struct {
	CooldownSec    int `yaml:"cooldown_sec"`
	RetryAttempts  int `yaml:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
}

// SupervisorConfig controls agent recreation after credentials are invalidated.
type SupervisorConfig struct {
	RestartDelaySec int `yaml:"restart_delay_sec"`
	MaxRestarts     int `yaml:"max_restarts"`
}

// DashboardConfig controls the read-only status page.
type DashboardConfig struct {
	Enabled *bool `yaml:"enabled"`
	Port    int   `yaml:"port"`
}

// HousekeepingConfig schedules background cleanup.
type HousekeepingConfig struct {
	CooldownSweepCron *string `yaml:"cooldown_sweep_cron"`
}

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Defaults applied when the file leaves a field unset.
const (
	DefaultCooldown      = 5 * time.Minute
	DefaultSweepCron     = "*/30 * * * *"
	DefaultDashboardPort = 3000
)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values. RENDER_DISK_PATH and
// PORT take precedence over the file so the same config works on hosted disks.
func (c *Config) applyDefaults() {
	if disk := os.Getenv("RENDER_DISK_PATH"); disk != "" {
		c.DataDir = disk
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.EstablishmentsDir == "" {
		c.EstablishmentsDir = filepath.Join(c.DataDir, "establishments")
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "zappi.db")
	}
	if c.Database.Driver == DriverMySQL {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "zappi"
		}
	}

	if c.Conversation.CooldownSec == 0 {
		c.Conversation.CooldownSec = int(DefaultCooldown / time.Second)
	}
	if c.Conversation.RetryAttempts == 0 {
		c.Conversation.RetryAttempts = 3
	}
	if c.Conversation.RetryBackoffMs == 0 {
		c.Conversation.RetryBackoffMs = 500
	}

	if c.Supervisor.RestartDelaySec == 0 {
		c.Supervisor.RestartDelaySec = 5
	}
	if c.Supervisor.MaxRestarts == 0 {
		c.Supervisor.MaxRestarts = 5
	}

	if c.Dashboard.Enabled == nil {
		enabled := true
		c.Dashboard.Enabled = &enabled
	}
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Dashboard.Port)
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = DefaultDashboardPort
	}

	if c.Housekeeping.CooldownSweepCron == nil {
		spec := DefaultSweepCron
		c.Housekeeping.CooldownSweepCron = &spec
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (use sqlite or mysql)", c.Database.Driver))
	}
	if c.Database.Driver == DriverMySQL && c.Database.Port < 0 {
		errs = append(errs, "database.port must be positive")
	}
	if c.Conversation.CooldownSec < 0 {
		errs = append(errs, "conversation.cooldown_sec must not be negative")
	}
	if c.Conversation.RetryAttempts < 0 {
		errs = append(errs, "conversation.retry_attempts must not be negative")
	}
	if c.Conversation.RetryBackoffMs < 0 {
		errs = append(errs, "conversation.retry_backoff_ms must not be negative")
	}
	if c.Supervisor.MaxRestarts < 0 {
		errs = append(errs, "supervisor.max_restarts must not be negative")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d is out of range", c.Dashboard.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Cooldown returns the post-session suppression window.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Conversation.CooldownSec) * time.Second
}

// RetryBackoff returns the delay between attempts of a failed message step.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Conversation.RetryBackoffMs) * time.Millisecond
}

// RestartDelay returns the pause before an agent is recreated.
func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Supervisor.RestartDelaySec) * time.Second
}

// DashboardEnabled reports whether the status page should be served.
func (c *Config) DashboardEnabled() bool {
	return c.Dashboard.Enabled != nil && *c.Dashboard.Enabled
}

// SweepCron returns the cooldown sweep schedule, empty when disabled.
func (c *Config) SweepCron() string {
	if c.Housekeeping.CooldownSweepCron == nil {
		return ""
	}
	return strings.TrimSpace(*c.Housekeeping.CooldownSweepCron)
}
