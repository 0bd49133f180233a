package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
data_dir: /srv/zappi
establishments_dir: /srv/zappi/lojas

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  user: bot
  password: secret
  name: zappi_prod

conversation:
  cooldown_sec: 120
  retry_attempts: 5
  retry_backoff_ms: 250

supervisor:
  restart_delay_sec: 10
  max_restarts: 2

dashboard:
  enabled: false
  port: 8081

housekeeping:
  cooldown_sweep_cron: "0 * * * *"
`

// clearEnv neutralizes the hosting overrides so tests see only the YAML.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RENDER_DISK_PATH", "")
	t.Setenv("PORT", "")
}

func TestParse_FullConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != "/srv/zappi" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/srv/zappi")
	}
	if cfg.EstablishmentsDir != "/srv/zappi/lojas" {
		t.Errorf("EstablishmentsDir = %q, want %q", cfg.EstablishmentsDir, "/srv/zappi/lojas")
	}
	if cfg.Database.Driver != DriverMySQL {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverMySQL)
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want 3307", cfg.Database.Port)
	}
	if cfg.Database.User != "bot" || cfg.Database.Password != "secret" {
		t.Errorf("Database credentials = %q/%q", cfg.Database.User, cfg.Database.Password)
	}
	if cfg.Database.Name != "zappi_prod" {
		t.Errorf("Database.Name = %q, want %q", cfg.Database.Name, "zappi_prod")
	}
	if cfg.Cooldown() != 2*time.Minute {
		t.Errorf("Cooldown() = %v, want 2m", cfg.Cooldown())
	}
	if cfg.Conversation.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d, want 5", cfg.Conversation.RetryAttempts)
	}
	if cfg.RetryBackoff() != 250*time.Millisecond {
		t.Errorf("RetryBackoff() = %v, want 250ms", cfg.RetryBackoff())
	}
	if cfg.RestartDelay() != 10*time.Second {
		t.Errorf("RestartDelay() = %v, want 10s", cfg.RestartDelay())
	}
	if cfg.Supervisor.MaxRestarts != 2 {
		t.Errorf("MaxRestarts = %d, want 2", cfg.Supervisor.MaxRestarts)
	}
	if cfg.DashboardEnabled() {
		t.Error("DashboardEnabled() = true, want false")
	}
	if cfg.Dashboard.Port != 8081 {
		t.Errorf("Dashboard.Port = %d, want 8081", cfg.Dashboard.Port)
	}
	if cfg.SweepCron() != "0 * * * *" {
		t.Errorf("SweepCron() = %q, want %q", cfg.SweepCron(), "0 * * * *")
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != "." {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, ".")
	}
	if cfg.EstablishmentsDir != filepath.Join(".", "establishments") {
		t.Errorf("EstablishmentsDir = %q", cfg.EstablishmentsDir)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Database.Path != filepath.Join(".", "zappi.db") {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Cooldown() != DefaultCooldown {
		t.Errorf("Cooldown() = %v, want %v", cfg.Cooldown(), DefaultCooldown)
	}
	if cfg.Conversation.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.Conversation.RetryAttempts)
	}
	if !cfg.DashboardEnabled() {
		t.Error("DashboardEnabled() = false, want true")
	}
	if cfg.Dashboard.Port != DefaultDashboardPort {
		t.Errorf("Dashboard.Port = %d, want %d", cfg.Dashboard.Port, DefaultDashboardPort)
	}
	if cfg.SweepCron() != DefaultSweepCron {
		t.Errorf("SweepCron() = %q, want %q", cfg.SweepCron(), DefaultSweepCron)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1", cfg.Database.Host)
	}
	if cfg.Database.Port != 3306 {
		t.Errorf("Port = %d, want 3306", cfg.Database.Port)
	}
	if cfg.Database.Name != "zappi" {
		t.Errorf("Name = %q, want zappi", cfg.Database.Name)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Path = %q, want empty for mysql", cfg.Database.Path)
	}
}

func TestParse_EmptySweepCronDisables(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("housekeeping:\n  cooldown_sweep_cron: \"\"\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SweepCron() != "" {
		t.Errorf("SweepCron() = %q, want empty", cfg.SweepCron())
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("RENDER_DISK_PATH", "/var/data")
	t.Setenv("PORT", "9090")

	cfg, err := Parse([]byte("data_dir: ./ignored\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataDir != "/var/data" {
		t.Errorf("DataDir = %q, want /var/data", cfg.DataDir)
	}
	if cfg.Database.Path != filepath.Join("/var/data", "zappi.db") {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Dashboard.Port != 9090 {
		t.Errorf("Dashboard.Port = %d, want 9090", cfg.Dashboard.Port)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad driver", "database:\n  driver: oracle\n", "database.driver"},
		{"negative cooldown", "conversation:\n  cooldown_sec: -1\n", "cooldown_sec"},
		{"negative retries", "conversation:\n  retry_attempts: -2\n", "retry_attempts"},
		{"negative restarts", "supervisor:\n  max_restarts: -1\n", "max_restarts"},
		{"port out of range", "dashboard:\n  port: 70000\n", "dashboard.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "validation failed") {
				t.Errorf("error = %q, want 'validation failed'", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to mention %q", err, tt.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want 'config: parse'", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "zappi.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Name != "zappi_prod" {
		t.Errorf("Database.Name = %q", cfg.Database.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/zappi.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want 'config: read'", err)
	}
}

// ---------------------------------------------------------------------------
// Tenant config
// ---------------------------------------------------------------------------

func TestParseTenant_Slack(t *testing.T) {
	t.Setenv("PIZZARIA_BOT_TOKEN", "xoxb-from-env")
	tc, err := ParseTenant([]byte(`
display_name: Pizzaria do Zé
platform: Slack
slack:
  app_token: xapp-123
  bot_token: ${PIZZARIA_BOT_TOKEN}
`))
	if err != nil {
		t.Fatalf("ParseTenant: %v", err)
	}
	if tc.Platform != PlatformSlack {
		t.Errorf("Platform = %q, want %q", tc.Platform, PlatformSlack)
	}
	if tc.DisplayName != "Pizzaria do Zé" {
		t.Errorf("DisplayName = %q", tc.DisplayName)
	}
	if tc.Slack.BotToken != "xoxb-from-env" {
		t.Errorf("BotToken = %q, want expanded env value", tc.Slack.BotToken)
	}
}

func TestParseTenant_Console(t *testing.T) {
	tc, err := ParseTenant([]byte("platform: console\n"))
	if err != nil {
		t.Fatalf("ParseTenant: %v", err)
	}
	if tc.Platform != PlatformConsole {
		t.Errorf("Platform = %q", tc.Platform)
	}
}

func TestParseTenant_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing platform", "display_name: x\n", "platform is required"},
		{"unknown platform", "platform: telegram\n", "not supported"},
		{"slack without tokens", "platform: slack\n", "slack.app_token is required; slack.bot_token is required"},
		{"discord without token", "platform: discord\n", "discord.bot_token is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTenant([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadTenant_MissingFile(t *testing.T) {
	_, err := LoadTenant(filepath.Join(t.TempDir(), TenantFile))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want not-exist cause", err)
	}
}
