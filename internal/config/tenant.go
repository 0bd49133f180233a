package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TenantFile is the per-establishment transport config file name.
const TenantFile = "tenant.yaml"

// Supported chat platforms.
const (
	PlatformSlack   = "slack"
	PlatformDiscord = "discord"
	PlatformConsole = "console"
)

// TenantConfig is one establishment's tenant.yaml.
type TenantConfig struct {
	DisplayName string        `yaml:"display_name"`
	Platform    string        `yaml:"platform"`
	Slack       SlackConfig   `yaml:"slack"`
	Discord     DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds Discord Gateway credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// LoadTenant reads and validates a tenant.yaml file.
func LoadTenant(path string) (*TenantConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return ParseTenant(data)
}

// ParseTenant unmarshals tenant YAML, expanding ${VAR} references in
// credentials so tokens can stay out of the file.
func ParseTenant(data []byte) (*TenantConfig, error) {
	var tc TenantConfig
	if err := yaml.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("config: parse tenant: %w", err)
	}
	tc.Platform = strings.ToLower(strings.TrimSpace(tc.Platform))
	tc.Slack.AppToken = os.ExpandEnv(tc.Slack.AppToken)
	tc.Slack.BotToken = os.ExpandEnv(tc.Slack.BotToken)
	tc.Discord.BotToken = os.ExpandEnv(tc.Discord.BotToken)
	if err := tc.validate(); err != nil {
		return nil, err
	}
	return &tc, nil
}

func (tc *TenantConfig) validate() error {
	var errs []string
	switch tc.Platform {
	case "":
		errs = append(errs, "platform is required")
	case PlatformSlack:
		if tc.Slack.AppToken == "" {
			errs = append(errs, "slack.app_token is required")
		}
		if tc.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required")
		}
	case PlatformDiscord:
		if tc.Discord.BotToken == "" {
			errs = append(errs, "discord.bot_token is required")
		}
	case PlatformConsole:
	default:
		errs = append(errs, fmt.Sprintf("platform %q is not supported", tc.Platform))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: tenant validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
