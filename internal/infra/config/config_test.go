package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validCfg returns a minimal configuration that passes Validate.
func validCfg() *Config {
	cfg := Defaults()
	cfg.Assistant.APIKey = "sk-test"
	cfg.Assistant.AssistantID = "asst_123"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "xuxu", cfg.Bot.Name)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Assistant.BaseURL)
	assert.Equal(t, time.Second, cfg.Assistant.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Assistant.RunTimeout)
	assert.Equal(t, "sqlite:./bot_memory.db", cfg.Database.URL)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Sweep.Enabled)
	assert.Equal(t, "*/10 * * * *", cfg.Sweep.Schedule)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
assistant:
  api_key: "sk-yaml"
  assistant_id: "asst_yaml"
  poll_interval: 2s
  run_timeout: 90s
database:
  url: "postgres://bot:pw@localhost/bot"
channels:
  - type: teams
    teams:
      app_id: "app"
      app_secret: "secret"
      tenant_id: "tenant-a"
      mention_only: true
logger:
  level: "debug"
refresh_sweep:
  enabled: true
  schedule: "*/5 * * * *"
  margin: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-yaml", cfg.Assistant.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Assistant.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.Assistant.RunTimeout)
	assert.Equal(t, "postgres://bot:pw@localhost/bot", cfg.Database.URL)

	require.Len(t, cfg.Channels, 1)
	require.NotNil(t, cfg.Channels[0].Teams)
	assert.True(t, cfg.Channels[0].Teams.MentionOnly)
	assert.Equal(t, "tenant-a", cfg.Channels[0].Teams.TenantID)

	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Sweep.Margin)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_ASSISTANT_ID", "asst_env")
	t.Setenv("DATABASE_URL", "sqlite:/tmp/env.db")
	t.Setenv("GOOGLE_CLIENT_ID", "g-env")
	t.Setenv("OAUTH_REDIRECT_URI", "https://bot.example.com/auth/callback")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "sk-env", cfg.Assistant.APIKey)
	assert.Equal(t, "asst_env", cfg.Assistant.AssistantID)
	assert.Equal(t, "sqlite:/tmp/env.db", cfg.Database.URL)
	assert.Equal(t, "g-env", cfg.OAuth.Google.ClientID)
	// One redirect URI serves both providers.
	assert.Equal(t, "https://bot.example.com/auth/callback", cfg.OAuth.Google.RedirectURI)
	assert.Equal(t, "https://bot.example.com/auth/callback", cfg.OAuth.Microsoft.RedirectURI)
}

func TestEnvProvisionsTeamsChannel(t *testing.T) {
	t.Setenv("MICROSOFT_APP_ID", "app-env")
	t.Setenv("MICROSOFT_APP_PASSWORD", "pw-env")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, "teams", cfg.Channels[0].Type)
	assert.Equal(t, "app-env", cfg.Channels[0].Teams.AppID)

	// Idempotent: a second pass must not duplicate the channel.
	ApplyEnvOverrides(cfg)
	assert.Len(t, cfg.Channels, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing api key", func(c *Config) { c.Assistant.APIKey = "" }, "api_key"},
		{"missing assistant id", func(c *Config) { c.Assistant.AssistantID = "" }, "assistant_id"},
		{"timeout below poll", func(c *Config) {
			c.Assistant.RunTimeout = c.Assistant.PollInterval / 2
		}, "run_timeout"},
		{"bad database scheme", func(c *Config) { c.Database.URL = "mysql://x" }, "unsupported url scheme"},
		{"teams without secret", func(c *Config) {
			c.Channels = []ChannelConfig{{Type: "teams", Teams: &TeamsChannelConfig{AppID: "a"}}}
		}, "app_secret"},
		{"unknown channel", func(c *Config) {
			c.Channels = []ChannelConfig{{Type: "telegram"}}
		}, "unknown channel type"},
		{"bad logger level", func(c *Config) { c.Logger.Level = "loud" }, "unknown level"},
		{"bad sweep schedule", func(c *Config) {
			c.Sweep.Enabled = true
			c.Sweep.Schedule = "every 10 minutes"
		}, "bad schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validCfg()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
