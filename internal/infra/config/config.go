package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Assistant AssistantConfig `yaml:"assistant"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Channels  []ChannelConfig `yaml:"channels"`
	Web       WebConfig       `yaml:"web"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	Security  SecurityConfig  `yaml:"security"`
	Sweep     SweepConfig     `yaml:"refresh_sweep"`
}

// BotConfig holds identity settings.
type BotConfig struct {
	Name string `yaml:"name"`
}

// AssistantConfig holds remote assistant service settings.
type AssistantConfig struct {
	APIKey      string `yaml:"api_key"`
	AssistantID string `yaml:"assistant_id"`
	BaseURL     string `yaml:"base_url"`

	// Run orchestration tuning.
	PollInterval time.Duration `yaml:"poll_interval"`
	RunTimeout   time.Duration `yaml:"run_timeout"`

	// HTTP transport tuning.
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker on the assistant transport.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// DatabaseConfig holds record store settings. URL accepts
// "sqlite:<path>" or a postgres:// connection string.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// CacheConfig holds the optional redis thread-mapping cache settings.
// Empty RedisURL disables the cache (in-process map is used instead).
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// OAuthConfig holds per-provider OAuth client settings.
type OAuthConfig struct {
	Google    OAuthProviderConfig `yaml:"google"`
	Microsoft OAuthProviderConfig `yaml:"microsoft"`
}

// OAuthProviderConfig holds one provider's OAuth client registration.
type OAuthProviderConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	Scope        string `yaml:"scope,omitempty"`
}

// Configured reports whether the provider has a usable client registration.
func (c OAuthProviderConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// ChannelConfig holds settings for a single messaging channel.
type ChannelConfig struct {
	Type string `yaml:"type"`

	// Per-channel nested config (only one should be set, matching Type).
	Teams *TeamsChannelConfig `yaml:"teams,omitempty"`
	Slack *SlackChannelConfig `yaml:"slack,omitempty"`
}

// TeamsChannelConfig holds Microsoft Teams (Bot Framework) settings.
type TeamsChannelConfig struct {
	AppID       string `yaml:"app_id"`
	AppSecret   string `yaml:"app_secret"`
	WebhookAddr string `yaml:"webhook_addr,omitempty"`
	TenantID    string `yaml:"tenant_id,omitempty"`
	MentionOnly bool   `yaml:"mention_only,omitempty"`
}

// SlackChannelConfig holds Slack Socket Mode settings.
type SlackChannelConfig struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
}

// WebConfig holds webhook HTTP server hardening settings.
type WebConfig struct {
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	Burst           int      `yaml:"burst"`
	TrustedProxies  []string `yaml:"trusted_proxies,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds OpenTelemetry settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// SecurityConfig holds at-rest protection settings.
// An empty TokenPassphrase stores OAuth tokens in plaintext.
type SecurityConfig struct {
	TokenPassphrase string `yaml:"token_passphrase"`
}

// SweepConfig holds the background credential refresh sweep settings.
type SweepConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"` // cron expression
	Margin   time.Duration `yaml:"margin"`   // refresh tokens expiring within this window
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() *Config {
	return &Config{
		Bot: BotConfig{Name: "xuxu"},
		Assistant: AssistantConfig{
			BaseURL:      "https://api.openai.com/v1",
			PollInterval: time.Second,
			RunTimeout:   2 * time.Minute,
			ConnTimeout:  30 * time.Second,
			RespTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{URL: "sqlite:./bot_memory.db"},
		Cache:    CacheConfig{TTL: time.Hour},
		Web: WebConfig{
			RateLimitPerMin: 120,
			Burst:           30,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Sweep: SweepConfig{
			Enabled:  false,
			Schedule: "*/10 * * * *",
			Margin:   15 * time.Minute,
		},
	}
}

// Load reads a YAML config file and applies env var overrides.
// A missing file is not an error: env-only configuration is how the
// original deployment ran.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps environment variables to config fields. The
// variable names match the original deployment environment so an existing
// .env keeps working.
func ApplyEnvOverrides(cfg *Config) {
	setIfEnv(&cfg.Assistant.APIKey, "OPENAI_API_KEY")
	setIfEnv(&cfg.Assistant.AssistantID, "OPENAI_ASSISTANT_ID")
	setIfEnv(&cfg.Database.URL, "DATABASE_URL")
	setIfEnv(&cfg.Cache.RedisURL, "REDIS_URL")

	setIfEnv(&cfg.OAuth.Google.ClientID, "GOOGLE_CLIENT_ID")
	setIfEnv(&cfg.OAuth.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setIfEnv(&cfg.OAuth.Microsoft.ClientID, "MICROSOFT_CLIENT_ID")
	setIfEnv(&cfg.OAuth.Microsoft.ClientSecret, "MICROSOFT_CLIENT_SECRET")
	if v := os.Getenv("OAUTH_REDIRECT_URI"); v != "" {
		cfg.OAuth.Google.RedirectURI = v
		cfg.OAuth.Microsoft.RedirectURI = v
	}

	setIfEnv(&cfg.Security.TokenPassphrase, "XUXU_TOKEN_KEY")
	setIfEnv(&cfg.Logger.Level, "XUXU_LOGGER_LEVEL")
	setIfEnv(&cfg.Logger.Format, "XUXU_LOGGER_FORMAT")
	if v := os.Getenv("XUXU_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	setIfEnv(&cfg.Tracer.Exporter, "XUXU_TRACER_EXPORTER")

	// Teams credentials from env provision a channel even without a config
	// file, mirroring the original MICROSOFT_APP_ID / MICROSOFT_APP_PASSWORD
	// bootstrap.
	appID, appSecret := os.Getenv("MICROSOFT_APP_ID"), os.Getenv("MICROSOFT_APP_PASSWORD")
	if appID != "" && appSecret != "" && !hasChannel(cfg, "teams") {
		cfg.Channels = append(cfg.Channels, ChannelConfig{
			Type:  "teams",
			Teams: &TeamsChannelConfig{AppID: appID, AppSecret: appSecret},
		})
	}
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func hasChannel(cfg *Config, channelType string) bool {
	for _, c := range cfg.Channels {
		if c.Type == channelType {
			return true
		}
	}
	return false
}
