package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for consistency. It returns the first
// problem found, prefixed with the offending section.
func Validate(cfg *Config) error {
	if cfg.Assistant.APIKey == "" {
		return fmt.Errorf("assistant: api_key is required (set OPENAI_API_KEY)")
	}
	if cfg.Assistant.AssistantID == "" {
		return fmt.Errorf("assistant: assistant_id is required (set OPENAI_ASSISTANT_ID)")
	}
	if cfg.Assistant.PollInterval <= 0 {
		return fmt.Errorf("assistant: poll_interval must be positive")
	}
	if cfg.Assistant.RunTimeout <= cfg.Assistant.PollInterval {
		return fmt.Errorf("assistant: run_timeout must exceed poll_interval")
	}

	if cfg.Database.URL == "" {
		return fmt.Errorf("database: url is required")
	}
	if !strings.HasPrefix(cfg.Database.URL, "sqlite:") &&
		!strings.HasPrefix(cfg.Database.URL, "postgres://") &&
		!strings.HasPrefix(cfg.Database.URL, "postgresql://") {
		return fmt.Errorf("database: unsupported url scheme in %q", cfg.Database.URL)
	}

	for i, ch := range cfg.Channels {
		if err := validateChannel(ch); err != nil {
			return fmt.Errorf("channels[%d]: %w", i, err)
		}
	}

	if cfg.Web.RateLimitPerMin < 0 || cfg.Web.Burst < 0 {
		return fmt.Errorf("web: rate limit settings must not be negative")
	}

	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logger: unknown level %q", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logger: unknown format %q", cfg.Logger.Format)
	}

	if cfg.Tracer.Enabled {
		switch cfg.Tracer.Exporter {
		case "stdout", "noop", "":
		default:
			return fmt.Errorf("tracer: unsupported exporter %q", cfg.Tracer.Exporter)
		}
	}

	if cfg.Sweep.Enabled {
		if _, err := cron.ParseStandard(cfg.Sweep.Schedule); err != nil {
			return fmt.Errorf("refresh_sweep: bad schedule %q: %w", cfg.Sweep.Schedule, err)
		}
		if cfg.Sweep.Margin <= 0 {
			cfg.Sweep.Margin = 15 * time.Minute
		}
	}

	return nil
}

func validateChannel(ch ChannelConfig) error {
	switch ch.Type {
	case "teams":
		if ch.Teams == nil {
			return fmt.Errorf("teams config block is required")
		}
		if ch.Teams.AppID == "" || ch.Teams.AppSecret == "" {
			return fmt.Errorf("teams: app_id and app_secret are required")
		}
	case "slack":
		if ch.Slack == nil {
			return fmt.Errorf("slack config block is required")
		}
		if ch.Slack.BotToken == "" || ch.Slack.AppToken == "" {
			return fmt.Errorf("slack: bot_token and app_token are required")
		}
	default:
		return fmt.Errorf("unknown channel type %q", ch.Type)
	}
	return nil
}
