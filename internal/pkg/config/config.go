package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/gitwatch/gitwatch/internal/pkg/env"
)

// Config is the process-scoped service configuration, read once at start.
// The webhook secret and API token are looked up per request so a missing
// one fails that request, not the process.
type Config struct {
	AppHost           string `validate:"required"`
	AppPort           string `validate:"required,numeric"`
	DiscordWebhookURL string `validate:"omitempty,url"`
	GeminiAPIKey      string
	GeminiModel       string
	QueueWorkers      int `validate:"gte=1,lte=64"`
}

// Load reads configuration from the environment and validates the parts
// that must be well-formed for the process to run at all.
func Load() (*Config, error) {
	cfg := &Config{
		AppHost:           env.GetEnv("APP_HOST", "0.0.0.0"),
		AppPort:           env.GetEnv("APP_PORT", "3000"),
		DiscordWebhookURL: env.GetEnv("DISCORD_WEBHOOK_URL", ""),
		GeminiAPIKey:      env.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:       env.GetEnv("GEMINI_MODEL", ""),
		QueueWorkers:      envInt("QUEUE_WORKERS", 3),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envInt(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return def
	}
	return v
}
