package config

import "github.com/caarlos0/env/v11"

// BotConfig guards the API consumed by the chat frontend.
type BotConfig struct {
	ServiceKey string `env:"BOT_SERVICE_KEY"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
