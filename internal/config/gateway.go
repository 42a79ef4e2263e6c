package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type GatewayConfig struct {
	RocketURL   string `env:"ROCKET_PAY_URL" envDefault:"https://pay.xrocket.tg"`
	RocketToken string `env:"ROCKET_PAY_TOKEN"`

	CryptoPayURL   string `env:"CRYPTOPAY_URL" envDefault:"https://pay.crypt.bot/api"`
	CryptoPayToken string `env:"CRYPTOPAY_TOKEN"`

	PollAttempts int           `env:"GATEWAY_POLL_ATTEMPTS" envDefault:"60"`
	PollInterval time.Duration `env:"GATEWAY_POLL_INTERVAL" envDefault:"10s"`
	HTTPTimeout  time.Duration `env:"GATEWAY_HTTP_TIMEOUT" envDefault:"10s"`
}

func LoadGateway() (GatewayConfig, error) {
	var cfg GatewayConfig
	err := env.Parse(&cfg)
	return cfg, err
}
