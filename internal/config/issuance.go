package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type IssuanceConfig struct {
	BaseURL string        `env:"ISSUANCE_API_URL" envDefault:"http://localhost:8092"`
	APIKey  string        `env:"ISSUANCE_API_KEY"`
	Timeout time.Duration `env:"ISSUANCE_TIMEOUT" envDefault:"20s"`
	Retries int           `env:"ISSUANCE_RETRIES" envDefault:"3"`
}

func LoadIssuance() (IssuanceConfig, error) {
	var cfg IssuanceConfig
	err := env.Parse(&cfg)
	return cfg, err
}
