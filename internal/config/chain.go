package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ChainConfig struct {
	TonCenterURL    string `env:"TONCENTER_URL" envDefault:"https://toncenter.com/api/v2"`
	TonCenterAPIKey string `env:"TONCENTER_API_KEY"`
	TonAPIURL       string `env:"TONAPI_URL" envDefault:"https://tonapi.io/v2"`

	BroadcasterURL   string        `env:"BROADCASTER_URL" envDefault:"http://localhost:8091"`
	BroadcasterKey   string        `env:"BROADCASTER_API_KEY"`
	BroadcastTimeout time.Duration `env:"BROADCAST_TIMEOUT" envDefault:"30s"`

	HTTPTimeout time.Duration `env:"CHAIN_HTTP_TIMEOUT" envDefault:"15s"`
}

func LoadChain() (ChainConfig, error) {
	var cfg ChainConfig
	err := env.Parse(&cfg)
	return cfg, err
}
