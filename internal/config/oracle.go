package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type OracleConfig struct {
	RateURL  string        `env:"ORACLE_RATE_URL" envDefault:"https://api.coingecko.com/api/v3/simple/price"`
	RateTTL  time.Duration `env:"ORACLE_RATE_TTL" envDefault:"5m"`
	PriceTTL time.Duration `env:"ORACLE_PRICE_TTL" envDefault:"1m"`

	FallbackUnitPrice decimal.Decimal `env:"ORACLE_FALLBACK_UNIT_PRICE" envDefault:"0.0046"`
	FallbackRate      decimal.Decimal `env:"ORACLE_FALLBACK_USD_RATE" envDefault:"6.5"`
	FallbackRUBRate   decimal.Decimal `env:"ORACLE_FALLBACK_RUB_RATE" envDefault:"650"`
}

func LoadOracle() (OracleConfig, error) {
	var cfg OracleConfig
	err := env.Parse(&cfg)
	return cfg, err
}
