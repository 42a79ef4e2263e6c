package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type PurchaseConfig struct {
	TreasuryAddress string          `env:"TREASURY_ADDRESS"`
	TreasuryReserve decimal.Decimal `env:"TREASURY_RESERVE_FACTOR" envDefault:"1.1"`

	Cooldown     time.Duration `env:"PURCHASE_COOLDOWN" envDefault:"3s"`
	CompletedTTL time.Duration `env:"PURCHASE_COMPLETED_TTL" envDefault:"1h"`
	QuoteTTL     time.Duration `env:"PURCHASE_QUOTE_TTL" envDefault:"10m"`

	MinQuantity int64 `env:"PURCHASE_MIN_QUANTITY" envDefault:"50"`
	MaxQuantity int64 `env:"PURCHASE_MAX_QUANTITY" envDefault:"10000"`
}

func LoadPurchase() (PurchaseConfig, error) {
	var cfg PurchaseConfig
	err := env.Parse(&cfg)
	return cfg, err
}
