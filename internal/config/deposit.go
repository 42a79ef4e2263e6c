package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type DepositConfig struct {
	MinDeposit     decimal.Decimal `env:"DEPOSIT_MIN_AMOUNT" envDefault:"0.1"`
	PaymentTimeout time.Duration   `env:"DEPOSIT_PAYMENT_TIMEOUT" envDefault:"30m"`
	HistoryLimit   int             `env:"DEPOSIT_HISTORY_LIMIT" envDefault:"30"`
}

func LoadDeposit() (DepositConfig, error) {
	var cfg DepositConfig
	err := env.Parse(&cfg)
	return cfg, err
}
