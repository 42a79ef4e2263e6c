package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type CommissionConfig struct {
	MinWalletWithdrawal  decimal.Decimal `env:"PARTNER_MIN_WALLET_WITHDRAWAL" envDefault:"0.5"`
	MinBalanceWithdrawal decimal.Decimal `env:"PARTNER_MIN_BALANCE_WITHDRAWAL" envDefault:"0.1"`
}

func LoadCommission() (CommissionConfig, error) {
	var cfg CommissionConfig
	err := env.Parse(&cfg)
	return cfg, err
}
