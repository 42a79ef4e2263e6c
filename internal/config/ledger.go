package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	SinkFile     = "file"
	SinkPostgres = "postgres"
)

type LedgerConfig struct {
	Sink        string `env:"LEDGER_SINK" envDefault:"file"`
	DataDir     string `env:"LEDGER_DATA_DIR" envDefault:"data"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	FlushDelay      time.Duration `env:"LEDGER_FLUSH_DELAY" envDefault:"3s"`
	BalanceCacheTTL time.Duration `env:"LEDGER_BALANCE_CACHE_TTL" envDefault:"5s"`

	EarningsLogCap     int `env:"LEDGER_EARNINGS_LOG_CAP" envDefault:"10000"`
	TransactionsLogCap int `env:"LEDGER_TRANSACTIONS_LOG_CAP" envDefault:"50000"`
}

func LoadLedger() (LedgerConfig, error) {
	var cfg LedgerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.Sink = strings.ToLower(strings.TrimSpace(cfg.Sink))
	switch cfg.Sink {
	case SinkFile:
		if cfg.DataDir == "" {
			return cfg, errors.New("LEDGER_DATA_DIR is required for the file sink")
		}
	case SinkPostgres:
		if cfg.PostgresDSN == "" {
			return cfg, errors.New("POSTGRES_DSN is required for the postgres sink")
		}
	default:
		return cfg, errors.New("LEDGER_SINK must be file or postgres")
	}
	return cfg, nil
}
