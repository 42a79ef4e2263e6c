package config

import "github.com/caarlos0/env/v11"

// JobsConfig holds robfig/cron specs.
type JobsConfig struct {
	SweepSpec       string `env:"JOBS_SWEEP_SPEC" envDefault:"@every 5m"`
	DepositPollSpec string `env:"JOBS_DEPOSIT_POLL_SPEC" envDefault:"@every 30s"`
	CheckpointSpec  string `env:"JOBS_CHECKPOINT_SPEC" envDefault:"@every 1m"`
}

func LoadJobs() (JobsConfig, error) {
	var cfg JobsConfig
	err := env.Parse(&cfg)
	return cfg, err
}
