package config

type AppConfig struct {
	Server     ServerConfig
	Bot        BotConfig
	Log        LogConfig
	Ledger     LedgerConfig
	Purchase   PurchaseConfig
	Deposit    DepositConfig
	Commission CommissionConfig
	Chain      ChainConfig
	Issuance   IssuanceConfig
	Oracle     OracleConfig
	Gateway    GatewayConfig
	Jobs       JobsConfig
}

func LoadApp() (AppConfig, error) {
	var (
		cfg AppConfig
		err error
	)
	if cfg.Log, err = LoadLog(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Server, err = LoadServer(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Bot, err = LoadBot(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Ledger, err = LoadLedger(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Purchase, err = LoadPurchase(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Deposit, err = LoadDeposit(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Commission, err = LoadCommission(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Chain, err = LoadChain(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Issuance, err = LoadIssuance(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Oracle, err = LoadOracle(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Gateway, err = LoadGateway(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Jobs, err = LoadJobs(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
