package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stars-engine/internal/chain"
	"stars-engine/internal/commission"
	"stars-engine/internal/config"
	"stars-engine/internal/deposit"
	"stars-engine/internal/gateway"
	"stars-engine/internal/httpclient"
	"stars-engine/internal/issuance"
	"stars-engine/internal/jobs"
	"stars-engine/internal/ledger"
	"stars-engine/internal/logging"
	"stars-engine/internal/oracle"
	"stars-engine/internal/purchase"
	"stars-engine/internal/store"
	httptransport "stars-engine/internal/transport/http"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("read .env failed")
	}
	cfg, err := config.LoadApp()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}
	if err := logging.Init(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("init logging failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = run(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("stars-engine stopped")
	}
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

func openSink(ctx context.Context, cfg config.LedgerConfig) (store.Sink, error) {
	if cfg.Sink == config.SinkPostgres {
		return store.NewPostgresSink(ctx, cfg.PostgresDSN)
	}
	return store.NewFileSink(cfg.DataDir)
}

func run(ctx context.Context, cfg config.AppConfig) error {
	sink, err := openSink(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	st, err := store.New(ctx, sink, store.Options{
		FlushDelay:      cfg.Ledger.FlushDelay,
		BalanceCacheTTL: cfg.Ledger.BalanceCacheTTL,
		EarningsCap:     cfg.Ledger.EarningsLogCap,
		TransactionsCap: cfg.Ledger.TransactionsLogCap,
	})
	if err != nil {
		_ = sink.Close()
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("final ledger flush failed")
		}
	}()
	led := ledger.New(st)

	chainHTTP := httpclient.New("toncenter", httpclient.Options{Timeout: cfg.Chain.HTTPTimeout, RetryMax: 2})
	tonCenter := chain.NewTonCenter(chainHTTP, cfg.Chain.TonCenterURL, cfg.Chain.TonCenterAPIKey)
	treasury := chain.FallbackBalance{
		Primary:  tonCenter,
		Fallback: chain.NewTonAPI(httpclient.New("tonapi", httpclient.Options{Timeout: cfg.Chain.HTTPTimeout, RetryMax: 1}), cfg.Chain.TonAPIURL),
	}
	broadcaster := chain.NewBroadcaster(
		httpclient.New("broadcaster", httpclient.Options{Timeout: cfg.Chain.BroadcastTimeout}),
		cfg.Chain.BroadcasterURL, cfg.Chain.BroadcasterKey, cfg.Chain.BroadcastTimeout,
	)
	issuer := issuance.New(
		httpclient.New("issuance", httpclient.Options{Timeout: cfg.Issuance.Timeout, RetryMax: cfg.Issuance.Retries}),
		cfg.Issuance.BaseURL, cfg.Issuance.APIKey,
	)
	prices := oracle.New(issuer, httpclient.New("coingecko", httpclient.Options{Timeout: 10 * time.Second, RetryMax: 1}), oracle.Options{
		RateURL:           cfg.Oracle.RateURL,
		PriceTTL:          cfg.Oracle.PriceTTL,
		RateTTL:           cfg.Oracle.RateTTL,
		FallbackUnitPrice: cfg.Oracle.FallbackUnitPrice,
		FallbackRates: map[string]decimal.Decimal{
			"usd": cfg.Oracle.FallbackRate,
			"rub": cfg.Oracle.FallbackRUBRate,
		},
	})

	engine := commission.New(st, commission.Options{
		MinWalletWithdrawal:  cfg.Commission.MinWalletWithdrawal,
		MinBalanceWithdrawal: cfg.Commission.MinBalanceWithdrawal,
	})
	if cfg.Purchase.TreasuryAddress == "" {
		log.Warn().Msg("TREASURY_ADDRESS is empty; deposits and purchases will fail")
	}
	reconciler := deposit.NewReconciler(deposit.NewCodes(cfg.Deposit.PaymentTimeout, time.Now), tonCenter, led, deposit.Options{
		Address:      cfg.Purchase.TreasuryAddress,
		MinDeposit:   cfg.Deposit.MinDeposit,
		HistoryLimit: cfg.Deposit.HistoryLimit,
	})
	saga := purchase.New(purchase.Deps{
		Ledger:      led,
		Prices:      prices,
		Issuer:      issuer,
		Treasury:    treasury,
		Sender:      broadcaster,
		Commissions: engine,
	}, purchase.Options{
		TreasuryAddress: cfg.Purchase.TreasuryAddress,
		TreasuryReserve: cfg.Purchase.TreasuryReserve,
		Cooldown:        cfg.Purchase.Cooldown,
		CompletedTTL:    cfg.Purchase.CompletedTTL,
		QuoteTTL:        cfg.Purchase.QuoteTTL,
		MinQuantity:     cfg.Purchase.MinQuantity,
		MaxQuantity:     cfg.Purchase.MaxQuantity,
	})

	var gws []gateway.Gateway
	gwOpts := httpclient.Options{Timeout: cfg.Gateway.HTTPTimeout, RetryMax: 1}
	if cfg.Gateway.RocketToken != "" {
		gws = append(gws, gateway.NewRocket(httpclient.New(gateway.FamilyRocket, gwOpts), cfg.Gateway.RocketURL, cfg.Gateway.RocketToken, prices))
	}
	if cfg.Gateway.CryptoPayToken != "" {
		gws = append(gws, gateway.NewCryptoPay(httpclient.New(gateway.FamilyCryptoPay, gwOpts), cfg.Gateway.CryptoPayURL, cfg.Gateway.CryptoPayToken, prices))
	}
	invoices := gateway.NewService(led, gateway.Options{PollAttempts: cfg.Gateway.PollAttempts, PollInterval: cfg.Gateway.PollInterval}, gws...)
	defer invoices.Close()
	log.Info().Strs("families", invoices.Families()).Msg("payment gateways configured")

	scheduler := jobs.New()
	if err := jobs.Register(scheduler, cfg.Jobs, jobs.Targets{
		Deposits:  reconciler,
		Purchases: saga,
		Invoices:  invoices,
		Store:     st,
	}); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	r := httptransport.NewRouter(httptransport.Services{
		Store:      st,
		Ledger:     led,
		Deposits:   reconciler,
		Gateways:   invoices,
		Purchases:  saga,
		Commission: engine,
		Prices:     prices,
	}, cfg.Server, cfg.Bot)
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		httptransport.LogRoutes(r)
	}

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
