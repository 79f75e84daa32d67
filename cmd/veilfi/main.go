package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"veilfi-wallet/pkg/config"
	"veilfi-wallet/pkg/deposit"
	"veilfi-wallet/pkg/httpapi"
	"veilfi-wallet/pkg/jupiter"
	"veilfi-wallet/pkg/keys"
	"veilfi-wallet/pkg/logging"
	"veilfi-wallet/pkg/notifications"
	"veilfi-wallet/pkg/observability"
	"veilfi-wallet/pkg/pumpfun"
	"veilfi-wallet/pkg/raydium"
	"veilfi-wallet/pkg/session"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/storage"
	"veilfi-wallet/pkg/storage/memory"
	"veilfi-wallet/pkg/storage/migrations"
	"veilfi-wallet/pkg/storage/postgres"
	"veilfi-wallet/pkg/swap"
	"veilfi-wallet/pkg/vault"
	"veilfi-wallet/pkg/wallet"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.Println("Starting Veilfi wallet backend...")

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Veilfi wallet backend stopped, goodbye!")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("veilfi")

	stores, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	sessionStore, err := openSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sessionStore.Close()

	box, err := vault.NewBox(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("session box: %w", err)
	}

	// Chain access
	node := sln.NewRPC(cfg.SolanaRpcURL)
	sender := sln.NewSender(node, cfg.PriorityFeeMicroLamports, logger)
	transfers := sln.NewTransfers(sender, logger)
	balances := sln.NewBalances(node, logger)
	logger.Printf("Using RPC endpoint: %s", cfg.SolanaRpcURL)

	telegram := notifications.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.EnableTelegram, logger)

	// Aggregators
	jup := jupiter.NewSwapService(jupiter.NewClient(jupiter.Options{
		BaseURLs: cfg.JupiterBaseURLs,
		PriceURL: cfg.JupiterPriceURL,
		APIKey:   cfg.JupiterAPIKey,
	}, logger), sender, balances, logger)
	pump := pumpfun.NewClient(pumpfun.Options{
		PriceURLs:        cfg.PumpAPIURLs,
		PortalURL:        cfg.PumpPortalURL,
		FallbackPriceSol: cfg.FallbackPriceSol,
		FallbackPriceUsd: cfg.FallbackPriceUsd,
	}, logger)
	router := swap.NewRouter(swap.RouterDeps{
		Jupiter:     jup,
		Raydium:     raydium.NewClient(cfg.RaydiumSwapHost, cfg.RaydiumAPIHost, logger),
		Pumpfun:     pump,
		Sender:      sender,
		Activities:  stores.Activities,
		Metrics:     metrics,
		SlippageBps: cfg.SlippageBps,
		Logger:      logger,
	})

	solPrice := sln.NewPriceService(cfg.CoinGeckoURL, logger)
	solPrice.Start(ctx)
	defer solPrice.Stop()

	deps := httpapi.Deps{
		Sessions: session.NewManager(sessionStore, box, cfg.SessionTTL, cfg.Production, metrics),
		Wallets: wallet.NewService(wallet.Deps{
			Users:      stores.Users,
			Activities: stores.Activities,
			Transfers:  transfers,
			Balances:   balances,
			MasterKey:  cfg.ServerMasterKey,
			Notifier:   telegram,
			Metrics:    metrics,
			Logger:     logger,
		}),
		Balances:       balances,
		Node:           node,
		Jupiter:        jup,
		Pumpfun:        pump,
		SolPrice:       solPrice,
		Router:         router,
		Merchant:       swap.NewMerchant(stores.Orders, cfg.MerchantPubkey, cfg.TokenName, cfg.TokenMint, logger),
		TokenMint:      cfg.TokenMint,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Metrics:        metrics,
		Logger:         logger,
	}

	if cfg.TreasurySecret != "" && cfg.TokenMint != "" {
		treasury, err := openTreasury(cfg, stores.Orders, transfers, node, metrics, logger)
		if err != nil {
			return err
		}
		deps.Treasury = treasury
		logger.Printf("Treasury sales enabled, buyers pay %s", treasury.WalletToPay())
	}

	if cfg.DepositWallet != "" {
		tracker := deposit.NewTracker(node, solana.MustPublicKeyFromBase58(cfg.DepositWallet), stores.Deposits, telegram, metrics, logger)
		deps.Deposits = tracker

		if cfg.EnableDepositMonitor {
			monitor := deposit.NewMonitor(tracker, cfg.DepositInterval, logger)
			if telegram.Configured() {
				monitor.WithStatusReports(telegram, cfg.StatusInterval)
			}
			if err := monitor.Start(ctx); err != nil {
				return fmt.Errorf("failed to start deposit monitor: %w", err)
			}
			defer monitor.Stop()
			telegram.SendStartupMessage(ctx, cfg.DepositWallet, cfg.DepositInterval)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewServer(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Set up graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		logger.Printf("Shutdown signal received: %s", sig)
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type closableStore interface {
	session.Store
	Close() error
}

func openStores(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (storage.Stores, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores; data is lost on restart")
		return memory.NewStores(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.PostgresDSN())
	if err != nil {
		return storage.Stores{}, nil, err
	}
	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return storage.Stores{}, nil, fmt.Errorf("migrations: %w", err)
	}
	logger.Printf("Connected to Postgres, %d new migrations applied", len(applied))
	return postgres.NewStores(pool), pool.Close, nil
}

func openSessions(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (closableStore, error) {
	if cfg.SessionBackend == "redis" {
		store, err := session.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		logger.Println("Sessions stored in Redis")
		return store, nil
	}
	return session.NewMemoryStore(time.Minute), nil
}

func openTreasury(cfg *config.Config, orders storage.OrderStore, transfers *sln.Transfers, node sln.RPC, metrics *observability.Metrics, logger logrus.FieldLogger) (*swap.Treasury, error) {
	kp, err := keys.Parse(cfg.TreasurySecret, keys.Options{})
	if err != nil {
		return nil, fmt.Errorf("TREASURY_SECRET: %w", err)
	}
	return swap.NewTreasury(swap.TreasuryConfig{
		Wallet:   kp.PrivateKey,
		Mint:     solana.MustPublicKeyFromBase58(cfg.TokenMint),
		Decimals: cfg.TokenDecimals,
		PriceSol: cfg.TokenPriceSol,
	}, orders, transfers, node, metrics, logger)
}
