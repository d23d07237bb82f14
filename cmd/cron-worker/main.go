package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openagora/agora-backend/internal/cron"
	"github.com/openagora/agora-backend/internal/wallet"
	"github.com/openagora/agora-backend/pkg/config"
	"github.com/openagora/agora-backend/pkg/custodial"
	"github.com/openagora/agora-backend/pkg/db"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/metrics"
	"github.com/openagora/agora-backend/pkg/migrate"
	"github.com/openagora/agora-backend/pkg/outbox"
	"github.com/openagora/agora-backend/pkg/redis"
	"github.com/openagora/agora-backend/pkg/square"
)

const lockKeyFormat = "agora:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	custodialClient, err := custodial.NewClient(cfg.Custodial, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create custodial client", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	walletRepo := wallet.NewRepository(dbClient.DB())
	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)

	custodialProvider, err := wallet.NewCustodialProvider(custodialClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create custodial provider", err)
		os.Exit(1)
	}

	cardCharger, err := wallet.NewCardCharger(squareClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create card charger", err)
		os.Exit(1)
	}

	walletService, err := wallet.NewService(wallet.ServiceParams{
		Repo:      walletRepo,
		Tx:        dbClient,
		Outbox:    outbox.NewService(outboxRepo, logg),
		Custodial: custodialProvider,
		Charger:   cardCharger,
		Logger:    logg,
		Metrics:   ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewReconcileOnrampJob(cron.ReconcileOnrampJobParams{
		Logger:  logg,
		Store:   walletRepo,
		Minter:  walletService,
		Config:  cfg.Recon,
		Metrics: ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	provisionJob, err := cron.NewWalletProvisionJob(cron.WalletProvisionJobParams{
		Logger:      logg,
		Store:       walletRepo,
		Provisioner: walletService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create provision job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(reconcileJob, provisionJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Recon.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
