package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openagora/agora-backend/api/routes"
	"github.com/openagora/agora-backend/internal/notifications"
	"github.com/openagora/agora-backend/internal/settlement"
	"github.com/openagora/agora-backend/internal/tendering"
	"github.com/openagora/agora-backend/internal/wallet"
	"github.com/openagora/agora-backend/pkg/config"
	"github.com/openagora/agora-backend/pkg/custodial"
	"github.com/openagora/agora-backend/pkg/db"
	"github.com/openagora/agora-backend/pkg/identity"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/metrics"
	"github.com/openagora/agora-backend/pkg/migrate"
	"github.com/openagora/agora-backend/pkg/outbox"
	"github.com/openagora/agora-backend/pkg/pubsub"
	"github.com/openagora/agora-backend/pkg/redis"
	"github.com/openagora/agora-backend/pkg/square"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
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

	identityClient, err := identity.NewClient(cfg.Identity, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity client", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
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
		Repo:      wallet.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Outbox:    outboxService,
		Custodial: custodialProvider,
		Charger:   cardCharger,
		Logger:    logg,
		Metrics:   ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Repo:        settlement.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		Outbox:      outboxService,
		Wallets:     walletService,
		Fees:        cfg.Fees,
		Idempotency: redisClient,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	tenderingService, err := tendering.NewService(tendering.ServiceParams{
		Repo:        tendering.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		Outbox:      outboxService,
		Settlements: settlementService,
		Wallets:     walletService,
		Directory:   identityClient,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tendering service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			PubSub:        pubsubClient,
			Tendering:     tenderingService,
			Wallets:       walletService,
			Notifications: notificationsService,
		}),
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
