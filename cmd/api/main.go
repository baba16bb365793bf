package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/promptstudio-ai/promptstudio-backend/api/routes"
	"github.com/promptstudio-ai/promptstudio-backend/internal/payments"
	"github.com/promptstudio-ai/promptstudio-backend/internal/subscriptions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/transactions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/users"
	piprapaywebhook "github.com/promptstudio-ai/promptstudio-backend/internal/webhooks/piprapay"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/config"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/db"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/metrics"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/migrate"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/piprapay"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/pubsub"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/redis"
)

const webhookIdempotencyScope = "piprapay-webhook"

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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := piprapay.NewClient(context.Background(), cfg.PipraPay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create piprapay client", err)
		os.Exit(1)
	}

	transactionsRepo := transactions.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Users: usersRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Transactions: transactionsRepo,
		Users:        usersRepo,
		Gateway:      gatewayClient,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	// payment events are optional: without a GCP project the webhook flow
	// simply skips publishing
	var publisher *pubsub.Client
	if cfg.GCP.ProjectID != "" {
		publisher, err = pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create pubsub client", err)
			os.Exit(1)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
	}

	webhookParams := piprapaywebhook.ServiceParams{
		Transactions:      transactionsRepo,
		Subscriptions:     subscriptionsService,
		TransactionRunner: dbClient,
		Logger:            logg,
	}
	if publisher != nil {
		webhookParams.Publisher = publisher
	}
	webhookService, err := piprapaywebhook.NewService(webhookParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	verifier, err := piprapaywebhook.NewVerifier(gatewayClient.WebhookSecret(), gatewayClient.WebhookAPIKey())
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook verifier", err)
		os.Exit(1)
	}

	guard, err := piprapaywebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, webhookIdempotencyScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

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
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Payments:        paymentsService,
			WebhookService:  webhookService,
			WebhookVerifier: verifier,
			WebhookGuard:    guard,
			WebhookMetrics:  webhookMetrics,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
