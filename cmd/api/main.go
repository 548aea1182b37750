package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dripspot/dripspot-backend/api/routes"
	"github.com/dripspot/dripspot-backend/internal/catalog"
	checkoutsvc "github.com/dripspot/dripspot-backend/internal/checkout"
	"github.com/dripspot/dripspot-backend/internal/entitlements"
	"github.com/dripspot/dripspot-backend/internal/ledger"
	"github.com/dripspot/dripspot-backend/internal/memberships"
	"github.com/dripspot/dripspot-backend/internal/ownership"
	portalsvc "github.com/dripspot/dripspot-backend/internal/portal"
	"github.com/dripspot/dripspot-backend/internal/shops"
	subscriptionsvc "github.com/dripspot/dripspot-backend/internal/subscriptions"
	"github.com/dripspot/dripspot-backend/internal/users"
	stripewebhook "github.com/dripspot/dripspot-backend/internal/webhooks/stripe"
	"github.com/dripspot/dripspot-backend/pkg/config"
	"github.com/dripspot/dripspot-backend/pkg/db"
	"github.com/dripspot/dripspot-backend/pkg/logger"
	"github.com/dripspot/dripspot-backend/pkg/metrics"
	"github.com/dripspot/dripspot-backend/pkg/migrate"
	"github.com/dripspot/dripspot-backend/pkg/redis"
	"github.com/dripspot/dripspot-backend/pkg/stripe"
)

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	priceCatalog, err := catalog.New(cfg.Stripe)
	if err != nil {
		logg.Error(context.Background(), "failed to build price catalog", err)
		os.Exit(1)
	}

	shopRepo := shops.NewRepository(dbClient.DB())
	membershipRepo := memberships.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())

	resolver, err := ownership.NewResolver(shopRepo, membershipRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to build ownership resolver", err)
		os.Exit(1)
	}

	policy := entitlements.NewPolicy(cfg.Billing.GraceWindow)

	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Catalog:           priceCatalog,
		ShopRepo:          shopRepo,
		MembershipRepo:    membershipRepo,
		UserRepo:          userRepo,
		Resolver:          resolver,
		StripeClient:      checkoutsvc.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	portalService, err := portalsvc.NewService(portalsvc.ServiceParams{
		Resolver:     resolver,
		StripeClient: portalsvc.NewStripeClient(stripeClient),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create portal service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptionsvc.NewService(subscriptionsvc.ServiceParams{
		ShopRepo:          shopRepo,
		MembershipRepo:    membershipRepo,
		Resolver:          resolver,
		StripeClient:      subscriptionsvc.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	shopService, err := shops.NewService(shops.ServiceParams{
		Repo:     shopRepo,
		Resolver: resolver,
		Policy:   policy,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shop service", err)
		os.Exit(1)
	}

	membershipService, err := memberships.NewService(memberships.ServiceParams{
		Repo:   membershipRepo,
		Policy: policy,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create membership service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		ShopRepo:          shopRepo,
		MembershipRepo:    membershipRepo,
		Ledger:            ledgerService,
		Catalog:           priceCatalog,
		StripeClient:      subscriptionsvc.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	stripeWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookIdempotencyTTL(), "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			stripeClient,
			checkoutService,
			portalService,
			subscriptionsService,
			shopService,
			membershipService,
			stripeWebhookService,
			stripeWebhookGuard,
			webhookMetrics,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
