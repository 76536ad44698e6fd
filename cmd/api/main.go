package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vendora-market/vendora-backend/api/routes"
	"github.com/vendora-market/vendora-backend/internal/cart"
	"github.com/vendora-market/vendora-backend/internal/checkout"
	"github.com/vendora-market/vendora-backend/internal/notifications"
	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/internal/payouts"
	"github.com/vendora-market/vendora-backend/internal/products"
	"github.com/vendora-market/vendora-backend/internal/settlement"
	"github.com/vendora-market/vendora-backend/internal/webhooks"
	flutterwavewebhook "github.com/vendora-market/vendora-backend/internal/webhooks/flutterwave"
	paystackwebhook "github.com/vendora-market/vendora-backend/internal/webhooks/paystack"
	stripewebhook "github.com/vendora-market/vendora-backend/internal/webhooks/stripe"
	"github.com/vendora-market/vendora-backend/pkg/config"
	"github.com/vendora-market/vendora-backend/pkg/db"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	"github.com/vendora-market/vendora-backend/pkg/flutterwave"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/metrics"
	"github.com/vendora-market/vendora-backend/pkg/migrate"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
	"github.com/vendora-market/vendora-backend/pkg/paystack"
	"github.com/vendora-market/vendora-backend/pkg/redis"
	"github.com/vendora-market/vendora-backend/pkg/stripe"
)

// Stripe retries deliveries for up to three days; marks must outlive that.
const webhookDedupeTTL = 72 * time.Hour

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
	paystackClient, err := paystack.NewClient(cfg.Paystack)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap paystack", err)
		os.Exit(1)
	}
	flutterwaveClient, err := flutterwave.NewClient(cfg.Flutterwave)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap flutterwave", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	payoutsRepo := payouts.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	notifier := notifications.NewLogNotifier(logg)

	cartSvc, err := cart.NewService(dbClient, cartRepo, productsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(
		dbClient,
		cartSvc,
		ordersRepo,
		map[enums.PaymentGateway]checkout.SessionCreator{
			enums.GatewayStripe:      checkout.NewStripeGateway(stripeClient),
			enums.GatewayPaystack:    checkout.NewPaystackGateway(paystackClient),
			enums.GatewayFlutterwave: checkout.NewFlutterwaveGateway(flutterwaveClient),
		},
		outboxSvc,
		cfg.Platform,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	settlementSvc, err := settlement.NewService(settlement.ServiceParams{
		Tx:          dbClient,
		OrdersRepo:  ordersRepo,
		ProductRepo: productsRepo,
		Carts:       cartSvc,
		Outbox:      outboxSvc,
		Notifier:    notifier,
		Platform:    cfg.Platform,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	stripeWebhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Settlement:   settlementSvc,
		StripeClient: stripeClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	paystackWebhookSvc, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{
		Settlement: settlementSvc,
		Paystack:   paystackClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack webhook service", err)
		os.Exit(1)
	}
	flutterwaveWebhookSvc, err := flutterwavewebhook.NewService(flutterwavewebhook.ServiceParams{
		Settlement:  settlementSvc,
		Flutterwave: flutterwaveClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create flutterwave webhook service", err)
		os.Exit(1)
	}

	stripeGuard, err := webhooks.NewIdempotencyGuard(redisClient, webhookDedupeTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe idempotency guard", err)
		os.Exit(1)
	}
	paystackGuard, err := webhooks.NewIdempotencyGuard(redisClient, webhookDedupeTTL, "paystack-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack idempotency guard", err)
		os.Exit(1)
	}
	flutterwaveGuard, err := webhooks.NewIdempotencyGuard(redisClient, webhookDedupeTTL, "flutterwave-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create flutterwave idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config: cfg,
			Logger: logg,
			DB:     dbClient,
			Redis:  redisClient,

			CartService:     cartSvc,
			CheckoutService: checkoutSvc,
			OrdersRepo:      ordersRepo,
			PayoutsRepo:     payoutsRepo,

			StripeWebhookService:      stripeWebhookSvc,
			StripeSigner:              stripeClient,
			PaystackWebhookService:    paystackWebhookSvc,
			PaystackVerifier:          paystackClient,
			FlutterwaveWebhookService: flutterwaveWebhookSvc,
			FlutterwaveVerifier:       flutterwaveClient,

			StripeGuard:      stripeGuard,
			PaystackGuard:    paystackGuard,
			FlutterwaveGuard: flutterwaveGuard,

			WebhookMetrics: metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
