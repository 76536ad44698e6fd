package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vendora-market/vendora-backend/api/controllers"
	webhookcontrollers "github.com/vendora-market/vendora-backend/api/controllers/webhooks"
	"github.com/vendora-market/vendora-backend/api/middleware"
	"github.com/vendora-market/vendora-backend/internal/cart"
	checkoutsvc "github.com/vendora-market/vendora-backend/internal/checkout"
	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/internal/payouts"
	"github.com/vendora-market/vendora-backend/internal/webhooks"
	flutterwavewebhook "github.com/vendora-market/vendora-backend/internal/webhooks/flutterwave"
	paystackwebhook "github.com/vendora-market/vendora-backend/internal/webhooks/paystack"
	stripewebhook "github.com/vendora-market/vendora-backend/internal/webhooks/stripe"
	"github.com/vendora-market/vendora-backend/pkg/config"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/metrics"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Params carries everything the router mounts.
type Params struct {
	Config *config.Config
	Logger *logger.Logger

	DB    pinger
	Redis pinger

	CartService     cart.Service
	CheckoutService checkoutsvc.Service
	OrdersRepo      orders.Repository
	PayoutsRepo     payouts.Repository

	StripeWebhookService      *stripewebhook.Service
	StripeSigner              interface{ SigningSecret() string }
	PaystackWebhookService    *paystackwebhook.Service
	PaystackVerifier          interface{ VerifySignature(body []byte, signature string) bool }
	FlutterwaveWebhookService *flutterwavewebhook.Service
	FlutterwaveVerifier       interface{ VerifySignature(signature, secretHash string) bool }

	StripeGuard      *webhooks.IdempotencyGuard
	PaystackGuard    *webhooks.IdempotencyGuard
	FlutterwaveGuard *webhooks.IdempotencyGuard

	WebhookMetrics *metrics.WebhookMetrics
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Identity(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhookService, p.StripeSigner, p.StripeGuard, p.WebhookMetrics, logg))
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(p.PaystackWebhookService, p.PaystackVerifier, p.PaystackGuard, p.WebhookMetrics, logg))
		r.Post("/flutterwave", webhookcontrollers.FlutterwaveWebhook(p.FlutterwaveWebhookService, p.FlutterwaveVerifier, cfg.Flutterwave.SecretHash, p.FlutterwaveGuard, p.WebhookMetrics, logg))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Get("/paystack/callback", controllers.PaystackCallback(p.PaystackWebhookService, logg))
		r.Get("/flutterwave/callback", controllers.FlutterwaveCallback(p.FlutterwaveWebhookService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartList(p.CartService, logg))
			r.Post("/", controllers.CartAdd(p.CartService, logg))
			r.Patch("/{lineId}", controllers.CartUpdateLine(p.CartService, logg))
			r.Delete("/{lineId}", controllers.CartRemove(p.CartService, logg))
			r.Post("/merge", controllers.CartMerge(p.CartService, logg))
		})

		r.Post("/checkout", controllers.Checkout(p.CheckoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(p.OrdersRepo, logg))
			r.Get("/{orderId}", controllers.OrderDetail(p.OrdersRepo, logg))
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Get("/orders", controllers.VendorOrdersList(p.OrdersRepo, logg))
			r.Get("/payouts", controllers.VendorPayoutsList(p.PayoutsRepo, logg))
		})
	})

	return r
}
