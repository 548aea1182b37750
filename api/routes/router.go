package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dripspot/dripspot-backend/api/controllers"
	billingcontrollers "github.com/dripspot/dripspot-backend/api/controllers/billing"
	webhookcontrollers "github.com/dripspot/dripspot-backend/api/controllers/webhooks"
	"github.com/dripspot/dripspot-backend/api/middleware"
	checkoutsvc "github.com/dripspot/dripspot-backend/internal/checkout"
	membershipsvc "github.com/dripspot/dripspot-backend/internal/memberships"
	portalsvc "github.com/dripspot/dripspot-backend/internal/portal"
	shopsvc "github.com/dripspot/dripspot-backend/internal/shops"
	subscriptionsvc "github.com/dripspot/dripspot-backend/internal/subscriptions"
	stripewebhook "github.com/dripspot/dripspot-backend/internal/webhooks/stripe"
	"github.com/dripspot/dripspot-backend/pkg/config"
	"github.com/dripspot/dripspot-backend/pkg/db"
	"github.com/dripspot/dripspot-backend/pkg/logger"
	"github.com/dripspot/dripspot-backend/pkg/metrics"
	"github.com/dripspot/dripspot-backend/pkg/redis"
	"github.com/dripspot/dripspot-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient db.Pinger,
	redisClient *redis.Client,
	stripeClient *stripe.Client,
	checkoutService checkoutsvc.Service,
	portalService portalsvc.Service,
	subscriptionsService subscriptionsvc.Service,
	shopService shopsvc.Service,
	membershipService membershipsvc.Service,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]func(r *http.Request) error{
			"database": func(req *http.Request) error {
				if dbClient == nil {
					return nil
				}
				return dbClient.Ping(req.Context())
			},
			"redis": func(req *http.Request) error {
				if redisClient == nil {
					return nil
				}
				return redisClient.Ping(req.Context())
			},
		}))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, webhookMetrics, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/billing", func(r chi.Router) {
			r.Route("/checkout", func(r chi.Router) {
				r.Post("/shop", billingcontrollers.ShopCheckoutCreate(checkoutService, logg))
				r.Post("/membership", billingcontrollers.MembershipCheckoutCreate(checkoutService, logg))
			})
			r.Post("/portal", billingcontrollers.PortalSessionCreate(portalService, logg))
			r.Post("/subscriptions/cancel", billingcontrollers.SubscriptionCancel(subscriptionsService, logg))
			r.Get("/membership", billingcontrollers.MembershipBillingFetch(membershipService, logg))
		})

		r.Route("/v1/shops/{shopID}", func(r chi.Router) {
			r.Get("/billing", billingcontrollers.ShopBillingFetch(shopService, logg))
			r.Post("/discount", billingcontrollers.ShopDiscountToggle(shopService, logg))
		})
	})

	return r
}
