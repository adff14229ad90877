package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/devicehub-backend/api/controllers"
	offercontrollers "github.com/angelmondragon/devicehub-backend/api/controllers/offers"
	ordercontrollers "github.com/angelmondragon/devicehub-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/devicehub-backend/api/controllers/webhooks"
	"github.com/angelmondragon/devicehub-backend/api/middleware"
	"github.com/angelmondragon/devicehub-backend/pkg/config"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/devicehub-backend/pkg/redis"
)

type carrierVerifier interface {
	VerifySignature(rawBody []byte, headers http.Header) error
}

// Dependencies are the services the router mounts. Readiness holds the
// probes checked by /health/ready.
type Dependencies struct {
	Offers    offercontrollers.Service
	Orders    ordercontrollers.Service
	Inventory controllers.InventoryService
	Labels    controllers.LabelService

	StripeWebhook  webhookcontrollers.StripeWebhookService
	StripeVerifier webhookcontrollers.StripeEventVerifier
	CarrierWebhook webhookcontrollers.CarrierWebhookService
	CarrierGuard   carrierVerifier

	StripeIdempotency  webhookcontrollers.IdempotencyGuard
	CarrierIdempotency webhookcontrollers.IdempotencyGuard
	RequestIdempotency pkgredis.IdempotencyStore

	Readiness map[string]controllers.Pinger
	Metrics   *prometheus.Registry
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if deps.Metrics != nil {
		httpMetrics = metrics.NewHTTPMetrics(deps.Metrics)
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if httpMetrics != nil {
		r.Use(middleware.Metrics(httpMetrics))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeVerifier, deps.StripeIdempotency, logg))
		r.Post("/carrier", webhookcontrollers.CarrierWebhook(deps.CarrierWebhook, deps.CarrierGuard, deps.CarrierIdempotency, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
		r.Use(middleware.Idempotency(deps.RequestIdempotency, logg))

		r.Get("/offers", offercontrollers.AdminList(deps.Offers, logg))
		r.Post("/offers/{offerId}/counter", offercontrollers.AdminCounter(deps.Offers, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminDetail(deps.Orders, logg))
			r.Post("/re-offer", ordercontrollers.AdminCreateReOffer(deps.Orders, logg))
			r.Post("/complete", ordercontrollers.AdminComplete(deps.Orders, logg))
			r.Post("/cancel", ordercontrollers.AdminCancel(deps.Orders, logg))
			r.Post("/labels", controllers.AdminCreateLabel(deps.Labels, logg))
		})

		r.Get("/labels/{labelId}", controllers.AdminGetLabel(deps.Labels, logg))
		r.Delete("/labels/{labelId}", controllers.AdminVoidLabel(deps.Labels, logg))

		r.Get("/inventory", controllers.AdminInventoryList(deps.Inventory, logg))
		r.Put("/inventory", controllers.AdminSetStock(deps.Inventory, logg))
		r.Post("/inventory/restock", controllers.AdminRestock(deps.Inventory, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleBuyer, logg))
		r.Use(middleware.Idempotency(deps.RequestIdempotency, logg))

		r.Route("/offers", func(r chi.Router) {
			r.Post("/", offercontrollers.Submit(deps.Offers, logg))
			r.Get("/", offercontrollers.List(deps.Offers, logg))
			r.Get("/{offerId}", offercontrollers.Detail(deps.Offers, logg))
			r.Post("/{offerId}/accept", offercontrollers.Accept(deps.Offers, logg))
			r.Post("/{offerId}/decline", offercontrollers.Decline(deps.Offers, logg))
			r.Post("/{offerId}/checkout", ordercontrollers.Checkout(deps.Orders, logg))
		})

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
			r.Post("/payment-intent", ordercontrollers.PaymentIntent(deps.Orders, logg))
			r.Post("/re-offer/respond", ordercontrollers.RespondReOffer(deps.Orders, logg))
		})

		r.Get("/inventory/availability", controllers.InventoryAvailability(deps.Inventory, logg))
	})

	return r
}
