package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/devicehub-backend/api/controllers"
	"github.com/angelmondragon/devicehub-backend/api/routes"
	"github.com/angelmondragon/devicehub-backend/internal/inventory"
	"github.com/angelmondragon/devicehub-backend/internal/labels"
	"github.com/angelmondragon/devicehub-backend/internal/offers"
	"github.com/angelmondragon/devicehub-backend/internal/orders"
	"github.com/angelmondragon/devicehub-backend/internal/sequence"
	internalwebhooks "github.com/angelmondragon/devicehub-backend/internal/webhooks"
	carrierwebhook "github.com/angelmondragon/devicehub-backend/internal/webhooks/carrier"
	stripewebhook "github.com/angelmondragon/devicehub-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/devicehub-backend/pkg/config"
	"github.com/angelmondragon/devicehub-backend/pkg/db"
	"github.com/angelmondragon/devicehub-backend/pkg/instance"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/migrate"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox"
	"github.com/angelmondragon/devicehub-backend/pkg/redis"
	"github.com/angelmondragon/devicehub-backend/pkg/shipengine"
	"github.com/angelmondragon/devicehub-backend/pkg/storage/gcs"
	"github.com/angelmondragon/devicehub-backend/pkg/stripe"
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
		Instance:    instance.ID("api"),
		Level:       cfg.App.LogLevel,
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

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	shipEngineClient, err := shipengine.NewClient(context.Background(), cfg.ShipEngine, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap shipengine", err)
		os.Exit(1)
	}

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, gcsClient, stripeClient, shipEngineClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
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

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	gcsClient *gcs.Client,
	stripeClient *stripe.Client,
	shipEngineClient *shipengine.Client,
) (routes.Dependencies, error) {
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	offerService, err := offers.NewService(offers.NewRepository(dbClient.DB()), dbClient, outboxService, inventoryService, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	allocator, err := sequence.NewAllocator(dbClient, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	voider := &deferredLabelVoider{}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repository:    orders.NewRepository(dbClient.DB()),
		Tx:            dbClient,
		Outbox:        outboxService,
		Numbers:       allocator,
		Offers:        offerService,
		Stock:         inventoryService,
		Payments:      stripe.NewPaymentIntentClient(stripeClient),
		Labels:        voider,
		Currency:      cfg.Stripe.Currency,
		ReOfferWindow: cfg.Reoffer.AutoAcceptWindow,
		Logger:        logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	labelService, err := labels.NewService(labels.ServiceParams{
		Repository:   labels.NewRepository(dbClient.DB()),
		Tx:           dbClient,
		Outbox:       outboxService,
		Orders:       orderService,
		Carrier:      shipEngineClient,
		Storage:      gcsClient,
		Bucket:       gcsClient.DefaultBucket(),
		PathPrefix:   cfg.Labels.PathPrefix,
		SignedURLTTL: cfg.Labels.SignedURLTTL,
		Logger:       logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	voider.labels = labelService

	stripeWebhook, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders: orderService,
		Logger: logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	stripeGuard, err := internalwebhooks.NewIdempotencyGuard(redisClient, cfg.Eventing.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		return routes.Dependencies{}, err
	}

	carrierWebhook, err := carrierwebhook.NewService(carrierwebhook.ServiceParams{
		Labels:            labelService,
		Orders:            orderService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	carrierGuard, err := internalwebhooks.NewIdempotencyGuard(redisClient, cfg.Carrier.IdempotencyTTL, "carrier-webhook")
	if err != nil {
		return routes.Dependencies{}, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return routes.Dependencies{
		Offers:             offerService,
		Orders:             orderService,
		Inventory:          inventoryService,
		Labels:             labelService,
		StripeWebhook:      stripeWebhook,
		StripeVerifier:     stripeClient.Webhooks(),
		CarrierWebhook:     carrierWebhook,
		CarrierGuard:       carrierwebhook.NewGuard(cfg.Carrier),
		StripeIdempotency:  stripeGuard,
		CarrierIdempotency: carrierGuard,
		RequestIdempotency: redisClient,
		Readiness: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
			"gcs":      gcsClient,
		},
		Metrics: registry,
	}, nil
}

// deferredLabelVoider lets the order service void labels through a label
// service that is built after it.
type deferredLabelVoider struct {
	labels *labels.Service
}

func (d *deferredLabelVoider) VoidLabel(ctx context.Context, labelID uuid.UUID) error {
	if d.labels == nil {
		return nil
	}
	return d.labels.VoidLabel(ctx, labelID)
}
