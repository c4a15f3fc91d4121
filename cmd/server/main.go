package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"fulfillment/internal/app"
	"fulfillment/internal/config"
	"fulfillment/internal/events"
	"fulfillment/internal/gateway"
	"fulfillment/internal/gateway/porter"
	"fulfillment/internal/gateway/razorpay"
	"fulfillment/internal/handler"
	internalRedis "fulfillment/internal/redis"
	"fulfillment/internal/repository/postgres"
	"fulfillment/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fulfillment: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
			nrApp = nil
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
			defer nrApp.Shutdown(5 * time.Second)
		}
	}

	db, err := app.NewDatabase(startCtx, cfg.Database, nrApp)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(startCtx, cfg.Redis, nrApp)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	publisher, closePublisher, err := app.NewPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Warn("failed to close publisher", "error", err)
		}
	}()

	server, reconciler := wire(db, redisClient, publisher, nrApp, cfg, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return reconciler.Run(gctx)
	})

	// Graceful shutdown.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}

// wire wires all dependencies and returns the HTTP server and the refund
// reconciler.
func wire(db *sql.DB, redisClient *redis.Client, publisher events.Publisher, nrApp *newrelic.Application, cfg *config.Config, logger *slog.Logger) (*http.Server, *service.Reconciler) {
	// Initialize Redis stores.
	sessionStore := internalRedis.NewSessionStore(redisClient, cfg.Fulfill.SessionTTL)
	responseCache := internalRedis.NewResponseCache(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)

	// Initialize repositories.
	ledger := postgres.NewFulfillmentRepository(db)

	// Initialize gateways.
	porterClient := porter.NewClient(cfg.Porter.BaseURL, cfg.Porter.APIKey, gateway.NewHTTPClient(cfg.Porter.Timeout))
	razorpayClient := razorpay.NewClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, gateway.NewHTTPClient(cfg.Razorpay.Timeout))

	// Initialize services.
	fulfillmentService := service.NewFulfillmentService(service.FulfillmentDeps{
		Delivery: porterClient,
		Payment:  razorpayClient,
		Sessions: sessionStore,
		Ledger:   ledger,
		Events:   publisher,
		Pickup:   cfg.Pickup,
		Logger:   logger,
	})
	reconciler := service.NewReconciler(ledger, razorpayClient, publisher,
		cfg.Fulfill.ReconcileInterval, cfg.Fulfill.ReconcileBatch, logger.With("component", "reconciler"))

	// Initialize handlers.
	fulfillmentHandler := handler.NewFulfillmentHandler(fulfillmentService, logger)
	trackingHandler := handler.NewTrackingHandler(fulfillmentService, cfg.Fulfill.TrackPollInterval, cfg.CORSOrigin, logger)
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	router := app.NewRouter(app.RouterDeps{
		FulfillmentHandler: fulfillmentHandler,
		TrackingHandler:    trackingHandler,
		HealthHandler:      healthHandler,
		ResponseCache:      responseCache,
		Locks:              lockStore,
		NewRelicApp:        nrApp,
		Logger:             logger,
		CORSOrigin:         cfg.CORSOrigin,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, reconciler
}
