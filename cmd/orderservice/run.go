package orderservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	service "github.com/thudocloud/food-ordering-platform/internal/app/orderservice"
	"github.com/thudocloud/food-ordering-platform/internal/adapter/pricing"
	"github.com/thudocloud/food-ordering-platform/internal/shared/config"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
	pg "github.com/thudocloud/food-ordering-platform/internal/shared/postgres"
	"github.com/thudocloud/food-ordering-platform/internal/shared/rabbitmq"
	"github.com/thudocloud/food-ordering-platform/internal/shared/rediscache"
)

const shutdownTimeout = 10 * time.Second

// Run wires the order HTTP service and blocks until ctx is cancelled.
func Run(ctx context.Context, configPath string, port int) error {
	log := logger.NewLogger("order-service")
	ctx = log.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load configuration", err)
		return err
	}

	pool, err := pg.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err)
		return err
	}
	defer pool.Close()

	if err := pg.EnsureSchema(ctx, pool); err != nil {
		log.Error(ctx, "schema_init_failed", "Failed to ensure database schema", err)
		return err
	}

	// a broker outage degrades order creation to queued=false responses,
	// so a failed dial is logged and the watcher keeps retrying
	rmq := rabbitmq.NewClient(ctx, cfg, log)
	if err := rmq.Connect(ctx); err != nil {
		log.Warn(ctx, "rabbitmq_unavailable", "RabbitMQ unreachable at startup; orders will not be queued until it recovers", map[string]any{
			"error": err.Error(),
		})
	}
	defer rmq.Close()

	cache := rediscache.Connect(ctx, cfg, log)
	defer cache.Close()

	pricingTimeout := time.Duration(cfg.Pricing.TimeoutSeconds) * time.Second
	pricingClient, err := pricing.NewHTTPClient(cfg.Pricing.URL, pricingTimeout, log)
	if err != nil {
		log.Error(ctx, "pricing_config_failed", "Failed to configure pricing client", err)
		return err
	}

	uow := pg.NewUnitOfWork(pool)
	repo := pg.NewOrdersRepo()
	publisher := &rabbitmq.TaskPublisher{Client: rmq}
	svc := service.New(uow, repo, cache, publisher, pricingClient, pricingTimeout, log)

	probes := service.HealthProbes{
		DB:    pool.Ping,
		Cache: cache.Ping,
		Queue: func(ctx context.Context) error { return rmq.Ping(ctx, 2*time.Second) },
	}
	router := service.NewRouter(svc, pricingClient, probes, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "service_started", fmt.Sprintf("Order service listening on %s", server.Addr), map[string]any{
			"port": port,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error(ctx, "server_failed", "HTTP server stopped unexpectedly", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutdown_failed", "HTTP server shutdown failed", err)
		return err
	}

	log.Info(ctx, "graceful_shutdown", "Order service shutdown completed", nil)
	return nil
}
