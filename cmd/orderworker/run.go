package orderworker

import (
	"context"
	"fmt"
	"time"

	service "github.com/thudocloud/food-ordering-platform/internal/app/orderworker"
	"github.com/thudocloud/food-ordering-platform/internal/adapter/notifier"
	"github.com/thudocloud/food-ordering-platform/internal/shared/config"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
	pg "github.com/thudocloud/food-ordering-platform/internal/shared/postgres"
	"github.com/thudocloud/food-ordering-platform/internal/shared/rabbitmq"
	"github.com/thudocloud/food-ordering-platform/internal/shared/rediscache"
)

const (
	// startup connect policy: the worker cannot run without a queue
	// connection, so exhaustion is fatal
	connectAttempts = 5
	connectDelay    = 5 * time.Second

	notifyTimeout = 10 * time.Second
)

// Run wires the order worker and blocks until ctx is cancelled or the
// consumer fails terminally.
func Run(ctx context.Context, configPath string, prefetch, maxAttempts int) error {
	log := logger.NewLogger("order-worker")
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

	rmq := rabbitmq.NewClient(ctx, cfg, log)
	if err := rmq.ConnectWithRetry(ctx, connectAttempts, connectDelay); err != nil {
		log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err)
		return err
	}
	defer rmq.Close()

	cache := rediscache.Connect(ctx, cfg, log)
	defer cache.Close()

	uow := pg.NewUnitOfWork(pool)
	repo := pg.NewOrdersRepo()
	mail := notifier.NewEmailNotifier(log)
	svc := service.NewConfirmationService(uow, repo, cache, mail, notifyTimeout, log)

	log.Info(ctx, "service_started", "Order worker started", map[string]any{
		"queue":        rabbitmq.ConfirmationsQueue,
		"prefetch":     prefetch,
		"max_attempts": maxAttempts,
	})

	// consumer loop: one in-flight task at a time; resubscribe with backoff
	// when the channel drops
	consumeErrCh := make(chan error, 1)
	go func() {
		backoff := time.Second
		for {
			if ctx.Err() != nil {
				return
			}

			ch, err := rmq.NewConsumerChannel(prefetch)
			if err != nil {
				log.Error(ctx, "rabbitmq_channel_failed", "Failed to open consumer channel", err)
				time.Sleep(backoff)
				if backoff < 30*time.Second {
					backoff *= 2
				}
				continue
			}

			consumerTag := "order-worker"
			deliveries, err := ch.Consume(
				rabbitmq.ConfirmationsQueue,
				consumerTag,
				false, // manual ack
				false,
				false,
				false,
				nil,
			)
			if err != nil {
				_ = ch.Close()
				log.Error(ctx, "rabbitmq_consume_failed", "Failed to start consuming", err)
				time.Sleep(backoff)
				if backoff < 30*time.Second {
					backoff *= 2
				}
				continue
			}

			// reset backoff after a successful subscribe
			backoff = time.Second

			for {
				select {
				case <-ctx.Done():
					// stop consuming and let the broker requeue any in-flight
					_ = ch.Cancel(consumerTag, false)
					_ = ch.Close()
					return
				case d, ok := <-deliveries:
					if !ok {
						// channel closed (connection lost) -> resubscribe
						_ = ch.Close()
						time.Sleep(backoff)
						if backoff < 30*time.Second {
							backoff *= 2
						}
						goto resubscribe
					}
					handleDelivery(ctx, log, svc, rmq, d, maxAttempts)
				}
			}
		resubscribe:
			continue
		}
	}()

	var retErr error
	select {
	case <-ctx.Done():
	case err := <-consumeErrCh:
		log.Error(ctx, "consumer_stopped", "Consumer loop stopped", err)
		retErr = err
	}

	log.Info(ctx, "graceful_shutdown", "Order worker shutdown completed", nil)
	if retErr != nil {
		return fmt.Errorf("order worker: %w", retErr)
	}
	return nil
}
