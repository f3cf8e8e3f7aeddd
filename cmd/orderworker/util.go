package orderworker

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	service "github.com/thudocloud/food-ordering-platform/internal/app/orderworker"
	"github.com/thudocloud/food-ordering-platform/internal/ports"
	"github.com/thudocloud/food-ordering-platform/internal/shared/contracts"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
	"github.com/thudocloud/food-ordering-platform/internal/shared/rabbitmq"
)

// attemptsHeader counts processing attempts across redeliveries. The broker
// does not track requeue counts, so the consumer republishes failed tasks
// with this header incremented instead of nacking with requeue.
const attemptsHeader = "x-attempts"

// handleDelivery decodes, processes, and settles a single message.
//
// Settlement rules:
//   - unparseable payload: dead-letter immediately (it can never succeed)
//   - retryable failure within budget: republish with attempts+1, ack original
//   - retryable failure, budget exhausted: dead-letter
//   - any other failure: dead-letter
func handleDelivery(
	ctx context.Context,
	log *logger.Logger,
	svc ports.ConfirmationService,
	client *rabbitmq.Client,
	d amqp.Delivery,
	maxAttempts int,
) {
	var task contracts.ConfirmationTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		log.Error(ctx, "poison_message", "Failed to decode confirmation task; dead-lettering", err)
		_ = d.Nack(false, false) // routes to the DLX
		return
	}

	err := svc.Process(ctx, task)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	if !service.IsRetryable(err) {
		log.Error(ctx, "processing_failed", "Processing failed permanently; dead-lettering", err)
		_ = d.Nack(false, false)
		return
	}

	attempts := attemptCount(d.Headers) + 1
	if attempts >= maxAttempts {
		log.Error(ctx, "retries_exhausted", "Attempt budget exhausted; dead-lettering", err)
		_ = d.Nack(false, false)
		return
	}

	// republish a copy carrying the attempt count, then ack the original;
	// if the republish itself fails, fall back to broker redelivery
	headers := amqp.Table{attemptsHeader: int32(attempts)}
	if perr := client.PublishMessage("", rabbitmq.ConfirmationsQueue, d.Body, headers); perr != nil {
		log.Error(ctx, "requeue_failed", "Failed to republish task; nacking with requeue", perr)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)

	log.Warn(ctx, "task_requeued", "Task requeued for retry", map[string]any{
		"order_number": task.OrderNumber,
		"attempt":      attempts,
		"max_attempts": maxAttempts,
	})
}

// attemptCount reads the attempts header, tolerating the integer widths AMQP
// clients use for table values.
func attemptCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[attemptsHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
