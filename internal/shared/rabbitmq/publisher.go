package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thudocloud/food-ordering-platform/internal/ports"
	"github.com/thudocloud/food-ordering-platform/internal/shared/contracts"
)

// TaskPublisher publishes confirmation tasks through the shared Client.
type TaskPublisher struct {
	Client *Client
}

var _ ports.TaskPublisher = (*TaskPublisher)(nil)

// PublishConfirmation enqueues a task on the confirmations queue via the
// default exchange. A failure is returned to the producer, which reports it
// through the queued flag instead of failing the order.
func (p *TaskPublisher) PublishConfirmation(_ context.Context, task contracts.ConfirmationTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal confirmation task: %w", err)
	}
	return p.Client.PublishMessage("", ConfirmationsQueue, body, nil)
}
