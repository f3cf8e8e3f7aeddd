package notifier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thudocloud/food-ordering-platform/internal/ports"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
)

// EmailNotifier simulates the customer-notification collaborator. A real
// integration (SendGrid, SES) would sit behind the same interface.
type EmailNotifier struct {
	logger *logger.Logger
	delay  time.Duration // simulated delivery latency
}

var _ ports.Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(log *logger.Logger) *EmailNotifier {
	return &EmailNotifier{logger: log, delay: 500 * time.Millisecond}
}

// SendConfirmation "delivers" a confirmation email, honoring the caller's
// deadline so a stalled send is reported as retryable rather than hanging.
func (n *EmailNotifier) SendConfirmation(ctx context.Context, email, orderNumber string, total decimal.Decimal) error {
	select {
	case <-time.After(n.delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	n.logger.Info(ctx, "notification_sent", "Confirmation email sent", map[string]any{
		"email":        email,
		"order_number": orderNumber,
		"total":        total.StringFixed(2),
	})
	return nil
}
