package notify

import (
	"context"
	"fmt"

	"feeledger/internal/amqp"
)

// AMQPNotifier hands reminder requests to the dispatcher queue. A successful
// publish counts as sent; delivery confirmation is the dispatcher's problem.
type AMQPNotifier struct {
	client *amqp.Client
}

func NewAMQPNotifier(client *amqp.Client) *AMQPNotifier {
	return &AMQPNotifier{client: client}
}

func (n *AMQPNotifier) Notify(ctx context.Context, req Request) (DeliveryStatus, error) {
	msg := &amqp.ReminderMessage{
		FeeID:         req.FeeID,
		StudentID:     req.StudentID,
		InstallmentID: req.InstallmentID,
		Bucket:        req.Bucket,
		Channel:       string(req.Channel),
	}
	if err := n.client.PublishReminder(ctx, msg); err != nil {
		return StatusFailed, fmt.Errorf("publish reminder: %w", err)
	}
	return StatusSent, nil
}
