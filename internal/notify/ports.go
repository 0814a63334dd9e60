package notify

import "context"

type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Request identifies one reminder to dispatch. Bucket is "overdue" or
// "upcoming". The ledger decides eligibility; how delivery happens is the
// dispatcher's business.
type Request struct {
	StudentID     string
	FeeID         string
	InstallmentID string
	Channel       Channel
	Bucket        string
}

// Notifier is the outbound port to the notification dispatcher.
type Notifier interface {
	Notify(ctx context.Context, req Request) (DeliveryStatus, error)
}
