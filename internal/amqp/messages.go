package amqp

import (
	"encoding/json"
	"time"
)

// PaymentRecordedMessage is a lightweight envelope published when an
// installment is paid. Contains only ids; the export worker fetches the full
// payment record from the database.
type PaymentRecordedMessage struct {
	FeeID         string    `json:"fee_id"`
	InstallmentID string    `json:"installment_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReminderMessage tells the notification dispatcher that a fee is
// reminder-eligible. Bucket is "overdue" or "upcoming".
type ReminderMessage struct {
	FeeID         string    `json:"fee_id"`
	StudentID     string    `json:"student_id"`
	InstallmentID string    `json:"installment_id"`
	Bucket        string    `json:"bucket"`
	Channel       string    `json:"channel"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewPaymentRecordedMessage(feeID, installmentID string) *PaymentRecordedMessage {
	return &PaymentRecordedMessage{
		FeeID:         feeID,
		InstallmentID: installmentID,
		Timestamp:     time.Now(),
	}
}

func (m *PaymentRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PaymentRecordedMessageFromJSON(data []byte) (*PaymentRecordedMessage, error) {
	var msg PaymentRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
