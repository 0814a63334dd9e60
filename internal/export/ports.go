// Package export defines the outbound port for mirroring recorded payments
// to an external register, plus adapters for Google Sheets and memory.
package export

import (
	"context"

	"feeledger/internal/core"
)

// Payment is one recorded installment payment in the shape the register
// wants, independent of how it is stored.
type Payment struct {
	InstallmentID string
	FeeID         string
	StudentID     string
	StudentName   string
	AcademicYear  string
	DueDate       core.Date
	Amount        core.Money
	PaidDate      core.Date
	ReceiptNumber string
	PaymentMethod string
}

// PaymentExporter appends one payment row to the register and returns a
// reference to where it landed.
type PaymentExporter interface {
	AppendPayment(ctx context.Context, p Payment) (rowRef string, err error)
}
