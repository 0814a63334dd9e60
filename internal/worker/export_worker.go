// Package worker contains the background workers that drain the broker
// queues.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/export"
	"feeledger/internal/storage"
)

// ExportWorker mirrors recorded installment payments from SQLite to the
// external payment register.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	register  export.PaymentExporter
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, register export.PaymentExporter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		register:  register,
		batchSize: batchSize,
	}
}

// HandlePaymentMessage processes a single payment-recorded message from AMQP.
func (w *ExportWorker) HandlePaymentMessage(ctx context.Context, msg *amqp.PaymentRecordedMessage) error {
	slog.InfoContext(ctx, "Processing payment message",
		"fee_id", msg.FeeID,
		"installment_id", msg.InstallmentID)

	record, err := w.storage.GetPaymentRecord(ctx, msg.InstallmentID)
	if errors.Is(err, core.ErrInstallmentNotFound) {
		// No paid installment behind this message. Returning an error would
		// requeue it forever; drop it and let the pending scan pick the
		// payment up if it materializes later.
		slog.WarnContext(ctx, "Dropping payment message without a paid installment",
			"fee_id", msg.FeeID,
			"installment_id", msg.InstallmentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get payment record: %w", err)
	}

	if err := w.exportPayment(ctx, record); err != nil {
		return fmt.Errorf("export payment: %w", err)
	}
	return nil
}

// ProcessPendingPayments exports any payments still marked pending. Backup
// mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingPayments(ctx context.Context) error {
	pending, err := w.storage.PendingExportPayments(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending payments: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending payments", "count", len(pending))

	for _, record := range pending {
		if err := w.exportPayment(ctx, record); err != nil {
			slog.ErrorContext(ctx, "Failed to export payment",
				"installment_id", record.InstallmentID, "error", err)
			continue
		}
	}
	return nil
}

// StartupExportCheck drains the pending backlog at worker startup, recovering
// from missed messages or worker downtime.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	pending, err := w.storage.PendingExportPayments(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending payments for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending payments found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending payments on startup, processing...",
		"count", len(pending))

	exported := 0
	failed := 0
	for _, record := range pending {
		if err := w.exportPayment(ctx, record); err != nil {
			slog.ErrorContext(ctx, "Failed to export payment during startup",
				"installment_id", record.InstallmentID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)
	return nil
}

func (w *ExportWorker) exportPayment(ctx context.Context, record storage.PaymentRecord) error {
	payment := export.Payment{
		InstallmentID: record.InstallmentID,
		FeeID:         record.FeeID,
		StudentID:     record.StudentID,
		StudentName:   record.StudentName,
		AcademicYear:  record.AcademicYear,
		DueDate:       record.DueDate,
		Amount:        record.Amount,
		PaidDate:      record.PaidDate,
		ReceiptNumber: record.ReceiptNumber,
		PaymentMethod: record.PaymentMethod,
	}

	ref, err := w.register.AppendPayment(ctx, payment)
	if err != nil {
		if markErr := w.storage.MarkPaymentExportError(ctx, record.InstallmentID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"installment_id", record.InstallmentID, "error", markErr)
		}
		return fmt.Errorf("append to register: %w", err)
	}

	if err := w.storage.MarkPaymentExported(ctx, record.InstallmentID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark payment exported",
			"installment_id", record.InstallmentID, "error", err)
		// The export itself worked; the pending scan will retry the mark.
	}

	slog.InfoContext(ctx, "Successfully exported payment",
		"installment_id", record.InstallmentID,
		"sheets_ref", ref,
		"receipt_no", record.ReceiptNumber,
		"amount_paise", record.Amount.Paise)
	return nil
}
