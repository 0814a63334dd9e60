package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/export/memory"
	"feeledger/internal/storage"
)

func setupPaidFee(t *testing.T) (*storage.SQLiteRepository, core.Fee) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	fee, err := repo.CreateFee(ctx, core.Fee{
		StudentID:    "stu-1",
		StudentName:  "Asha Verma",
		AcademicYear: "2023-2024",
		TotalAmount:  core.Money{Paise: 10000_00},
		PoolAmount:   core.Money{Paise: 2000_00},
		Installments: []core.Installment{
			{DueDate: core.NewDate(2024, 1, 15), Amount: core.Money{Paise: 5000_00}, Status: core.StatusDue},
		},
	})
	if err != nil {
		t.Fatalf("create fee: %v", err)
	}

	inst := fee.Installments[0]
	if err := repo.MarkInstallmentPaid(ctx, fee.ID, inst.ID, core.NewDate(2024, 1, 10), "RCP-20240110-TEST0001", "upi"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	fee, err = repo.GetFee(ctx, fee.ID)
	if err != nil {
		t.Fatalf("reload fee: %v", err)
	}
	return repo, fee
}

func TestHandlePaymentMessage(t *testing.T) {
	repo, fee := setupPaidFee(t)
	register := memory.New()
	w := NewExportWorker(repo, register, 10)

	inst := fee.Installments[0]
	msg := &amqp.PaymentRecordedMessage{FeeID: fee.ID, InstallmentID: inst.ID}
	if err := w.HandlePaymentMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	payments := register.Payments()
	if len(payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(payments))
	}
	got := payments[0]
	if got.ReceiptNumber != "RCP-20240110-TEST0001" {
		t.Errorf("receipt = %q", got.ReceiptNumber)
	}
	if got.StudentName != "Asha Verma" {
		t.Errorf("student name = %q", got.StudentName)
	}
	if got.Amount.Paise != 5000_00 {
		t.Errorf("amount = %d", got.Amount.Paise)
	}

	// The record is no longer pending.
	pending, err := repo.PendingExportPayments(context.Background(), 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}
}

func TestHandlePaymentMessageDropsWithoutPaidInstallment(t *testing.T) {
	repo, fee := setupPaidFee(t)
	register := memory.New()
	w := NewExportWorker(repo, register, 10)

	// A second fee whose installment was never paid.
	unpaid, err := repo.CreateFee(context.Background(), core.Fee{
		StudentID:    "stu-2",
		StudentName:  "Ravi Iyer",
		AcademicYear: "2023-2024",
		TotalAmount:  core.Money{Paise: 10000_00},
		PoolAmount:   core.Money{Paise: 2000_00},
		Installments: []core.Installment{
			{DueDate: core.NewDate(2024, 2, 1), Amount: core.Money{Paise: 5000_00}, Status: core.StatusDue},
		},
	})
	if err != nil {
		t.Fatalf("create fee: %v", err)
	}

	// An error here would requeue the message forever; both cases must be
	// dropped instead.
	for _, msg := range []*amqp.PaymentRecordedMessage{
		{FeeID: fee.ID, InstallmentID: "nope"},
		{FeeID: unpaid.ID, InstallmentID: unpaid.Installments[0].ID},
	} {
		if err := w.HandlePaymentMessage(context.Background(), msg); err != nil {
			t.Fatalf("handle %s: %v", msg.InstallmentID, err)
		}
	}
	if len(register.Payments()) != 0 {
		t.Fatalf("payments = %d, want 0", len(register.Payments()))
	}
}

func TestProcessPendingPayments(t *testing.T) {
	repo, _ := setupPaidFee(t)
	register := memory.New()
	w := NewExportWorker(repo, register, 10)

	if err := w.ProcessPendingPayments(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(register.Payments()) != 1 {
		t.Fatalf("payments = %d, want 1", len(register.Payments()))
	}

	// A second sweep finds nothing left to do.
	if err := w.ProcessPendingPayments(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(register.Payments()) != 1 {
		t.Fatalf("payments after second sweep = %d, want 1", len(register.Payments()))
	}
}

func TestExportFailureMarksError(t *testing.T) {
	repo, _ := setupPaidFee(t)
	register := memory.New()
	register.Err = errors.New("quota exceeded")
	w := NewExportWorker(repo, register, 10)

	if err := w.ProcessPendingPayments(context.Background()); err != nil {
		t.Fatalf("a failed export must not fail the sweep: %v", err)
	}

	// The record moved to the error state and is not retried by the
	// pending scan.
	pending, err := repo.PendingExportPayments(context.Background(), 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}
}

func TestStartupExportCheck(t *testing.T) {
	repo, _ := setupPaidFee(t)
	register := memory.New()
	w := NewExportWorker(repo, register, 2)

	if err := w.StartupExportCheck(context.Background()); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	if len(register.Payments()) != 1 {
		t.Fatalf("payments = %d, want 1", len(register.Payments()))
	}
}
