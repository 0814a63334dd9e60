package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"feeledger/internal/core"
	"feeledger/internal/log"
)

// LedgerStore is the persistence port the ledger service drives. The SQLite
// repository satisfies it; tests use an in-memory fake.
type LedgerStore interface {
	CreateFee(ctx context.Context, fee core.Fee) (core.Fee, error)
	GetFee(ctx context.Context, id string) (core.Fee, error)
	ListFeesByYear(ctx context.Context, academicYear string) ([]core.Fee, error)
	AddExpense(ctx context.Context, feeID string, e core.Expense) (core.Expense, error)
	MarkInstallmentPaid(ctx context.Context, feeID, installmentID string, paidDate core.Date, receiptNo, method string) error
}

// PaymentPublisher announces recorded payments to the message broker.
// Publishing is best effort; a broker outage never fails the payment itself.
type PaymentPublisher interface {
	PublishPaymentRecorded(ctx context.Context, feeID, installmentID string) error
}

// LedgerService implements the fee ledger operations on top of the store.
type LedgerService struct {
	store     LedgerStore
	publisher PaymentPublisher
	logger    *log.Logger
}

func NewLedgerService(store LedgerStore, publisher PaymentPublisher, logger *log.Logger) *LedgerService {
	return &LedgerService{store: store, publisher: publisher, logger: logger}
}

// CreateFee validates and persists a new fee record. Installments without a
// status default to due.
func (s *LedgerService) CreateFee(ctx context.Context, fee core.Fee) (core.Fee, error) {
	for i := range fee.Installments {
		if fee.Installments[i].Status == "" {
			fee.Installments[i].Status = core.StatusDue
		}
	}
	if err := fee.Validate(); err != nil {
		return core.Fee{}, err
	}

	created, err := s.store.CreateFee(ctx, fee)
	if err != nil {
		return core.Fee{}, fmt.Errorf("create fee: %w", err)
	}

	s.logger.InfoContext(ctx, "fee created",
		log.FieldFeeID, created.ID,
		log.FieldStudentID, created.StudentID,
		log.FieldAcademicYear, created.AcademicYear,
		log.FieldAmountPaise, created.TotalAmount.Paise,
	)
	return created, nil
}

// GetFee loads one fee with its installments and expenses.
func (s *LedgerService) GetFee(ctx context.Context, id string) (core.Fee, error) {
	return s.store.GetFee(ctx, id)
}

// ListFeesByYear loads every fee for an academic year.
func (s *LedgerService) ListFeesByYear(ctx context.Context, academicYear string) ([]core.Fee, error) {
	return s.store.ListFeesByYear(ctx, academicYear)
}

// SummarizeYear returns one summary row per fee in the year.
func (s *LedgerService) SummarizeYear(ctx context.Context, academicYear string) ([]core.FeeSummary, error) {
	fees, err := s.store.ListFeesByYear(ctx, academicYear)
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	summaries := make([]core.FeeSummary, 0, len(fees))
	for _, fee := range fees {
		summaries = append(summaries, core.Summarize(fee))
	}
	return summaries, nil
}

// AddExpense records a pool expense against a fee. The expense is validated
// before any balance is consulted; the balance check itself happens inside
// the store transaction so concurrent expenses cannot overdraw the pool.
func (s *LedgerService) AddExpense(ctx context.Context, feeID string, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	recorded, err := s.store.AddExpense(ctx, feeID, e)
	if err != nil {
		return core.Expense{}, err
	}

	s.logger.InfoContext(ctx, "expense recorded",
		log.FieldFeeID, feeID,
		log.FieldExpenseID, recorded.ID,
		log.FieldAmountPaise, recorded.Amount.Paise,
		log.FieldCategory, string(recorded.Category),
	)
	return recorded, nil
}

// PayInstallment marks an installment paid, stamps a generated receipt
// number, and announces the payment to the broker. No check is made that the
// paid amount matches anything; the installment's own amount is the amount
// paid.
func (s *LedgerService) PayInstallment(ctx context.Context, feeID, installmentID string, paidDate core.Date, method string) (core.Installment, error) {
	if err := paidDate.Validate(); err != nil {
		return core.Installment{}, err
	}

	receiptNo := newReceiptNumber(paidDate.Time)
	if err := s.store.MarkInstallmentPaid(ctx, feeID, installmentID, paidDate, receiptNo, method); err != nil {
		return core.Installment{}, err
	}

	fee, err := s.store.GetFee(ctx, feeID)
	if err != nil {
		return core.Installment{}, fmt.Errorf("reload fee after payment: %w", err)
	}
	inst, err := fee.FindInstallment(installmentID)
	if err != nil {
		return core.Installment{}, err
	}

	s.logger.InfoContext(ctx, "installment paid",
		log.FieldFeeID, feeID,
		log.FieldInstallmentID, installmentID,
		log.FieldReceiptNo, receiptNo,
		log.FieldAmountPaise, inst.Amount.Paise,
	)

	if s.publisher != nil {
		if err := s.publisher.PublishPaymentRecorded(ctx, feeID, installmentID); err != nil {
			s.logger.WarnContext(ctx, "payment publish failed",
				log.FieldFeeID, feeID,
				log.FieldInstallmentID, installmentID,
				log.FieldError, err,
			)
		}
	}
	return inst, nil
}

// newReceiptNumber builds a receipt like RCP-20240110-1A2B3C4D. The date part
// makes receipts human-sortable; the uuid fragment keeps them unique.
func newReceiptNumber(paidDate time.Time) string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("RCP-%s-%s", paidDate.Format("20060102"), frag)
}
