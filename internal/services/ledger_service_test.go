package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"feeledger/internal/core"
)

type fakeStore struct {
	fees map[string]core.Fee

	addExpenseCalls int
	addExpenseErr   error
	markPaidErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{fees: make(map[string]core.Fee)}
}

func (f *fakeStore) CreateFee(_ context.Context, fee core.Fee) (core.Fee, error) {
	if fee.ID == "" {
		fee.ID = "fee-1"
	}
	f.fees[fee.ID] = fee
	return fee, nil
}

func (f *fakeStore) GetFee(_ context.Context, id string) (core.Fee, error) {
	fee, ok := f.fees[id]
	if !ok {
		return core.Fee{}, core.ErrFeeNotFound
	}
	return fee, nil
}

func (f *fakeStore) ListFeesByYear(_ context.Context, year string) ([]core.Fee, error) {
	var out []core.Fee
	for _, fee := range f.fees {
		if fee.AcademicYear == year {
			out = append(out, fee)
		}
	}
	return out, nil
}

func (f *fakeStore) AddExpense(_ context.Context, feeID string, e core.Expense) (core.Expense, error) {
	f.addExpenseCalls++
	if f.addExpenseErr != nil {
		return core.Expense{}, f.addExpenseErr
	}
	fee, ok := f.fees[feeID]
	if !ok {
		return core.Expense{}, core.ErrFeeNotFound
	}
	e.ID = "exp-1"
	fee.Expenses = append(fee.Expenses, e)
	f.fees[feeID] = fee
	return e, nil
}

func (f *fakeStore) MarkInstallmentPaid(_ context.Context, feeID, installmentID string, paidDate core.Date, receiptNo, method string) error {
	if f.markPaidErr != nil {
		return f.markPaidErr
	}
	fee, ok := f.fees[feeID]
	if !ok {
		return core.ErrFeeNotFound
	}
	for i := range fee.Installments {
		if fee.Installments[i].ID == installmentID {
			fee.Installments[i].Status = core.StatusPaid
			fee.Installments[i].PaidDate = paidDate
			fee.Installments[i].ReceiptNumber = receiptNo
			fee.Installments[i].PaymentMethod = method
			f.fees[feeID] = fee
			return nil
		}
	}
	return core.ErrInstallmentNotFound
}

type recordingPublisher struct {
	published [][2]string
	err       error
}

func (p *recordingPublisher) PublishPaymentRecorded(_ context.Context, feeID, installmentID string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, [2]string{feeID, installmentID})
	return nil
}

func serviceFee() core.Fee {
	return core.Fee{
		StudentID:    "stu-1",
		StudentName:  "Asha Verma",
		AcademicYear: "2023-2024",
		TotalAmount:  core.Money{Paise: 10000_00},
		PoolAmount:   core.Money{Paise: 2000_00},
		Installments: []core.Installment{
			{ID: "inst-1", DueDate: core.NewDate(2024, 1, 15), Amount: core.Money{Paise: 5000_00}, Status: core.StatusDue},
		},
	}
}

func TestCreateFeeDefaultsInstallmentStatus(t *testing.T) {
	store := newFakeStore()
	svc := NewLedgerService(store, nil, testLogger())

	fee := serviceFee()
	fee.Installments[0].Status = ""
	created, err := svc.CreateFee(context.Background(), fee)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Installments[0].Status != core.StatusDue {
		t.Errorf("status = %s, want due", created.Installments[0].Status)
	}
}

func TestCreateFeeRejectsInvalid(t *testing.T) {
	store := newFakeStore()
	svc := NewLedgerService(store, nil, testLogger())

	fee := serviceFee()
	fee.PoolAmount = core.Money{Paise: fee.TotalAmount.Paise + 1}
	if _, err := svc.CreateFee(context.Background(), fee); err == nil {
		t.Fatal("expected error for pool exceeding total")
	}
	if len(store.fees) != 0 {
		t.Fatal("invalid fee must not reach the store")
	}
}

func TestAddExpenseValidatesBeforeStore(t *testing.T) {
	store := newFakeStore()
	svc := NewLedgerService(store, nil, testLogger())

	tests := []struct {
		name    string
		expense core.Expense
		wantErr error
	}{
		{
			name: "zero amount",
			expense: core.Expense{
				Date:        core.NewDate(2024, 1, 10),
				Description: "bandages",
				Amount:      core.Money{Paise: 0},
				Category:    core.CategoryMedical,
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			expense: core.Expense{
				Date:        core.NewDate(2024, 1, 10),
				Description: "bandages",
				Amount:      core.Money{Paise: -500},
				Category:    core.CategoryMedical,
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "blank description",
			expense: core.Expense{
				Date:     core.NewDate(2024, 1, 10),
				Amount:   core.Money{Paise: 500_00},
				Category: core.CategoryStationary,
			},
			wantErr: core.ErrEmptyDescription,
		},
		{
			name: "unknown category",
			expense: core.Expense{
				Date:        core.NewDate(2024, 1, 10),
				Description: "bandages",
				Amount:      core.Money{Paise: 500_00},
				Category:    core.ExpenseCategory("snacks"),
			},
			wantErr: core.ErrInvalidCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddExpense(context.Background(), "fee-1", tt.expense)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if store.addExpenseCalls != 0 {
		t.Fatalf("invalid expenses must be rejected before the store is consulted, got %d calls", store.addExpenseCalls)
	}
}

func TestAddExpensePassesThroughPoolError(t *testing.T) {
	store := newFakeStore()
	store.addExpenseErr = &core.InsufficientPoolFundsError{
		Attempted: core.Money{Paise: 800_00},
		Available: core.Money{Paise: 700_00},
	}
	svc := NewLedgerService(store, nil, testLogger())

	_, err := svc.AddExpense(context.Background(), "fee-1", core.Expense{
		Date:        core.NewDate(2024, 1, 10),
		Description: "notebooks",
		Amount:      core.Money{Paise: 800_00},
		Category:    core.CategoryStationary,
	})
	var poolErr *core.InsufficientPoolFundsError
	if !errors.As(err, &poolErr) {
		t.Fatalf("err = %v, want InsufficientPoolFundsError", err)
	}
	if poolErr.Available.Paise != 700_00 {
		t.Errorf("available = %d, want 70000", poolErr.Available.Paise)
	}
}

func TestPayInstallment(t *testing.T) {
	store := newFakeStore()
	publisher := &recordingPublisher{}
	svc := NewLedgerService(store, publisher, testLogger())

	created, err := svc.CreateFee(context.Background(), serviceFee())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paid, err := svc.PayInstallment(context.Background(), created.ID, "inst-1", core.NewDate(2024, 1, 10), "upi")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != core.StatusPaid {
		t.Errorf("status = %s, want paid", paid.Status)
	}
	if !paid.PaidDate.Equal(core.NewDate(2024, 1, 10).Time) {
		t.Errorf("paid date = %v", paid.PaidDate)
	}
	if !strings.HasPrefix(paid.ReceiptNumber, "RCP-20240110-") {
		t.Errorf("receipt = %q", paid.ReceiptNumber)
	}
	if paid.PaymentMethod != "upi" {
		t.Errorf("method = %q, want upi", paid.PaymentMethod)
	}
	if len(publisher.published) != 1 || publisher.published[0] != [2]string{created.ID, "inst-1"} {
		t.Fatalf("published = %v", publisher.published)
	}
}

func TestPayInstallmentPublishFailureDoesNotFailPayment(t *testing.T) {
	store := newFakeStore()
	publisher := &recordingPublisher{err: errors.New("broker down")}
	svc := NewLedgerService(store, publisher, testLogger())

	created, err := svc.CreateFee(context.Background(), serviceFee())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paid, err := svc.PayInstallment(context.Background(), created.ID, "inst-1", core.NewDate(2024, 1, 10), "cash")
	if err != nil {
		t.Fatalf("pay must survive a broker outage: %v", err)
	}
	if paid.Status != core.StatusPaid {
		t.Errorf("status = %s, want paid", paid.Status)
	}
}

func TestPayInstallmentUnknownInstallment(t *testing.T) {
	store := newFakeStore()
	svc := NewLedgerService(store, nil, testLogger())

	created, err := svc.CreateFee(context.Background(), serviceFee())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.PayInstallment(context.Background(), created.ID, "nope", core.NewDate(2024, 1, 10), "cash")
	if !errors.Is(err, core.ErrInstallmentNotFound) {
		t.Fatalf("err = %v, want ErrInstallmentNotFound", err)
	}
}

func TestSummarizeYear(t *testing.T) {
	store := newFakeStore()
	svc := NewLedgerService(store, nil, testLogger())

	if _, err := svc.CreateFee(context.Background(), serviceFee()); err != nil {
		t.Fatalf("create: %v", err)
	}

	summaries, err := svc.SummarizeYear(context.Background(), "2023-2024")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	if summaries[0].RemainingPool.Paise != 2000_00 {
		t.Errorf("remaining pool = %d, want 200000", summaries[0].RemainingPool.Paise)
	}

	none, err := svc.SummarizeYear(context.Background(), "2019-2020")
	if err != nil {
		t.Fatalf("summarize empty year: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no summaries, got %d", len(none))
	}
}
