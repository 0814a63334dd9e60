package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPaid    InstallmentStatus = "paid"
	StatusDue     InstallmentStatus = "due"
	StatusOverdue InstallmentStatus = "overdue"
)

const (
	CategoryMedical    ExpenseCategory = "medical"
	CategoryStationary ExpenseCategory = "stationary"
)

type (
	InstallmentStatus string
	ExpenseCategory   string

	Date struct {
		time.Time
	}

	Money struct {
		Paise int64
	}

	// Installment is one scheduled partial payment toward a fee's total.
	// Status is assigned when the schedule is provisioned and flips to paid
	// when a payment is recorded; installments are never deleted.
	Installment struct {
		ID            string
		DueDate       Date
		Amount        Money
		Status        InstallmentStatus
		PaidDate      Date   // zero until paid
		ReceiptNumber string // assigned when paid
		PaymentMethod string
	}

	// Expense is an itemized draw against a fee's medical-and-stationary
	// pool. Immutable once recorded; there is no reversal operation.
	Expense struct {
		ID          string
		Date        Date
		Description string
		Amount      Money
		Category    ExpenseCategory
		BillNumber  string
	}

	// Fee holds the ledger for one student in one academic year. PoolAmount
	// is a ring-fenced sub-allocation of TotalAmount, independent of the
	// installment schedule.
	Fee struct {
		ID           string
		StudentID    string
		StudentName  string
		AcademicYear string // e.g. "2024-25"
		TotalAmount  Money
		PoolAmount   Money
		Installments []Installment
		Expenses     []Expense
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrInvalidCategory     = errors.New("invalid expense category")
	ErrInvalidStatus       = errors.New("invalid installment status")
	ErrEmptyStudent        = errors.New("empty student identifier")
	ErrEmptyAcademicYear   = errors.New("empty academic year")
	ErrFeeNotFound         = errors.New("fee not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrZeroTotalMarks      = errors.New("total marks must be greater than zero")
)

// InsufficientPoolFundsError reports a rejected expense together with the
// attempted amount and the balance available at the time of the check, so
// callers can display both.
type InsufficientPoolFundsError struct {
	Attempted Money
	Available Money
}

func (e *InsufficientPoolFundsError) Error() string {
	return "insufficient pool funds: attempted " + e.Attempted.String() + ", available " + e.Available.String()
}

func (s InstallmentStatus) Valid() bool {
	switch s {
	case StatusPaid, StatusDue, StatusOverdue:
		return true
	}
	return false
}

func (c ExpenseCategory) Valid() bool {
	switch c {
	case CategoryMedical, CategoryStationary:
		return true
	}
	return false
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NewDate creates a new Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (m Money) Validate() error {
	if m.Paise <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (i Installment) Validate() error {
	if err := i.DueDate.Validate(); err != nil {
		return err
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if !i.Status.Valid() {
		return ErrInvalidStatus
	}
	if i.Status == StatusPaid && i.PaidDate.IsZero() {
		return errors.New("paid installment missing paid date")
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}

func (f Fee) Validate() error {
	if strings.TrimSpace(f.StudentID) == "" {
		return ErrEmptyStudent
	}
	if strings.TrimSpace(f.AcademicYear) == "" {
		return ErrEmptyAcademicYear
	}
	if err := f.TotalAmount.Validate(); err != nil {
		return err
	}
	// Pool may be zero (no ring-fenced budget), never negative.
	if f.PoolAmount.Paise < 0 {
		return ErrInvalidAmount
	}
	if f.PoolAmount.Paise > f.TotalAmount.Paise {
		return errors.New("pool amount exceeds total amount")
	}
	for _, inst := range f.Installments {
		if err := inst.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SpentFromPool sums the recorded expense amounts.
func (f Fee) SpentFromPool() Money {
	var total int64
	for _, e := range f.Expenses {
		total += e.Amount.Paise
	}
	return Money{Paise: total}
}

// RemainingPool is the pool amount minus all recorded expenses. Always
// recomputed from the expense list; a stored balance would go stale as soon
// as another expense lands.
func (f Fee) RemainingPool() Money {
	return Money{Paise: f.PoolAmount.Paise - f.SpentFromPool().Paise}
}

// PaymentStatus derives the fee-level status for list views: overdue wins
// over due, a fee with no unpaid installments is paid.
func (f Fee) PaymentStatus() InstallmentStatus {
	hasDue := false
	for _, inst := range f.Installments {
		switch inst.Status {
		case StatusOverdue:
			return StatusOverdue
		case StatusDue:
			hasDue = true
		}
	}
	if hasDue {
		return StatusDue
	}
	return StatusPaid
}

// FindInstallment returns the installment with the given id, or
// ErrInstallmentNotFound.
func (f Fee) FindInstallment(id string) (Installment, error) {
	for _, inst := range f.Installments {
		if inst.ID == id {
			return inst, nil
		}
	}
	return Installment{}, ErrInstallmentNotFound
}
