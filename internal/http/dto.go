package http

import (
	"github.com/go-playground/validator/v10"

	"feeledger/internal/core"
	"feeledger/internal/services"
)

var validate = validator.New()

type createInstallmentRequest struct {
	DueDate string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Amount  string `json:"amount" validate:"required"`
}

type createFeeRequest struct {
	StudentID    string                     `json:"student_id" validate:"required"`
	StudentName  string                     `json:"student_name" validate:"required"`
	AcademicYear string                     `json:"academic_year" validate:"required"`
	TotalAmount  string                     `json:"total_amount" validate:"required"`
	PoolAmount   string                     `json:"pool_amount" validate:"required"`
	Installments []createInstallmentRequest `json:"installments" validate:"dive"`
}

type addExpenseRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Category    string `json:"category" validate:"required,oneof=medical stationary"`
	BillNumber  string `json:"bill_number" validate:"omitempty,max=64"`
}

type payInstallmentRequest struct {
	PaidDate      string `json:"paid_date" validate:"required,datetime=2006-01-02"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash upi card cheque"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type installmentResponse struct {
	ID            string `json:"id"`
	DueDate       string `json:"due_date"`
	AmountPaise   int64  `json:"amount_paise"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	PaidDate      string `json:"paid_date,omitempty"`
	ReceiptNumber string `json:"receipt_no,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type expenseResponse struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	AmountPaise int64  `json:"amount_paise"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	BillNumber  string `json:"bill_number,omitempty"`
}

type feeResponse struct {
	ID             string                `json:"id"`
	StudentID      string                `json:"student_id"`
	StudentName    string                `json:"student_name"`
	AcademicYear   string                `json:"academic_year"`
	TotalPaise     int64                 `json:"total_amount_paise"`
	TotalAmount    string                `json:"total_amount"`
	PoolPaise      int64                 `json:"pool_amount_paise"`
	PoolAmount     string                `json:"pool_amount"`
	SpentPaise     int64                 `json:"spent_from_pool_paise"`
	SpentFromPool  string                `json:"spent_from_pool"`
	RemainingPaise int64                 `json:"remaining_pool_paise"`
	RemainingPool  string                `json:"remaining_pool"`
	PaymentStatus  string                `json:"payment_status"`
	Installments   []installmentResponse `json:"installments"`
	Expenses       []expenseResponse     `json:"expenses"`
}

type feeSummaryResponse struct {
	FeeID         string `json:"fee_id"`
	StudentID     string `json:"student_id"`
	StudentName   string `json:"student_name"`
	AcademicYear  string `json:"academic_year"`
	TotalAmount   string `json:"total_amount"`
	RemainingPool string `json:"remaining_pool"`
	PaymentStatus string `json:"payment_status"`
}

type reminderFeeResponse struct {
	FeeID        string                `json:"fee_id"`
	StudentID    string                `json:"student_id"`
	StudentName  string                `json:"student_name"`
	Installments []installmentResponse `json:"installments"`
}

type remindersResponse struct {
	Date       string                `json:"date"`
	WindowDays int                   `json:"window_days"`
	Overdue    []reminderFeeResponse `json:"overdue"`
	Upcoming   []reminderFeeResponse `json:"upcoming"`
}

type gradeResponse struct {
	MarksObtained float64 `json:"marks_obtained"`
	TotalMarks    float64 `json:"total_marks"`
	Percentage    float64 `json:"percentage"`
	Grade         string  `json:"grade"`
}

func toInstallmentResponse(inst core.Installment) installmentResponse {
	resp := installmentResponse{
		ID:            inst.ID,
		DueDate:       inst.DueDate.Format("2006-01-02"),
		AmountPaise:   inst.Amount.Paise,
		Amount:        formatINR(inst.Amount.Paise),
		Status:        string(inst.Status),
		ReceiptNumber: inst.ReceiptNumber,
		PaymentMethod: inst.PaymentMethod,
	}
	if !inst.PaidDate.IsZero() {
		resp.PaidDate = inst.PaidDate.Format("2006-01-02")
	}
	return resp
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Date:        e.Date.Format("2006-01-02"),
		Description: e.Description,
		AmountPaise: e.Amount.Paise,
		Amount:      formatINR(e.Amount.Paise),
		Category:    string(e.Category),
		BillNumber:  e.BillNumber,
	}
}

func toFeeResponse(fee core.Fee) feeResponse {
	spent := fee.SpentFromPool()
	remaining := fee.RemainingPool()

	resp := feeResponse{
		ID:             fee.ID,
		StudentID:      fee.StudentID,
		StudentName:    fee.StudentName,
		AcademicYear:   fee.AcademicYear,
		TotalPaise:     fee.TotalAmount.Paise,
		TotalAmount:    formatINR(fee.TotalAmount.Paise),
		PoolPaise:      fee.PoolAmount.Paise,
		PoolAmount:     formatINR(fee.PoolAmount.Paise),
		SpentPaise:     spent.Paise,
		SpentFromPool:  formatINR(spent.Paise),
		RemainingPaise: remaining.Paise,
		RemainingPool:  formatINR(remaining.Paise),
		PaymentStatus:  string(fee.PaymentStatus()),
		Installments:   make([]installmentResponse, 0, len(fee.Installments)),
		Expenses:       make([]expenseResponse, 0, len(fee.Expenses)),
	}
	for _, inst := range fee.Installments {
		resp.Installments = append(resp.Installments, toInstallmentResponse(inst))
	}
	for _, e := range fee.Expenses {
		resp.Expenses = append(resp.Expenses, toExpenseResponse(e))
	}
	return resp
}

func toSummaryResponse(s core.FeeSummary) feeSummaryResponse {
	return feeSummaryResponse{
		FeeID:         s.FeeID,
		StudentID:     s.StudentID,
		StudentName:   s.StudentName,
		AcademicYear:  s.AcademicYear,
		TotalAmount:   formatINR(s.TotalAmount.Paise),
		RemainingPool: formatINR(s.RemainingPool.Paise),
		PaymentStatus: string(s.Status),
	}
}

func toReminderFeeResponses(reminders []services.FeeReminder) []reminderFeeResponse {
	out := make([]reminderFeeResponse, 0, len(reminders))
	for _, r := range reminders {
		resp := reminderFeeResponse{
			FeeID:        r.Fee.ID,
			StudentID:    r.Fee.StudentID,
			StudentName:  r.Fee.StudentName,
			Installments: make([]installmentResponse, 0, len(r.Installments)),
		}
		for _, inst := range r.Installments {
			resp.Installments = append(resp.Installments, toInstallmentResponse(inst))
		}
		out = append(out, resp)
	}
	return out
}
