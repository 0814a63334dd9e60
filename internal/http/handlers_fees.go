package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"feeledger/internal/core"
)

func (s *Server) handleCreateFee(w http.ResponseWriter, r *http.Request) {
	var req createFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	totalPaise, err := core.ParseDecimalToPaise(req.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid total amount")
		return
	}
	poolPaise, err := core.ParseDecimalToPaise(req.PoolAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool amount")
		return
	}

	fee := core.Fee{
		StudentID:    sanitizeInput(req.StudentID),
		StudentName:  sanitizeInput(req.StudentName),
		AcademicYear: sanitizeInput(req.AcademicYear),
		TotalAmount:  core.Money{Paise: totalPaise},
		PoolAmount:   core.Money{Paise: poolPaise},
	}
	for _, instReq := range req.Installments {
		due, err := parseDate(instReq.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid installment due date")
			return
		}
		amountPaise, err := core.ParseDecimalToPaise(instReq.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid installment amount")
			return
		}
		fee.Installments = append(fee.Installments, core.Installment{
			DueDate: due,
			Amount:  core.Money{Paise: amountPaise},
			Status:  core.StatusDue,
		})
	}

	created, err := s.ledger.CreateFee(r.Context(), fee)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			writeError(w, http.StatusConflict, "fee already exists for this student and year")
			return
		}
		slog.ErrorContext(r.Context(), "Create fee failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.invalidateYear(created.AcademicYear)
	writeJSON(w, http.StatusCreated, toFeeResponse(created))
}

func (s *Server) handleGetFee(w http.ResponseWriter, r *http.Request) {
	fee, err := s.ledger.GetFee(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrFeeNotFound) {
		writeError(w, http.StatusNotFound, "fee not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Get fee failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load fee")
		return
	}
	writeJSON(w, http.StatusOK, toFeeResponse(fee))
}

func (s *Server) handleListFees(w http.ResponseWriter, r *http.Request) {
	year := strings.TrimSpace(r.URL.Query().Get("year"))
	if year == "" {
		year = s.academicYear
	}

	if cached, ok := s.summariesCache.Get(year); ok {
		writeSummaries(w, cached)
		return
	}

	summaries, err := s.ledger.SummarizeYear(r.Context(), year)
	if err != nil {
		slog.ErrorContext(r.Context(), "List fees failed", "year", year, "error", err)
		writeError(w, http.StatusInternalServerError, "could not list fees")
		return
	}

	s.summariesCache.Set(year, summaries)
	writeSummaries(w, summaries)
}

func writeSummaries(w http.ResponseWriter, summaries []core.FeeSummary) {
	out := make([]feeSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toSummaryResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	feeID := r.PathValue("id")

	var req addExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expense date")
		return
	}
	amountPaise, err := core.ParseDecimalToPaise(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expense amount")
		return
	}

	expense := core.Expense{
		Date:        date,
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Paise: amountPaise},
		Category:    core.ExpenseCategory(req.Category),
		BillNumber:  sanitizeInput(req.BillNumber),
	}

	recorded, err := s.ledger.AddExpense(r.Context(), feeID, expense)
	if err != nil {
		var insufficient *core.InsufficientPoolFundsError
		switch {
		case errors.As(err, &insufficient):
			writeJSON(w, http.StatusConflict, errorResponse{
				Error: "insufficient pool funds",
				Details: map[string]any{
					"attempted_paise": insufficient.Attempted.Paise,
					"attempted":       formatINR(insufficient.Attempted.Paise),
					"available_paise": insufficient.Available.Paise,
					"available":       formatINR(insufficient.Available.Paise),
				},
			})
		case errors.Is(err, core.ErrFeeNotFound):
			writeError(w, http.StatusNotFound, "fee not found")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	s.invalidateFeeYear(r.Context(), feeID)
	writeJSON(w, http.StatusCreated, toExpenseResponse(recorded))
}

func (s *Server) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	feeID := r.PathValue("id")
	installmentID := r.PathValue("installmentID")

	var req payInstallmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	paidDate, err := parseDate(req.PaidDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paid date")
		return
	}

	paid, err := s.ledger.PayInstallment(r.Context(), feeID, installmentID, paidDate, req.PaymentMethod)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrFeeNotFound):
			writeError(w, http.StatusNotFound, "fee not found")
		case errors.Is(err, core.ErrInstallmentNotFound):
			writeError(w, http.StatusNotFound, "installment not found")
		default:
			slog.ErrorContext(r.Context(), "Pay installment failed", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	s.invalidateFeeYear(r.Context(), feeID)
	writeJSON(w, http.StatusOK, toInstallmentResponse(paid))
}
