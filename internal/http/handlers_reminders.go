package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"feeledger/internal/core"
	"feeledger/internal/services"
)

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	today := time.Now()
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		today = parsed.Time
	}

	year := strings.TrimSpace(r.URL.Query().Get("year"))
	if year == "" {
		year = s.academicYear
	}

	fees, err := s.ledger.ListFeesByYear(r.Context(), year)
	if err != nil {
		slog.ErrorContext(r.Context(), "Reminder listing failed", "year", year, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load fees")
		return
	}

	set := services.ClassifyReminders(fees, today, s.windowDays, s.resolver)
	writeJSON(w, http.StatusOK, remindersResponse{
		Date:       today.Format("2006-01-02"),
		WindowDays: s.windowDays,
		Overdue:    toReminderFeeResponses(set.Overdue),
		Upcoming:   toReminderFeeResponses(set.Upcoming),
	})
}

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request) {
	marks, err := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("marks")), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid marks")
		return
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("total")), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid total")
		return
	}

	grade, err := core.ComputeGrade(marks, total)
	if err != nil {
		if errors.Is(err, core.ErrZeroTotalMarks) {
			writeError(w, http.StatusBadRequest, "total marks must be greater than zero")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, gradeResponse{
		MarksObtained: marks,
		TotalMarks:    total,
		Percentage:    marks / total * 100,
		Grade:         string(grade),
	})
}
