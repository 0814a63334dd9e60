package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/notify"
)

func testLogger() *log.Logger {
	return log.New(log.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
}

func reminderFee(id string, installments ...core.Installment) core.Fee {
	return core.Fee{
		ID:           id,
		StudentID:    "stu-" + id,
		StudentName:  "Student " + id,
		AcademicYear: "2023-2024",
		TotalAmount:  core.Money{Paise: 10000_00},
		PoolAmount:   core.Money{Paise: 2000_00},
		Installments: installments,
	}
}

func TestClassifyReminders(t *testing.T) {
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		inst         core.Installment
		wantOverdue  bool
		wantUpcoming bool
	}{
		{
			name:        "past due date is overdue",
			inst:        core.Installment{ID: "i1", DueDate: core.NewDate(2024, 1, 5), Status: core.StatusDue},
			wantOverdue: true,
		},
		{
			name:         "due inside the window is upcoming",
			inst:         core.Installment{ID: "i1", DueDate: core.NewDate(2024, 1, 15), Status: core.StatusDue},
			wantUpcoming: true,
		},
		{
			name: "due beyond the window is neither",
			inst: core.Installment{ID: "i1", DueDate: core.NewDate(2024, 2, 1), Status: core.StatusDue},
		},
		{
			name:         "due today is upcoming",
			inst:         core.Installment{ID: "i1", DueDate: core.NewDate(2024, 1, 10), Status: core.StatusDue},
			wantUpcoming: true,
		},
		{
			name:         "window boundary is inclusive",
			inst:         core.Installment{ID: "i1", DueDate: core.NewDate(2024, 1, 17), Status: core.StatusDue},
			wantUpcoming: true,
		},
		{
			name: "paid is never reminded",
			inst: core.Installment{ID: "i1", DueDate: core.NewDate(2024, 1, 5), Status: core.StatusPaid},
		},
		{
			name:        "stale stored status still classifies by date",
			inst:        core.Installment{ID: "i1", DueDate: core.NewDate(2024, 1, 5), Status: core.StatusOverdue},
			wantOverdue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees := []core.Fee{reminderFee("f1", tt.inst)}
			set := ClassifyReminders(fees, today, DefaultUpcomingWindowDays, DerivedResolver{})

			if got := len(set.Overdue) > 0; got != tt.wantOverdue {
				t.Errorf("overdue = %v, want %v", got, tt.wantOverdue)
			}
			if got := len(set.Upcoming) > 0; got != tt.wantUpcoming {
				t.Errorf("upcoming = %v, want %v", got, tt.wantUpcoming)
			}
		})
	}
}

func TestClassifyRemindersFeeInBothBuckets(t *testing.T) {
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	fee := reminderFee("f1",
		core.Installment{ID: "late", DueDate: core.NewDate(2024, 1, 5), Status: core.StatusDue},
		core.Installment{ID: "soon", DueDate: core.NewDate(2024, 1, 15), Status: core.StatusDue},
		core.Installment{ID: "done", DueDate: core.NewDate(2023, 12, 1), Status: core.StatusPaid},
	)

	set := ClassifyReminders([]core.Fee{fee}, today, 7, DerivedResolver{})

	if len(set.Overdue) != 1 || len(set.Overdue[0].Installments) != 1 || set.Overdue[0].Installments[0].ID != "late" {
		t.Fatalf("overdue bucket: %+v", set.Overdue)
	}
	if len(set.Upcoming) != 1 || len(set.Upcoming[0].Installments) != 1 || set.Upcoming[0].Installments[0].ID != "soon" {
		t.Fatalf("upcoming bucket: %+v", set.Upcoming)
	}
}

func TestClassifyRemindersStoredMode(t *testing.T) {
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	fee := reminderFee("f1",
		// stored overdue but future-dated: only the stored resolver flags it
		core.Installment{ID: "flagged", DueDate: core.NewDate(2024, 2, 1), Status: core.StatusOverdue},
		// stored due but past-dated: only the derived resolver flags it
		core.Installment{ID: "stale", DueDate: core.NewDate(2024, 1, 5), Status: core.StatusDue},
	)

	stored := ClassifyReminders([]core.Fee{fee}, today, 7, StoredResolver{})
	if len(stored.Overdue) != 1 || stored.Overdue[0].Installments[0].ID != "flagged" {
		t.Fatalf("stored overdue bucket: %+v", stored.Overdue)
	}
	if len(stored.Upcoming) != 0 {
		t.Fatalf("stored upcoming bucket: %+v", stored.Upcoming)
	}

	derived := ClassifyReminders([]core.Fee{fee}, today, 7, DerivedResolver{})
	if len(derived.Overdue) != 1 || derived.Overdue[0].Installments[0].ID != "stale" {
		t.Fatalf("derived overdue bucket: %+v", derived.Overdue)
	}
}

type staticFeeSource struct {
	fees []core.Fee
	err  error
}

func (s *staticFeeSource) ListFeesByYear(_ context.Context, _ string) ([]core.Fee, error) {
	return s.fees, s.err
}

func TestProcessReminders(t *testing.T) {
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	source := &staticFeeSource{fees: []core.Fee{
		reminderFee("f1",
			core.Installment{ID: "late", DueDate: core.NewDate(2024, 1, 5), Status: core.StatusDue},
			core.Installment{ID: "soon", DueDate: core.NewDate(2024, 1, 15), Status: core.StatusDue},
		),
		reminderFee("f2",
			core.Installment{ID: "paid", DueDate: core.NewDate(2024, 1, 5), Status: core.StatusPaid},
		),
	}}
	notifier := notify.NewMemoryNotifier()

	p := NewReminderProcessor(source, notifier, DerivedResolver{}, testLogger(), "2023-2024", 7, notify.ChannelSMS)
	sent, err := p.ProcessReminders(context.Background(), today)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}

	reqs := notifier.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	buckets := map[string]string{}
	for _, req := range reqs {
		buckets[req.InstallmentID] = req.Bucket
		if req.Channel != notify.ChannelSMS {
			t.Errorf("channel = %s, want sms", req.Channel)
		}
		if req.StudentID != "stu-f1" {
			t.Errorf("student = %s, want stu-f1", req.StudentID)
		}
	}
	if buckets["late"] != BucketOverdue || buckets["soon"] != BucketUpcoming {
		t.Fatalf("buckets = %v", buckets)
	}
}

func TestProcessRemindersNotifierFailure(t *testing.T) {
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	source := &staticFeeSource{fees: []core.Fee{
		reminderFee("f1", core.Installment{ID: "late", DueDate: core.NewDate(2024, 1, 5), Status: core.StatusDue}),
	}}
	notifier := notify.NewMemoryNotifier()
	notifier.Err = context.DeadlineExceeded

	p := NewReminderProcessor(source, notifier, DerivedResolver{}, testLogger(), "2023-2024", 7, notify.ChannelSMS)
	sent, err := p.ProcessReminders(context.Background(), today)
	if err != nil {
		t.Fatalf("a failed notification must not fail the sweep: %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent = %d, want 0", sent)
	}
}
