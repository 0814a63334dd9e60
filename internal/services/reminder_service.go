package services

import (
	"context"
	"fmt"
	"time"

	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/notify"
)

// DefaultUpcomingWindowDays is how far ahead an unpaid installment is still
// worth a reminder.
const DefaultUpcomingWindowDays = 7

const (
	BucketOverdue  = "overdue"
	BucketUpcoming = "upcoming"
)

// FeeReminder pairs a fee with the installments that qualified it for a
// reminder bucket.
type FeeReminder struct {
	Fee          core.Fee
	Installments []core.Installment
}

// ReminderSet is the outcome of one classification run. A fee can appear in
// both buckets when it has one installment past due and another inside the
// upcoming window.
type ReminderSet struct {
	Overdue  []FeeReminder
	Upcoming []FeeReminder
}

// ClassifyReminders walks every installment of every fee and sorts the
// non-paid ones into overdue and upcoming buckets. Effective status comes
// from the resolver; an installment whose effective status is due only lands
// in the upcoming bucket when its due date falls inside [today, today+window].
// Dates are compared at day granularity.
func ClassifyReminders(fees []core.Fee, today time.Time, windowDays int, resolver StatusResolver) ReminderSet {
	if windowDays <= 0 {
		windowDays = DefaultUpcomingWindowDays
	}
	day := truncateDay(today)
	horizon := day.AddDate(0, 0, windowDays)

	var set ReminderSet
	for _, fee := range fees {
		var overdue, upcoming []core.Installment
		for _, inst := range fee.Installments {
			switch resolver.Resolve(inst, today) {
			case core.StatusOverdue:
				overdue = append(overdue, inst)
			case core.StatusDue:
				due := truncateDay(inst.DueDate.Time)
				if !due.Before(day) && !due.After(horizon) {
					upcoming = append(upcoming, inst)
				}
			}
		}
		if len(overdue) > 0 {
			set.Overdue = append(set.Overdue, FeeReminder{Fee: fee, Installments: overdue})
		}
		if len(upcoming) > 0 {
			set.Upcoming = append(set.Upcoming, FeeReminder{Fee: fee, Installments: upcoming})
		}
	}
	return set
}

// FeeSource lists the fees a reminder run should consider.
type FeeSource interface {
	ListFeesByYear(ctx context.Context, academicYear string) ([]core.Fee, error)
}

// ReminderProcessor runs periodic reminder sweeps: fetch the year's fees,
// classify installments, and hand one request per qualifying installment to
// the notifier.
type ReminderProcessor struct {
	fees         FeeSource
	notifier     notify.Notifier
	resolver     StatusResolver
	logger       *log.Logger
	academicYear string
	windowDays   int
	channel      notify.Channel
}

func NewReminderProcessor(fees FeeSource, notifier notify.Notifier, resolver StatusResolver, logger *log.Logger, academicYear string, windowDays int, channel notify.Channel) *ReminderProcessor {
	if windowDays <= 0 {
		windowDays = DefaultUpcomingWindowDays
	}
	return &ReminderProcessor{
		fees:         fees,
		notifier:     notifier,
		resolver:     resolver,
		logger:       logger,
		academicYear: academicYear,
		windowDays:   windowDays,
		channel:      channel,
	}
}

// ProcessReminders runs one sweep as of now and returns how many reminders
// were handed to the notifier. A failed notification is logged and does not
// stop the sweep.
func (p *ReminderProcessor) ProcessReminders(ctx context.Context, now time.Time) (int, error) {
	fees, err := p.fees.ListFeesByYear(ctx, p.academicYear)
	if err != nil {
		return 0, fmt.Errorf("list fees for %s: %w", p.academicYear, err)
	}

	set := ClassifyReminders(fees, now, p.windowDays, p.resolver)

	sent := 0
	sent += p.notifyBucket(ctx, BucketOverdue, set.Overdue)
	sent += p.notifyBucket(ctx, BucketUpcoming, set.Upcoming)

	p.logger.Info("reminder sweep complete",
		log.FieldAcademicYear, p.academicYear,
		"overdue_fees", len(set.Overdue),
		"upcoming_fees", len(set.Upcoming),
		"notified", sent,
	)
	return sent, nil
}

func (p *ReminderProcessor) notifyBucket(ctx context.Context, bucket string, reminders []FeeReminder) int {
	sent := 0
	for _, r := range reminders {
		for _, inst := range r.Installments {
			req := notify.Request{
				StudentID:     r.Fee.StudentID,
				FeeID:         r.Fee.ID,
				InstallmentID: inst.ID,
				Channel:       p.channel,
				Bucket:        bucket,
			}
			status, err := p.notifier.Notify(ctx, req)
			if err != nil {
				p.logger.Error("notify failed",
					log.FieldFeeID, r.Fee.ID,
					log.FieldInstallmentID, inst.ID,
					log.FieldBucket, bucket,
					log.FieldError, err,
				)
				continue
			}
			p.logger.Info("reminder dispatched",
				log.FieldFeeID, r.Fee.ID,
				log.FieldInstallmentID, inst.ID,
				log.FieldBucket, bucket,
				"delivery_status", string(status),
			)
			sent++
		}
	}
	return sent
}
