// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for interpreting installment
// status. The source data carries a stored status field, but overdue-ness can
// also be re-derived from the due date at read time; which one is
// authoritative is a configuration choice, so both interpretations are
// available behind one interface.

package services

import (
	"fmt"
	"time"

	"feeledger/internal/core"
)

const (
	// ModeStored trusts the status field persisted on the installment.
	ModeStored = "stored"
	// ModeDerived recomputes due/overdue from the due date at read time;
	// only paid is taken from the stored field.
	ModeDerived = "derived"
)

// StatusResolver resolves the effective status of an installment as of a
// given day.
type StatusResolver interface {
	Resolve(inst core.Installment, today time.Time) core.InstallmentStatus
}

// StoredResolver treats the persisted status field as authoritative.
type StoredResolver struct{}

func (StoredResolver) Resolve(inst core.Installment, _ time.Time) core.InstallmentStatus {
	return inst.Status
}

// DerivedResolver recomputes status from the due date. Paid stays paid; an
// unpaid installment is overdue once its due date is strictly in the past,
// due otherwise. The stored due/overdue value is ignored, matching the
// reminder behavior of the original system.
type DerivedResolver struct{}

func (DerivedResolver) Resolve(inst core.Installment, today time.Time) core.InstallmentStatus {
	if inst.Status == core.StatusPaid {
		return core.StatusPaid
	}
	if truncateDay(inst.DueDate.Time).Before(truncateDay(today)) {
		return core.StatusOverdue
	}
	return core.StatusDue
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// statusResolvers maps configuration modes to their resolvers.
var statusResolvers = map[string]StatusResolver{
	ModeStored:  StoredResolver{},
	ModeDerived: DerivedResolver{},
}

// GetStatusResolver returns the resolver for a configured mode.
func GetStatusResolver(mode string) (StatusResolver, error) {
	resolver, ok := statusResolvers[mode]
	if !ok {
		return nil, fmt.Errorf("unknown status mode: %s", mode)
	}
	return resolver, nil
}
