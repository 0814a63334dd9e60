// Package memory is an in-process payment register for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "feeledger/internal/export"
)

type Register struct {
	mu    sync.Mutex
	items []ports.Payment
	// Err, when set, is returned by every AppendPayment call.
	Err error
}

var _ ports.PaymentExporter = (*Register)(nil)

func New() *Register {
	return &Register{}
}

// AppendPayment stores the payment and returns a synthetic row reference.
func (r *Register) AppendPayment(_ context.Context, p ports.Payment) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	r.items = append(r.items, p)
	return fmt.Sprintf("mem:%d", len(r.items)), nil
}

// Payments returns a copy of everything exported so far.
func (r *Register) Payments() []ports.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.Payment, len(r.items))
	copy(out, r.items)
	return out
}
