package notify

import (
	"context"
	"sync"
)

// MemoryNotifier records requests in memory. Test double for the dispatcher.
type MemoryNotifier struct {
	mu       sync.Mutex
	requests []Request
	// Status returned for every request; defaults to delivered.
	Status DeliveryStatus
	// Err, when set, is returned alongside StatusFailed.
	Err error
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{Status: StatusDelivered}
}

func (n *MemoryNotifier) Notify(ctx context.Context, req Request) (DeliveryStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return StatusFailed, n.Err
	}
	n.requests = append(n.requests, req)
	return n.Status, nil
}

// Requests returns a copy of everything notified so far.
func (n *MemoryNotifier) Requests() []Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Request, len(n.requests))
	copy(out, n.requests)
	return out
}
