package exec

import (
	"sync"

	"laddr/internal/gateway/exchange"
)

// PendingBook tracks orders whose terminal state is unknown (submit or poll
// timed out). The reconciler drains it: each entry is re-queried against the
// venue and either applied as a fill or discarded.
type PendingBook struct {
	mu     sync.Mutex
	orders map[string]exchange.OrderRequest
}

func NewPendingBook() *PendingBook {
	return &PendingBook{orders: make(map[string]exchange.OrderRequest)}
}

func (b *PendingBook) Add(req exchange.OrderRequest) {
	if req.ClientOrderID == "" {
		return
	}
	b.mu.Lock()
	b.orders[req.ClientOrderID] = req
	b.mu.Unlock()
}

func (b *PendingBook) Remove(clientOrderID string) {
	b.mu.Lock()
	delete(b.orders, clientOrderID)
	b.mu.Unlock()
}

func (b *PendingBook) List() []exchange.OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]exchange.OrderRequest, 0, len(b.orders))
	for _, req := range b.orders {
		out = append(out, req)
	}
	return out
}

func (b *PendingBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}
