package ledger

import (
	"sort"
	"time"
)

// Snapshot round-trips the full ledger through the storage collaborator.
type Snapshot struct {
	Symbol             string    `json:"symbol"`
	State              State     `json:"state"`
	Layers             []Layer   `json:"layers,omitempty"`
	LayerCount         int       `json:"layer_count"`
	WeightedEntryPrice float64   `json:"weighted_entry_price"`
	WeightedEntryTime  time.Time `json:"weighted_entry_time"`
	CashCommitted      float64   `json:"cash_committed"`
	CooldownUntil      time.Time `json:"cooldown_until"`
	AppliedOrderIDs    []string  `json:"applied_order_ids,omitempty"`
	TakenAt            time.Time `json:"taken_at"`
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	layers := make([]Layer, len(l.layers))
	copy(layers, l.layers)
	ids := make([]string, 0, len(l.applied))
	for id := range l.applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Snapshot{
		Symbol:             l.symbol,
		State:              l.state,
		Layers:             layers,
		LayerCount:         l.count,
		WeightedEntryPrice: l.wPrice,
		WeightedEntryTime:  time.UnixMilli(int64(l.wTimeMs)),
		CashCommitted:      l.cash,
		CooldownUntil:      l.cool,
		AppliedOrderIDs:    ids,
		TakenAt:            time.Now(),
	}
}

// Restore loads a previously persisted snapshot. A restored EXITING state
// degrades to LAYERING: whatever order was in flight at shutdown is resolved
// by the first reconciliation pass, not trusted blindly.
func (l *Ledger) Restore(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.layers = make([]Layer, len(s.Layers))
	copy(l.layers, s.Layers)
	l.count = s.LayerCount
	l.wPrice = s.WeightedEntryPrice
	l.wTimeMs = float64(s.WeightedEntryTime.UnixMilli())
	l.cash = s.CashCommitted
	l.cool = s.CooldownUntil
	l.state = s.State
	if l.state == StateExiting {
		l.state = StateLayering
	}
	if len(l.layers) == 0 {
		l.resetLocked()
	}
	l.pending = ""
	l.applied = make(map[string]struct{}, len(s.AppliedOrderIDs))
	for _, id := range s.AppliedOrderIDs {
		l.applied[id] = struct{}{}
	}
}
