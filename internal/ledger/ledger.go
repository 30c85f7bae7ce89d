// Package ledger holds the layered-position state for a single symbol.
// All mutation goes through Apply with a confirmed fill; decisions and risk
// checks read an immutable View so they can stay pure functions.
package ledger

import (
	"sync"
	"time"

	"laddr/internal/gateway/exchange"
	"laddr/internal/logger"
)

type State string

const (
	StateFlat     State = "FLAT"
	StateLayering State = "LAYERING"
	StateExiting  State = "EXITING"
)

// Layer is one filled rung of the martingale ladder, in fill order.
type Layer struct {
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Time     time.Time `json:"time"`
	OrderID  string    `json:"order_id"`
}

// Fill is a confirmed execution handed over by the coordinator or the
// reconciler. Never constructed from an unconfirmed submission.
type Fill struct {
	ClientOrderID string
	Symbol        string
	Side          exchange.Side
	Quantity      float64
	Price         float64
	Time          time.Time
}

// Options carries the cooldowns armed on fills. Post-exit cooldown may
// differ from the per-layer one.
type Options struct {
	LayerCooldown time.Duration
	ExitCooldown  time.Duration
}

type Ledger struct {
	mu      sync.Mutex
	symbol  string
	opts    Options
	layers  []Layer
	count   int
	wPrice  float64
	wTimeMs float64
	cash    float64
	cool    time.Time
	state   State
	pending exchange.Side
	applied map[string]struct{}
}

func New(symbol string, opts Options) *Ledger {
	return &Ledger{
		symbol:  symbol,
		opts:    opts,
		state:   StateFlat,
		applied: make(map[string]struct{}),
	}
}

// View is a point-in-time copy of the ledger, safe to read without locks.
type View struct {
	Symbol             string
	State              State
	LayerCount         int
	Quantity           float64
	WeightedEntryPrice float64
	WeightedEntryTime  time.Time
	CashCommitted      float64
	CooldownUntil      time.Time
	PendingSide        exchange.Side
	Layers             []Layer
}

func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewLocked()
}

func (l *Ledger) viewLocked() View {
	layers := make([]Layer, len(l.layers))
	copy(layers, l.layers)
	return View{
		Symbol:             l.symbol,
		State:              l.state,
		LayerCount:         l.count,
		Quantity:           l.quantityLocked(),
		WeightedEntryPrice: l.wPrice,
		WeightedEntryTime:  time.UnixMilli(int64(l.wTimeMs)),
		CashCommitted:      l.cash,
		CooldownUntil:      l.cool,
		PendingSide:        l.pending,
		Layers:             layers,
	}
}

func (l *Ledger) quantityLocked() float64 {
	var q float64
	for _, layer := range l.layers {
		q += layer.Quantity
	}
	return q
}

// Apply mutates the ledger with a confirmed fill. Replaying the same
// ClientOrderID is a no-op, so duplicate confirmation delivery (poll plus a
// later reconciliation pass finding the same order) cannot double-count.
func (l *Ledger) Apply(f Fill) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f.ClientOrderID != "" {
		if _, seen := l.applied[f.ClientOrderID]; seen {
			logger.Debugf("ledger %s: fill %s already applied, skip", l.symbol, f.ClientOrderID)
			return false
		}
	}
	if f.Quantity <= 0 || f.Price <= 0 {
		logger.Warnf("ledger %s: ignoring degenerate fill qty=%v price=%v", l.symbol, f.Quantity, f.Price)
		return false
	}

	switch f.Side {
	case exchange.SideBuy:
		l.applyBuyLocked(f)
	case exchange.SideSell:
		l.applySellLocked(f)
	default:
		logger.Warnf("ledger %s: unknown fill side %q", l.symbol, f.Side)
		return false
	}
	if f.ClientOrderID != "" {
		l.applied[f.ClientOrderID] = struct{}{}
	}
	l.pending = ""
	return true
}

func (l *Ledger) applyBuyLocked(f Fill) {
	prevQty := l.quantityLocked()
	newQty := prevQty + f.Quantity

	l.layers = append(l.layers, Layer{
		Price:    f.Price,
		Quantity: f.Quantity,
		Time:     f.Time,
		OrderID:  f.ClientOrderID,
	})
	l.count++
	// Running quantity-weighted averages: a late large layer pulls the decay
	// clock toward its own timestamp.
	fillMs := float64(f.Time.UnixMilli())
	if prevQty <= 0 {
		l.wPrice = f.Price
		l.wTimeMs = fillMs
	} else {
		l.wPrice = (l.wPrice*prevQty + f.Price*f.Quantity) / newQty
		l.wTimeMs = (l.wTimeMs*prevQty + fillMs*f.Quantity) / newQty
	}
	l.cash += f.Price * f.Quantity
	l.state = StateLayering
	if l.opts.LayerCooldown > 0 {
		l.cool = f.Time.Add(l.opts.LayerCooldown)
	}
	logger.Infof("ledger %s: layer %d filled qty=%v price=%v weighted_entry=%.8f committed=%.2f",
		l.symbol, l.count, f.Quantity, f.Price, l.wPrice, l.cash)
}

func (l *Ledger) applySellLocked(f Fill) {
	logger.Infof("ledger %s: exit filled qty=%v price=%v after %d layer(s)", l.symbol, f.Quantity, f.Price, l.count)
	l.resetLocked()
	if l.opts.ExitCooldown > 0 {
		l.cool = f.Time.Add(l.opts.ExitCooldown)
	}
}

func (l *Ledger) resetLocked() {
	l.layers = nil
	l.count = 0
	l.wPrice = 0
	l.wTimeMs = 0
	l.cash = 0
	l.state = StateFlat
}

// MarkPending flags an order in flight for this symbol. While set, the
// decision engine holds off so a second order for the same intent cannot be
// submitted. A pending sell moves the state to EXITING.
func (l *Ledger) MarkPending(side exchange.Side) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = side
	if side == exchange.SideSell && l.state == StateLayering {
		l.state = StateExiting
	}
}

// ClearPending removes the in-flight marker without applying a fill, used
// when an order is confirmed dead (rejected, canceled, or never placed).
func (l *Ledger) ClearPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = ""
	if l.state == StateExiting {
		l.state = StateLayering
	}
}

// Correct overwrites the held quantity and entry price with exchange-reported
// truth. The layer history collapses into one synthetic layer; the layer
// count is preserved so martingale sizing continues from the same rung.
func (l *Ledger) Correct(quantity, price float64, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if quantity <= 0 {
		l.resetLocked()
		l.pending = ""
		return
	}
	if price <= 0 {
		price = l.wPrice
	}
	entryTime := time.UnixMilli(int64(l.wTimeMs))
	if l.wTimeMs == 0 {
		entryTime = now
	}
	l.layers = []Layer{{Price: price, Quantity: quantity, Time: entryTime, OrderID: "reconciled"}}
	if l.count == 0 {
		l.count = 1
	}
	l.wPrice = price
	l.wTimeMs = float64(entryTime.UnixMilli())
	l.cash = price * quantity
	l.state = StateLayering
	l.pending = ""
}
