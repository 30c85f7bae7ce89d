// Package reconcile restores agreement between the local ledgers and the
// exchange. It resolves orders whose outcome the coordinator could not
// observe, then compares held balances against exchange truth and overwrites
// the ledger when they drift apart.
package reconcile

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"laddr/internal/exec"
	"laddr/internal/gateway/exchange"
	"laddr/internal/ledger"
	"laddr/internal/logger"
	"laddr/internal/notify"
)

type Config struct {
	// Tolerance is the relative quantity drift above which the ledger is
	// overwritten from the exchange balance.
	Tolerance float64
	// DustThreshold treats base-asset residue below it as zero, so rounding
	// leftovers from lot-size truncation never trigger corrections.
	DustThreshold float64
	QuoteAsset    string
}

func (c Config) withDefaults() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = 0.01
	}
	if c.DustThreshold <= 0 {
		c.DustThreshold = 1e-6
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = "USDT"
	}
	return c
}

// EventStore persists reconciliation events for the audit trail. Persistence
// failures are logged and never abort a pass.
type EventStore interface {
	AppendEvent(ctx context.Context, kind, symbol string, payload any) error
}

// Notifier is the subset of the notification service the reconciler uses.
type Notifier interface {
	TradeExecuted(ev notify.TradeEvent)
	DriftCorrected(ev notify.DriftEvent)
}

type Reconciler struct {
	ex       exchange.Exchange
	pending  *exec.PendingBook
	ledgers  map[string]*ledger.Ledger
	events   EventStore
	notifier Notifier
	cfg      Config
}

func New(ex exchange.Exchange, pending *exec.PendingBook, ledgers map[string]*ledger.Ledger, events EventStore, notifier Notifier, cfg Config) *Reconciler {
	return &Reconciler{
		ex:       ex,
		pending:  pending,
		ledgers:  ledgers,
		events:   events,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
	}
}

// Run executes one reconciliation pass: pending orders first, so late fills
// land in the ledger before balances are compared, then drift detection.
func (r *Reconciler) Run(ctx context.Context) error {
	r.resolvePending(ctx)
	return r.checkBalances(ctx)
}

// resolvePending re-queries every order with an unknown outcome. GetOrder is
// idempotent per clientOrderID, so asking again is always safe; the ledger's
// applied set makes the resulting Apply exactly-once.
func (r *Reconciler) resolvePending(ctx context.Context) {
	for _, req := range r.pending.List() {
		led, ok := r.ledgers[req.Symbol]
		if !ok {
			logger.Warnf("reconcile: pending order %s for unmanaged symbol %s, dropping", req.ClientOrderID, req.Symbol)
			r.pending.Remove(req.ClientOrderID)
			continue
		}

		res, err := r.ex.GetOrder(ctx, req.Symbol, req.ClientOrderID)
		switch {
		case errors.Is(err, exchange.ErrOrderNotFound):
			// The venue has no record: the submission never landed. The intent
			// is abandoned, not resubmitted; the engine will decide afresh.
			logger.Infof("reconcile %s: order %s unknown to venue, clearing", req.Symbol, req.ClientOrderID)
			led.ClearPending()
			r.pending.Remove(req.ClientOrderID)
		case err != nil:
			logger.Warnf("reconcile %s: order %s lookup failed, retrying next pass: %v", req.Symbol, req.ClientOrderID, err)
		case !res.Status.Terminal() && res.Status != exchange.StatusPartial:
			logger.Debugf("reconcile %s: order %s still %s", req.Symbol, req.ClientOrderID, res.Status)
		case res.FilledQty > 0:
			// Partials settle as-is; any remainder that fills after this pass
			// shows up as balance drift and is corrected there.
			r.applyLateFill(ctx, led, req, res)
			r.pending.Remove(req.ClientOrderID)
		default:
			logger.Infof("reconcile %s: order %s ended %s unfilled, clearing", req.Symbol, req.ClientOrderID, res.Status)
			led.ClearPending()
			r.pending.Remove(req.ClientOrderID)
		}
	}
}

func (r *Reconciler) applyLateFill(ctx context.Context, led *ledger.Ledger, req exchange.OrderRequest, res exchange.OrderResult) {
	fill := exec.FillFromResult(req, res)
	if !led.Apply(*fill) {
		logger.Debugf("reconcile %s: fill %s already in ledger", req.Symbol, req.ClientOrderID)
		return
	}
	logger.Infof("reconcile %s: late %s fill applied qty=%v price=%v", req.Symbol, req.Side, fill.Quantity, fill.Price)
	r.persistEvent(ctx, "late_fill", req.Symbol, fill)
	if r.notifier != nil {
		r.notifier.TradeExecuted(notify.TradeEvent{
			Symbol:   req.Symbol,
			Side:     string(req.Side),
			Kind:     "LATE_FILL",
			Quantity: fill.Quantity,
			Price:    fill.Price,
			At:       fill.Time,
		})
	}
}

// checkBalances compares each ledger's held quantity against the exchange's
// base-asset balance. The exchange wins: drift beyond tolerance overwrites
// the ledger, preserving the layer count so sizing resumes at the same rung.
func (r *Reconciler) checkBalances(ctx context.Context) error {
	balances, err := r.ex.GetBalances(ctx)
	if err != nil {
		return err
	}

	inFlight := make(map[string]bool)
	for _, req := range r.pending.List() {
		inFlight[req.Symbol] = true
	}

	now := time.Now()
	for symbol, led := range r.ledgers {
		if inFlight[symbol] {
			// An unresolved order explains any drift; correcting now would
			// race the fill.
			continue
		}
		asset := BaseAsset(symbol, r.cfg.QuoteAsset)
		exchangeQty := balances[asset].Total()
		if exchangeQty < r.cfg.DustThreshold {
			exchangeQty = 0
		}
		view := led.View()
		if !r.drifted(view.Quantity, exchangeQty) {
			continue
		}

		// Correcting onto a ledger with no usable entry price would build a
		// position the engine cannot ever exit. Fetch a real mark for the
		// synthetic layer; the prior weighted price covers the other cases.
		price := 0.0
		if exchangeQty > 0 && view.WeightedEntryPrice <= 0 {
			mark, perr := r.ex.LastPrice(ctx, symbol)
			if perr != nil || mark <= 0 {
				logger.Warnf("reconcile %s: mark price unavailable, deferring correction: %v", symbol, perr)
				continue
			}
			price = mark
		}

		logger.Warnf("reconcile %s: drift detected ledger=%v exchange=%v, overwriting ledger",
			symbol, view.Quantity, exchangeQty)
		led.Correct(exchangeQty, price, now)
		r.persistEvent(ctx, "correction", symbol, map[string]any{
			"ledger_qty":   view.Quantity,
			"exchange_qty": exchangeQty,
		})
		if r.notifier != nil {
			r.notifier.DriftCorrected(notify.DriftEvent{
				Symbol:      symbol,
				LedgerQty:   view.Quantity,
				ExchangeQty: exchangeQty,
				At:          now,
			})
		}
	}
	return nil
}

func (r *Reconciler) drifted(ledgerQty, exchangeQty float64) bool {
	if ledgerQty < r.cfg.DustThreshold {
		ledgerQty = 0
	}
	if ledgerQty == 0 && exchangeQty == 0 {
		return false
	}
	ref := math.Max(ledgerQty, exchangeQty)
	return math.Abs(exchangeQty-ledgerQty)/ref > r.cfg.Tolerance
}

func (r *Reconciler) persistEvent(ctx context.Context, kind, symbol string, payload any) {
	if r.events == nil {
		return
	}
	if err := r.events.AppendEvent(ctx, kind, symbol, payload); err != nil {
		logger.Warnf("reconcile %s: persist %s event failed: %v", symbol, kind, err)
	}
}

// BaseAsset derives the base asset from a spot symbol given the configured
// quote, e.g. BTCUSDT/USDT -> BTC.
func BaseAsset(symbol, quote string) string {
	if quote != "" && strings.HasSuffix(symbol, quote) {
		return strings.TrimSuffix(symbol, quote)
	}
	return symbol
}
