// Package controller supervises the live trading loop: stream subscriptions,
// per-symbol runners, periodic reconciliation and ledger snapshots.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"laddr/internal/exec"
	"laddr/internal/ledger"
	"laddr/internal/logger"
	"laddr/internal/market"
	"laddr/internal/reconcile"
	"laddr/internal/scheduler"
	"laddr/internal/store/gormstore"

	"golang.org/x/sync/errgroup"
)

// SnapshotStore persists ledger snapshots. A missing key is reported with
// gormstore.ErrNotFound.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, key string, snap ledger.Snapshot) error
	LoadSnapshot(ctx context.Context, key string) (ledger.Snapshot, error)
}

type Config struct {
	Symbols           []string
	Interval          string
	HistoryBars       int
	ReconcileInterval time.Duration
	SnapshotInterval  time.Duration
}

type Controller struct {
	cfg     Config
	source  market.Source
	runners map[string]*Runner
	ledgers map[string]*ledger.Ledger
	windows map[string]*market.Window
	pending *exec.PendingBook
	recon   *reconcile.Reconciler
	store   SnapshotStore

	// streamMu guards the live subscription channels. Reconnect replaces
	// them and signals rewired so dispatch picks up the new ones.
	streamMu sync.Mutex
	runCtx   context.Context
	bars     <-chan market.CandleEvent
	ticks    <-chan market.TickEvent
	rewired  chan struct{}
}

func New(cfg Config, source market.Source, runners map[string]*Runner, ledgers map[string]*ledger.Ledger,
	windows map[string]*market.Window, pending *exec.PendingBook, recon *reconcile.Reconciler, store SnapshotStore) *Controller {
	return &Controller{
		cfg:     cfg,
		source:  source,
		runners: runners,
		ledgers: ledgers,
		windows: windows,
		pending: pending,
		recon:   recon,
		store:   store,
		rewired: make(chan struct{}),
	}
}

// Start brings the bot up in strict order: restore persisted state, seed
// candle history, reconcile against the exchange, and only then start the
// decision loops. It blocks until ctx is canceled.
func (c *Controller) Start(ctx context.Context) error {
	c.restoreLedgers(ctx)
	if err := c.seedHistory(ctx); err != nil {
		return err
	}

	// No decision is made on restored state until the exchange has confirmed
	// it. A failed pass is retried by the periodic loop, not fatal.
	if err := c.recon.Run(ctx); err != nil {
		logger.Warnf("controller: startup reconciliation failed: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	c.streamMu.Lock()
	c.runCtx = gctx
	err := c.subscribeLocked(gctx)
	c.streamMu.Unlock()
	if err != nil {
		return err
	}

	for _, r := range c.runners {
		r := r
		g.Go(func() error {
			r.Run(gctx)
			return nil
		})
	}
	g.Go(func() error { return c.dispatch(gctx) })
	g.Go(func() error {
		scheduler.IntervalLoop{Name: "reconcile", Interval: c.cfg.ReconcileInterval}.Start(gctx, func(ctx context.Context) {
			if err := c.recon.Run(ctx); err != nil {
				logger.Warnf("controller: reconciliation pass failed: %v", err)
			}
		})
		return nil
	})
	g.Go(func() error {
		scheduler.IntervalLoop{Name: "snapshot", Interval: c.cfg.SnapshotInterval}.Start(gctx, c.snapshotAll)
		return nil
	})

	err = g.Wait()

	// Final snapshot runs on a fresh context; the group's is already dead.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.snapshotAll(shutdownCtx)
	if closeErr := c.source.Close(); closeErr != nil {
		logger.Warnf("controller: closing market source: %v", closeErr)
	}
	return err
}

// subscribeLocked opens the kline and trade subscriptions and stores their
// channels. Callers hold streamMu. The source cancels any previous
// subscription of the same kind, so calling it again never leaks streams.
func (c *Controller) subscribeLocked(ctx context.Context) error {
	bars, err := c.source.Subscribe(ctx, c.cfg.Symbols, c.cfg.Interval, market.SubscribeOptions{
		OnConnect:    func() { logger.Infof("controller: kline stream connected") },
		OnDisconnect: func(err error) { logger.Warnf("controller: kline stream lost: %v", err) },
	})
	if err != nil {
		return fmt.Errorf("subscribing klines failed: %w", err)
	}
	ticks, err := c.source.SubscribeTrades(ctx, c.cfg.Symbols, market.SubscribeOptions{
		OnDisconnect: func(err error) { logger.Warnf("controller: trade stream lost: %v", err) },
	})
	if err != nil {
		return fmt.Errorf("subscribing trades failed: %w", err)
	}
	c.bars = bars
	c.ticks = ticks
	return nil
}

// Reconnect tears down the market-data subscriptions and rebuilds them.
// Ledgers, pending orders and in-flight confirmations are untouched; only
// the transport is replaced. Safe to call repeatedly and from any goroutine.
func (c *Controller) Reconnect() error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.runCtx == nil {
		return errors.New("controller not started")
	}
	if err := c.subscribeLocked(c.runCtx); err != nil {
		return err
	}
	logger.Infof("controller: streams resubscribed")
	close(c.rewired)
	c.rewired = make(chan struct{})
	return nil
}

// dispatch fans stream events out to the per-symbol runners. A closed
// channel means the subscription was torn down; dispatch waits for the
// replacement instead of exiting, since ledger state outlives the transport.
func (c *Controller) dispatch(ctx context.Context) error {
	for {
		c.streamMu.Lock()
		bars, ticks, rewired := c.bars, c.ticks, c.rewired
		c.streamMu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-rewired:
			// Subscriptions were replaced; reload the channels.
		case ev, ok := <-bars:
			if !ok {
				if !c.awaitRewire(ctx, rewired) {
					return nil
				}
				continue
			}
			if r, found := c.runners[ev.Symbol]; found {
				r.OfferBar(ctx, ev)
			}
		case ev, ok := <-ticks:
			if !ok {
				if !c.awaitRewire(ctx, rewired) {
					return nil
				}
				continue
			}
			if r, found := c.runners[ev.Symbol]; found {
				r.OfferTick(ev)
			}
		}
	}
}

func (c *Controller) awaitRewire(ctx context.Context, rewired <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-rewired:
		return true
	}
}

func (c *Controller) restoreLedgers(ctx context.Context) {
	if c.store == nil {
		return
	}
	for symbol, led := range c.ledgers {
		snap, err := c.store.LoadSnapshot(ctx, symbol)
		switch {
		case errors.Is(err, gormstore.ErrNotFound):
			logger.Infof("controller %s: no snapshot, starting flat", symbol)
		case err != nil:
			logger.Warnf("controller %s: snapshot load failed, starting flat: %v", symbol, err)
		default:
			led.Restore(snap)
			v := led.View()
			logger.Infof("controller %s: restored %s layers=%d qty=%v (taken %s)",
				symbol, v.State, v.LayerCount, v.Quantity, snap.TakenAt.Format(time.RFC3339))
		}
	}
}

func (c *Controller) seedHistory(ctx context.Context) error {
	for _, symbol := range c.cfg.Symbols {
		candles, err := c.source.FetchHistory(ctx, symbol, c.cfg.Interval, c.cfg.HistoryBars)
		if err != nil {
			return fmt.Errorf("fetching %s history failed: %w", symbol, err)
		}
		if w, ok := c.windows[symbol]; ok {
			w.Seed(candles)
		}
		logger.Infof("controller %s: seeded %d candles", symbol, len(candles))
	}
	return nil
}

func (c *Controller) snapshotAll(ctx context.Context) {
	if c.store == nil {
		return
	}
	for symbol, led := range c.ledgers {
		if err := c.store.SaveSnapshot(ctx, symbol, led.Snapshot()); err != nil {
			logger.Warnf("controller %s: snapshot save failed: %v", symbol, err)
		}
	}
}

// Views implements the HTTP state provider.
func (c *Controller) Views() map[string]ledger.View {
	out := make(map[string]ledger.View, len(c.ledgers))
	for symbol, led := range c.ledgers {
		out[symbol] = led.View()
	}
	return out
}

func (c *Controller) StreamStats() market.SourceStats { return c.source.Stats() }

func (c *Controller) PendingOrders() int { return c.pending.Len() }
