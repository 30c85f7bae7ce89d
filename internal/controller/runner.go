package controller

import (
	"context"
	"time"

	"laddr/internal/engine"
	"laddr/internal/exec"
	"laddr/internal/gateway/exchange"
	"laddr/internal/ledger"
	"laddr/internal/logger"
	"laddr/internal/market"
	"laddr/internal/notify"
	"laddr/internal/risk"
	"laddr/internal/strategy"
)

// EventStore persists trade events; nil disables persistence.
type EventStore interface {
	AppendEvent(ctx context.Context, kind, symbol string, payload any) error
}

// Notifier is the slice of the notification service runners use.
type Notifier interface {
	TradeExecuted(ev notify.TradeEvent)
	Alert(title string, lines ...string)
}

// Runner is the single-goroutine actor for one symbol. All ledger mutation
// for the symbol funnels through its Run loop, so decision, gate check and
// execution are strictly serialized per symbol.
type Runner struct {
	symbol   string
	led      *ledger.Ledger
	window   *market.Window
	signal   strategy.EntrySignal
	params   engine.Params
	gate     *risk.Gate
	coord    *exec.Coordinator
	pending  *exec.PendingBook
	events   EventStore
	notifier Notifier

	bars  chan market.CandleEvent
	ticks chan market.TickEvent

	// entrySignal caches the latest closed-bar evaluation; ticks between bar
	// closes reuse it instead of recomputing indicators per trade print.
	entrySignal  bool
	droppedTicks int
}

type RunnerDeps struct {
	Ledger   *ledger.Ledger
	Window   *market.Window
	Signal   strategy.EntrySignal
	Params   engine.Params
	Gate     *risk.Gate
	Coord    *exec.Coordinator
	Pending  *exec.PendingBook
	Events   EventStore
	Notifier Notifier
}

func NewRunner(symbol string, deps RunnerDeps) *Runner {
	return &Runner{
		symbol:   symbol,
		led:      deps.Ledger,
		window:   deps.Window,
		signal:   deps.Signal,
		params:   deps.Params,
		gate:     deps.Gate,
		coord:    deps.Coord,
		pending:  deps.Pending,
		events:   deps.Events,
		notifier: deps.Notifier,
		bars:     make(chan market.CandleEvent, 16),
		ticks:    make(chan market.TickEvent, 256),
	}
}

// OfferBar hands a closed bar to the runner. Bars carry the signal state and
// must not be lost, so delivery blocks until the runner accepts.
func (r *Runner) OfferBar(ctx context.Context, ev market.CandleEvent) {
	select {
	case r.bars <- ev:
	case <-ctx.Done():
	}
}

// OfferTick hands a trade print to the runner. Ticks are plentiful and each
// carries a fresh price, so a full queue just drops the oldest information.
func (r *Runner) OfferTick(ev market.TickEvent) {
	select {
	case r.ticks <- ev:
	default:
		r.droppedTicks++
		if r.droppedTicks%1000 == 1 {
			logger.Warnf("runner %s: tick queue full, dropped %d so far", r.symbol, r.droppedTicks)
		}
	}
}

func (r *Runner) Run(ctx context.Context) {
	logger.Infof("runner %s: started", r.symbol)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("runner %s: stopped", r.symbol)
			return
		case ev := <-r.bars:
			r.onBar(ctx, ev)
		case ev := <-r.ticks:
			r.onTick(ctx, ev)
		}
	}
}

func (r *Runner) onBar(ctx context.Context, ev market.CandleEvent) {
	r.window.Push(ev.Candle)
	fired, metrics := r.signal.Evaluate(r.window.Candles())
	r.entrySignal = fired
	if fired {
		logger.Infof("runner %s: %s entry signal on bar close=%v metrics=%v",
			r.symbol, r.signal.Name(), ev.Candle.Close, metrics)
	}
	r.evaluate(ctx, engine.Tick{
		Symbol: r.symbol,
		Price:  ev.Candle.Close,
		Time:   time.UnixMilli(ev.Candle.CloseTime),
	})
}

func (r *Runner) onTick(ctx context.Context, ev market.TickEvent) {
	r.evaluate(ctx, engine.Tick{
		Symbol: r.symbol,
		Price:  ev.Price,
		Time:   time.UnixMilli(ev.TradeTime),
	})
}

func (r *Runner) evaluate(ctx context.Context, tick engine.Tick) {
	view := r.led.View()
	decision := engine.Decide(view, tick, r.entrySignal, r.params)
	if decision.Kind == engine.NoOp {
		return
	}
	if ok, reason := r.gate.Allow(view, decision, tick.Price, tick.Time); !ok {
		r.recordDenial(ctx, decision, reason)
		return
	}
	logger.Infof("runner %s: %s qty=%v (%s)", r.symbol, decision.Kind, decision.Quantity, decision.Reason)
	r.execute(ctx, view, decision)
}

func (r *Runner) execute(ctx context.Context, view ledger.View, decision engine.Decision) {
	side := exchange.SideBuy
	if decision.Kind == engine.Exit {
		side = exchange.SideSell
	}

	// The pending marker goes up before submission; even if this process is
	// interrupted mid-flight, no second order for the same intent can start.
	r.led.MarkPending(side)
	out, err := r.coord.Execute(ctx, r.symbol, side, decision.Quantity)
	if err != nil {
		logger.Errorf("runner %s: execution failed: %v", r.symbol, err)
		r.led.ClearPending()
		return
	}

	switch out.Status {
	case exec.StatusConfirmed:
		r.led.Apply(*out.Fill)
		r.recordFill(ctx, decision, out)
	case exec.StatusRejected:
		logger.Warnf("runner %s: %s order rejected", r.symbol, decision.Kind)
		r.led.ClearPending()
	case exec.StatusTimedOut:
		// Truth unknown: the marker stays up and the reconciler owns the
		// order from here.
		r.pending.Add(out.Request)
		if r.notifier != nil {
			r.notifier.Alert("order unresolved",
				"symbol: "+r.symbol,
				"id: "+out.Request.ClientOrderID,
				"awaiting reconciliation")
		}
	}
}

func (r *Runner) recordDenial(ctx context.Context, decision engine.Decision, reason string) {
	if r.events == nil {
		return
	}
	payload := map[string]any{
		"decision": decision.Kind.String(),
		"quantity": decision.Quantity,
		"reason":   reason,
	}
	if err := r.events.AppendEvent(ctx, "gate_denial", r.symbol, payload); err != nil {
		logger.Warnf("runner %s: persist gate denial failed: %v", r.symbol, err)
	}
}

func (r *Runner) recordFill(ctx context.Context, decision engine.Decision, out exec.Outcome) {
	fill := out.Fill
	layer := 0
	if decision.Kind != engine.Exit {
		layer = r.led.View().LayerCount
	}
	if r.events != nil {
		if err := r.events.AppendEvent(ctx, "fill", r.symbol, fill); err != nil {
			logger.Warnf("runner %s: persist fill failed: %v", r.symbol, err)
		}
	}
	if r.notifier != nil {
		r.notifier.TradeExecuted(notify.TradeEvent{
			Symbol:   r.symbol,
			Side:     string(fill.Side),
			Kind:     decision.Kind.String(),
			Quantity: fill.Quantity,
			Price:    fill.Price,
			Layer:    layer,
			At:       fill.Time,
		})
	}
}

func (r *Runner) View() ledger.View { return r.led.View() }
