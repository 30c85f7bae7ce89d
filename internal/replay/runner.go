// Package replay drives recorded bars through the identical decision path
// used live: engine, risk gate, execution coordinator and ledger. Only the
// venue is swapped for a paper one.
package replay

import (
	"context"
	"fmt"
	"time"

	"laddr/internal/engine"
	"laddr/internal/exec"
	"laddr/internal/gateway/exchange"
	"laddr/internal/ledger"
	"laddr/internal/logger"
	"laddr/internal/market"
	"laddr/internal/risk"
	"laddr/internal/strategy"
)

// Result summarizes one replay run.
type Result struct {
	Scenario     string
	Bars         int
	Fills        int
	Exits        int
	DeepestLayer int
	RealizedPnL  float64
	FinalCash    float64
	FinalView    ledger.View
}

func (r Result) String() string {
	return fmt.Sprintf("%s: bars=%d fills=%d exits=%d deepest_layer=%d realized=%.4f cash=%.4f",
		r.Scenario, r.Bars, r.Fills, r.Exits, r.DeepestLayer, r.RealizedPnL, r.FinalCash)
}

// Run replays the scenario with its configured entry logic.
func Run(sc Scenario) (Result, error) {
	sig, err := strategy.New(sc.EntryLogic)
	if err != nil {
		return Result{}, err
	}
	return RunWithSignal(sc, sig)
}

// RunWithSignal replays the scenario with an explicit signal generator.
func RunWithSignal(sc Scenario, sig strategy.EntrySignal) (Result, error) {
	bars, err := LoadBars(sc.CSV)
	if err != nil {
		return Result{}, err
	}
	if len(bars) == 0 {
		return Result{}, fmt.Errorf("scenario %s: no bars in %s", sc.Name, sc.CSV)
	}

	paper := NewPaperExchange(sc.Symbol, sc.QuoteAsset, sc.Cash)
	coord := exec.NewCoordinator(paper, exec.Config{PollInterval: time.Millisecond, MaxPolls: 1})
	gate := risk.NewGate(risk.Config{MaxNotional: sc.MaxNotional})
	led := ledger.New(sc.Symbol, ledger.Options{})
	window := market.NewWindow(sc.HistoryBars)
	params := engine.Params{
		BaseOrderSize:        sc.BaseOrderSize,
		MaxLayers:            sc.MaxLayers,
		LayerStepPercent:     sc.LayerStepPct,
		Multiplier:           sc.Multiplier,
		TakeProfitPercent:    sc.TakeProfitPct,
		TakeProfitMinPercent: sc.TakeProfitMinPct,
		TakeProfitDecayHours: sc.TakeProfitDecayHours,
	}

	ctx := context.Background()
	res := Result{Scenario: sc.Name, Bars: len(bars)}

	for _, bar := range bars {
		at := time.UnixMilli(bar.CloseTime)
		paper.Advance(bar.Close, at)
		window.Push(bar)
		fired, _ := sig.Evaluate(window.Candles())

		view := led.View()
		decision := engine.Decide(view, engine.Tick{Symbol: sc.Symbol, Price: bar.Close, Time: at}, fired, params)
		if decision.Kind == engine.NoOp {
			continue
		}
		if ok, _ := gate.Allow(view, decision, bar.Close, at); !ok {
			continue
		}

		side := exchange.SideBuy
		if decision.Kind == engine.Exit {
			side = exchange.SideSell
		}
		led.MarkPending(side)
		out, err := coord.Execute(ctx, sc.Symbol, side, decision.Quantity)
		if err != nil {
			return Result{}, err
		}
		if out.Status != exec.StatusConfirmed {
			led.ClearPending()
			continue
		}

		fill := out.Fill
		if side == exchange.SideSell {
			res.Exits++
			res.RealizedPnL += (fill.Price - view.WeightedEntryPrice) * fill.Quantity
		}
		led.Apply(*fill)
		res.Fills++
		if lc := led.View().LayerCount; lc > res.DeepestLayer {
			res.DeepestLayer = lc
		}
		logger.Debugf("replay %s: %s qty=%v price=%v (%s)",
			sc.Symbol, decision.Kind, fill.Quantity, fill.Price, decision.Reason)
	}

	res.FinalCash = paper.Cash()
	res.FinalView = led.View()
	return res, nil
}
