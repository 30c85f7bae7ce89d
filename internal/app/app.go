// Package app wires configuration into a runnable bot: store, exchange
// gateway, per-symbol runners, reconciler, controller and HTTP surface.
package app

import (
	"context"
	"fmt"
	"time"

	"laddr/internal/config"
	"laddr/internal/controller"
	"laddr/internal/engine"
	"laddr/internal/exec"
	"laddr/internal/gateway/binance"
	"laddr/internal/ledger"
	"laddr/internal/logger"
	"laddr/internal/market"
	"laddr/internal/notify"
	"laddr/internal/reconcile"
	"laddr/internal/risk"
	"laddr/internal/store/gormstore"
	"laddr/internal/strategy"
	httpapi "laddr/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg   *config.Config
	ctrl  *controller.Controller
	http  *httpapi.Server
	store *gormstore.Store
}

func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	store, err := gormstore.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store failed: %w", err)
	}

	// Stored overrides are operator tweaks that outlive restarts; they merge
	// over the file config before anything is built from it.
	overrides, err := store.LoadOverrides(context.Background(), cfg.Store.OverridesKey)
	if err != nil {
		logger.Warnf("app: loading config overrides failed: %v", err)
	} else if len(overrides) > 0 {
		if err := config.ApplyOverrides(cfg, overrides); err != nil {
			return nil, fmt.Errorf("stored overrides invalid: %w", err)
		}
		logger.Infof("app: applied %d stored override section(s)", len(overrides))
	}

	notifier := buildNotifier(cfg.Notify)

	gwCfg := binance.Config{
		APIKey:      cfg.Exchange.APIKey,
		APISecret:   cfg.Exchange.APISecret,
		Testnet:     cfg.Exchange.Testnet,
		HTTPTimeout: time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	}
	source := binance.NewSource(gwCfg)
	trader := binance.NewTrader(gwCfg, cfg.Exchange.QuantityPrecision)

	signal, err := strategy.New(cfg.Strategy.EntryLogic)
	if err != nil {
		return nil, err
	}
	params := engine.Params{
		BaseOrderSize:        cfg.Strategy.BaseOrderSize,
		MaxLayers:            cfg.Strategy.MaxLayers,
		LayerStepPercent:     cfg.Strategy.LayerStepPct,
		Multiplier:           cfg.Strategy.Multiplier,
		TakeProfitPercent:    cfg.Strategy.TakeProfitPct,
		TakeProfitMinPercent: cfg.Strategy.TakeProfitMinPct,
		TakeProfitDecayHours: cfg.Strategy.TakeProfitDecayHours,
	}
	gate := risk.NewGate(risk.Config{MaxNotional: cfg.Risk.MaxNotional})
	coord := exec.NewCoordinator(trader, exec.Config{
		PollInterval: cfg.Execution.PollInterval(),
		MaxPolls:     cfg.Execution.MaxPolls,
		MinFillRatio: cfg.Execution.MinFillRatio,
	})
	book := exec.NewPendingBook()

	symbols := cfg.Strategy.NormalizedSymbols()
	ledgers := make(map[string]*ledger.Ledger, len(symbols))
	windows := make(map[string]*market.Window, len(symbols))
	runners := make(map[string]*controller.Runner, len(symbols))
	for _, symbol := range symbols {
		led := ledger.New(symbol, cooldowns(cfg.Strategy, cfg.Risk))
		window := market.NewWindow(cfg.Strategy.HistoryBars)
		ledgers[symbol] = led
		windows[symbol] = window
		runners[symbol] = controller.NewRunner(symbol, controller.RunnerDeps{
			Ledger:   led,
			Window:   window,
			Signal:   signal,
			Params:   params,
			Gate:     gate,
			Coord:    coord,
			Pending:  book,
			Events:   store,
			Notifier: notifier,
		})
	}

	recon := reconcile.New(trader, book, ledgers, store, notifier, reconcile.Config{
		Tolerance:     cfg.Reconcile.Tolerance,
		DustThreshold: cfg.Reconcile.DustThreshold,
		QuoteAsset:    cfg.Exchange.QuoteAsset,
	})
	ctrl := controller.New(controller.Config{
		Symbols:           symbols,
		Interval:          cfg.Strategy.Interval,
		HistoryBars:       cfg.Strategy.HistoryBars,
		ReconcileInterval: cfg.Reconcile.Interval(),
		SnapshotInterval:  cfg.Store.SnapshotInterval(),
	}, source, runners, ledgers, windows, book, recon, store)

	return &App{
		cfg:   cfg,
		ctrl:  ctrl,
		http:  httpapi.NewServer(cfg.App.HTTPAddr, ctrl),
		store: store,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.store.Close(); err != nil {
			logger.Warnf("app: closing store: %v", err)
		}
	}()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return a.ctrl.Start(ctx)
	})
	return group.Wait()
}

// cooldowns resolves the pauses armed after fills. The per-strategy settings
// win; risk.cooldown_minutes fills whichever side is unset.
func cooldowns(s config.StrategyConfig, r config.RiskConfig) ledger.Options {
	opts := ledger.Options{
		LayerCooldown: time.Duration(s.LayerCooldownMinutes) * time.Minute,
		ExitCooldown:  time.Duration(s.ExitCooldownMinutes) * time.Minute,
	}
	shared := time.Duration(r.CooldownMinutes) * time.Minute
	if opts.LayerCooldown == 0 {
		opts.LayerCooldown = shared
	}
	if opts.ExitCooldown == 0 {
		opts.ExitCooldown = shared
	}
	return opts
}

func buildNotifier(cfg config.NotifyConfig) *notify.Service {
	if cfg.Telegram.Enabled {
		return notify.NewService(notify.NewComposite(
			notify.LogNotifier{},
			notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID),
		))
	}
	return notify.NewService(notify.LogNotifier{})
}
