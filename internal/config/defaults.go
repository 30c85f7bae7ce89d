package config

import "strings"

const (
	defaultAppEnv               = "dev"
	defaultAppLogLevel          = "info"
	defaultAppHTTPAddr          = ":9985"
	defaultExchangeName         = "binance"
	defaultQuoteAsset           = "USDT"
	defaultQuantityPrecision    = 6
	defaultExchangeTimeout      = 10
	defaultInterval             = "1m"
	defaultEntryLogic           = "MACD"
	defaultHistoryBars          = 300
	defaultMultiplier           = 2.0
	defaultMaxLayers            = 5
	defaultLayerStepPct         = 2.0
	defaultTakeProfitPct        = 1.5
	defaultTakeProfitMinPct     = 0.4
	defaultTakeProfitDecayHours = 24.0
	defaultExecPollSeconds      = 2
	defaultExecMaxPolls         = 10
	defaultExecMinFillRatio     = 0.1
	defaultReconcileMinutes     = 5
	defaultReconcileTolerance   = 0.01
	defaultReconcileDust        = 1e-6
	defaultStorePath            = "data/laddr.db"
	defaultSnapshotSeconds      = 60
	defaultOverridesKey         = "live"
)

// applyDefaults fills zero values. Settings where zero is meaningful
// (testnet, cooldowns, max_notional) have no default and stay as given.
func (c *Config) applyDefaults() {
	setString(&c.App.Env, defaultAppEnv)
	setString(&c.App.LogLevel, defaultAppLogLevel)
	setString(&c.App.HTTPAddr, defaultAppHTTPAddr)

	setString(&c.Exchange.Name, defaultExchangeName)
	setString(&c.Exchange.QuoteAsset, defaultQuoteAsset)
	setInt(&c.Exchange.QuantityPrecision, defaultQuantityPrecision)
	setInt(&c.Exchange.TimeoutSeconds, defaultExchangeTimeout)

	setString(&c.Strategy.Interval, defaultInterval)
	setString(&c.Strategy.EntryLogic, defaultEntryLogic)
	setInt(&c.Strategy.HistoryBars, defaultHistoryBars)
	setFloat(&c.Strategy.Multiplier, defaultMultiplier)
	setInt(&c.Strategy.MaxLayers, defaultMaxLayers)
	setFloat(&c.Strategy.LayerStepPct, defaultLayerStepPct)
	setFloat(&c.Strategy.TakeProfitPct, defaultTakeProfitPct)
	setFloat(&c.Strategy.TakeProfitMinPct, defaultTakeProfitMinPct)
	setFloat(&c.Strategy.TakeProfitDecayHours, defaultTakeProfitDecayHours)

	setInt(&c.Execution.PollIntervalSeconds, defaultExecPollSeconds)
	setInt(&c.Execution.MaxPolls, defaultExecMaxPolls)
	setFloat(&c.Execution.MinFillRatio, defaultExecMinFillRatio)

	setInt(&c.Reconcile.IntervalMinutes, defaultReconcileMinutes)
	setFloat(&c.Reconcile.Tolerance, defaultReconcileTolerance)
	setFloat(&c.Reconcile.DustThreshold, defaultReconcileDust)

	setString(&c.Store.Path, defaultStorePath)
	setInt(&c.Store.SnapshotIntervalSeconds, defaultSnapshotSeconds)
	setString(&c.Store.OverridesKey, defaultOverridesKey)
}

func setString(target *string, def string) {
	if strings.TrimSpace(*target) == "" {
		*target = def
	}
}

// Only a true zero counts as unset; explicit negatives are left for
// validation to reject.
func setInt(target *int, def int) {
	if *target == 0 {
		*target = def
	}
}

func setFloat(target *float64, def float64) {
	if *target == 0 {
		*target = def
	}
}
