package config

import (
	"strings"
	"time"
)

// Config is the full configuration surface of the bot.
type Config struct {
	App       AppConfig       `toml:"app"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Risk      RiskConfig      `toml:"risk"`
	Execution ExecutionConfig `toml:"execution"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Notify    NotifyConfig    `toml:"notify"`
	Store     StoreConfig     `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type ExchangeConfig struct {
	Name              string `toml:"name"`
	APIKey            string `toml:"api_key"`
	APISecret         string `toml:"api_secret"`
	Testnet           bool   `toml:"testnet"`
	QuoteAsset        string `toml:"quote_asset"`
	QuantityPrecision int    `toml:"quantity_precision"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// StrategyConfig describes the ladder and its take-profit decay. Sizes are in
// base-asset units; percentages are plain numbers (1.0 means one percent).
type StrategyConfig struct {
	Symbols              []string `toml:"symbols"`
	Interval             string   `toml:"interval"`
	EntryLogic           string   `toml:"entry_logic"`
	HistoryBars          int      `toml:"history_bars"`
	BaseOrderSize        float64  `toml:"base_order_size"`
	Multiplier           float64  `toml:"multiplier"`
	MaxLayers            int      `toml:"max_layers"`
	LayerStepPct         float64  `toml:"layer_step_pct"`
	TakeProfitPct        float64  `toml:"take_profit_pct"`
	TakeProfitMinPct     float64  `toml:"take_profit_min_pct"`
	TakeProfitDecayHours float64  `toml:"take_profit_decay_hours"`
	LayerCooldownMinutes int      `toml:"layer_cooldown_minutes"`
	ExitCooldownMinutes  int      `toml:"exit_cooldown_minutes"`
}

func (s StrategyConfig) NormalizedSymbols() []string {
	out := make([]string, 0, len(s.Symbols))
	seen := make(map[string]bool, len(s.Symbols))
	for _, sym := range s.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

type RiskConfig struct {
	MaxNotional     float64 `toml:"max_notional"`
	CooldownMinutes int     `toml:"cooldown_minutes"`
}

type ExecutionConfig struct {
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	MaxPolls            int     `toml:"max_polls"`
	MinFillRatio        float64 `toml:"min_fill_ratio"`
}

func (e ExecutionConfig) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalSeconds) * time.Second
}

type ReconcileConfig struct {
	IntervalMinutes int     `toml:"interval_minutes"`
	Tolerance       float64 `toml:"tolerance"`
	DustThreshold   float64 `toml:"dust_threshold"`
}

func (r ReconcileConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMinutes) * time.Minute
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type StoreConfig struct {
	Path                    string `toml:"path"`
	SnapshotIntervalSeconds int    `toml:"snapshot_interval_seconds"`
	OverridesKey            string `toml:"overrides_key"`
}

func (s StoreConfig) SnapshotInterval() time.Duration {
	return time.Duration(s.SnapshotIntervalSeconds) * time.Second
}
