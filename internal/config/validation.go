package config

import (
	"fmt"
	"strings"

	"laddr/internal/scheduler"
)

// validate rejects configurations that would make the ladder misbehave.
// Errors here are fatal: a bot trading on nonsense parameters is worse than
// one that refuses to start.
func validate(c *Config) error {
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	if err := c.Reconcile.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if len(s.NormalizedSymbols()) == 0 {
		return fmt.Errorf("strategy.symbols requires at least one symbol")
	}
	if _, ok := scheduler.ParseIntervalDuration(s.Interval); !ok {
		return fmt.Errorf("strategy.interval %q is not a valid interval", s.Interval)
	}
	if s.BaseOrderSize <= 0 {
		return fmt.Errorf("strategy.base_order_size must be > 0")
	}
	if s.Multiplier < 1 {
		return fmt.Errorf("strategy.multiplier must be >= 1")
	}
	if s.MaxLayers < 1 {
		return fmt.Errorf("strategy.max_layers must be >= 1")
	}
	if s.LayerStepPct <= 0 {
		return fmt.Errorf("strategy.layer_step_pct must be > 0")
	}
	if s.TakeProfitPct <= 0 {
		return fmt.Errorf("strategy.take_profit_pct must be > 0")
	}
	if s.TakeProfitMinPct < 0 {
		return fmt.Errorf("strategy.take_profit_min_pct must be >= 0")
	}
	if s.TakeProfitMinPct > s.TakeProfitPct {
		return fmt.Errorf("strategy.take_profit_min_pct cannot exceed take_profit_pct")
	}
	if s.TakeProfitDecayHours <= 0 {
		return fmt.Errorf("strategy.take_profit_decay_hours must be > 0")
	}
	if s.LayerCooldownMinutes < 0 || s.ExitCooldownMinutes < 0 {
		return fmt.Errorf("strategy cooldowns must be >= 0")
	}
	if s.HistoryBars < 50 {
		return fmt.Errorf("strategy.history_bars must be >= 50 for indicator warmup")
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	if strings.ToLower(strings.TrimSpace(e.Name)) != "binance" {
		return fmt.Errorf("exchange.name %q not supported", e.Name)
	}
	if e.QuantityPrecision < 0 || e.QuantityPrecision > 8 {
		return fmt.Errorf("exchange.quantity_precision must be within [0,8]")
	}
	return nil
}

func (e *ExecutionConfig) validate() error {
	if e.PollIntervalSeconds < 1 {
		return fmt.Errorf("execution.poll_interval_seconds must be >= 1")
	}
	if e.MaxPolls < 1 {
		return fmt.Errorf("execution.max_polls must be >= 1")
	}
	if e.MinFillRatio <= 0 || e.MinFillRatio > 1 {
		return fmt.Errorf("execution.min_fill_ratio must be within (0,1]")
	}
	return nil
}

func (r *ReconcileConfig) validate() error {
	if r.IntervalMinutes < 1 {
		return fmt.Errorf("reconcile.interval_minutes must be >= 1")
	}
	if r.Tolerance <= 0 || r.Tolerance >= 1 {
		return fmt.Errorf("reconcile.tolerance must be within (0,1)")
	}
	if r.DustThreshold < 0 {
		return fmt.Errorf("reconcile.dust_threshold must be >= 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxNotional < 0 {
		return fmt.Errorf("risk.max_notional must be >= 0 (0 disables the cap)")
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("risk.cooldown_minutes must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram enabled but bot_token/chat_id missing")
	}
	return nil
}
