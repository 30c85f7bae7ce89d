// Package risk gates sizing decisions behind notional and cooldown limits.
// A denial is an observability event, not an error: the decision is demoted
// to NoOp and the capital stays where it is.
package risk

import (
	"fmt"
	"time"

	"laddr/internal/engine"
	"laddr/internal/ledger"
	"laddr/internal/logger"
)

type Config struct {
	MaxNotional float64
}

type Gate struct {
	cfg Config
}

func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Allow decides whether a decision may become an order. Exit decisions are
// never denied; risk policy must not trap capital.
func (g *Gate) Allow(v ledger.View, d engine.Decision, price float64, now time.Time) (bool, string) {
	switch d.Kind {
	case engine.OpenBase, engine.AddLayer:
	case engine.Exit:
		return true, ""
	default:
		return true, ""
	}

	if now.Before(v.CooldownUntil) {
		reason := fmt.Sprintf("cooldown until %s", v.CooldownUntil.Format(time.RFC3339))
		g.logDenial(v.Symbol, d, reason)
		return false, reason
	}
	if g.cfg.MaxNotional > 0 {
		notional := d.Quantity * price
		if v.CashCommitted+notional > g.cfg.MaxNotional {
			reason := fmt.Sprintf("notional %.2f+%.2f exceeds cap %.2f", v.CashCommitted, notional, g.cfg.MaxNotional)
			g.logDenial(v.Symbol, d, reason)
			return false, reason
		}
	}
	return true, ""
}

func (g *Gate) logDenial(symbol string, d engine.Decision, reason string) {
	logger.Infof("risk gate: %s %s denied: %s", symbol, d.Kind, reason)
}
