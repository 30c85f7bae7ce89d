// Package engine holds the strategy rules as a pure function of ledger view,
// tick and entry signal. It never mutates the ledger, which is what lets the
// live path and CSV replay share identical behavior.
package engine

import (
	"fmt"
	"math"
	"time"

	"laddr/internal/ledger"
)

type Kind int

const (
	NoOp Kind = iota
	OpenBase
	AddLayer
	Exit
)

func (k Kind) String() string {
	switch k {
	case OpenBase:
		return "OPEN_BASE"
	case AddLayer:
		return "ADD_LAYER"
	case Exit:
		return "EXIT"
	default:
		return "NO_OP"
	}
}

type Decision struct {
	Kind     Kind
	Quantity float64
	Reason   string
}

type Tick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// Params is the strategy configuration surface consumed by Decide.
type Params struct {
	BaseOrderSize        float64
	MaxLayers            int
	LayerStepPercent     float64
	Multiplier           float64
	TakeProfitPercent    float64
	TakeProfitMinPercent float64
	TakeProfitDecayHours float64
}

// TakeProfit returns the required gain percentage for a position of the given
// age: tp0 decaying exponentially toward tp_min, never below it.
func TakeProfit(p Params, age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	hours := age.Hours()
	tp := p.TakeProfitPercent * math.Exp(-hours/p.TakeProfitDecayHours)
	return math.Max(p.TakeProfitMinPercent, tp)
}

// NextLayerSize returns the quantity for ladder rung level (1-based, rung 1
// is the base order) following the configured geometric sequence.
func NextLayerSize(p Params, level int) float64 {
	if level <= 1 {
		return p.BaseOrderSize
	}
	return p.BaseOrderSize * math.Pow(p.Multiplier, float64(level-1))
}

// Decide maps the current state to exactly one decision. Evaluated on every
// tick, not only on bar close.
func Decide(v ledger.View, tick Tick, entrySignal bool, p Params) Decision {
	if tick.Price <= 0 {
		return Decision{Kind: NoOp}
	}
	// An order is in flight; a second order for the same intent must wait for
	// confirmation or the next reconciliation pass.
	if v.PendingSide != "" {
		return Decision{Kind: NoOp, Reason: "order pending"}
	}

	switch v.State {
	case ledger.StateFlat:
		if entrySignal {
			return Decision{Kind: OpenBase, Quantity: p.BaseOrderSize, Reason: "entry signal"}
		}
		return Decision{Kind: NoOp}

	case ledger.StateLayering, ledger.StateExiting:
		if v.WeightedEntryPrice <= 0 {
			return Decision{Kind: NoOp}
		}
		movePct := (tick.Price - v.WeightedEntryPrice) / v.WeightedEntryPrice * 100

		required := TakeProfit(p, tick.Time.Sub(v.WeightedEntryTime))
		if movePct >= required {
			return Decision{
				Kind:     Exit,
				Quantity: v.Quantity,
				Reason:   fmt.Sprintf("gain %.3f%% >= tp %.3f%%", movePct, required),
			}
		}

		if v.State == ledger.StateLayering && v.LayerCount < p.MaxLayers && movePct <= -p.LayerStepPercent {
			level := v.LayerCount + 1
			return Decision{
				Kind:     AddLayer,
				Quantity: NextLayerSize(p, level),
				Reason:   fmt.Sprintf("drawdown %.3f%% >= step %.3f%%, layer %d", -movePct, p.LayerStepPercent, level),
			}
		}
		return Decision{Kind: NoOp}

	default:
		return Decision{Kind: NoOp}
	}
}
