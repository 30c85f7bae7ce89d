// Package strategy computes the per-bar entry signal. Each generator is a
// pure function over a bounded candle history, with no state beyond the
// window it is handed, so live and replay evaluations are identical.
package strategy

import (
	"fmt"
	"strings"

	"laddr/internal/market"
)

type Metrics map[string]float64

// EntrySignal reports whether the latest closed bar triggers an entry.
type EntrySignal interface {
	Name() string
	Evaluate(candles []market.Candle) (bool, Metrics)
}

// New selects a signal generator from the configured entry logic name.
func New(logic string) (EntrySignal, error) {
	switch strings.ToUpper(strings.TrimSpace(logic)) {
	case "", "MACD":
		return MACDSignal{Fast: 12, Slow: 26, Signal: 9}, nil
	case "STOCH", "STOCHRSI", "STOCH_RSI":
		return StochRSISignal{Period: 14, FastK: 14, FastD: 3, Threshold: 20}, nil
	case "ATR", "EMA":
		return EMATrendSignal{Fast: 10, Slow: 30}, nil
	default:
		return nil, fmt.Errorf("unknown entry logic %q", logic)
	}
}

func closes(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
