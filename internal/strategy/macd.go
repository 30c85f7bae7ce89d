package strategy

import (
	"laddr/internal/market"

	talib "github.com/markcheno/go-talib"
)

// MACDSignal fires on a bullish crossover of the MACD line over its signal
// line on the latest closed bar.
type MACDSignal struct {
	Fast   int
	Slow   int
	Signal int
}

func (s MACDSignal) Name() string { return "MACD" }

func (s MACDSignal) Evaluate(candles []market.Candle) (bool, Metrics) {
	required := s.Slow + s.Signal
	if len(candles) < required {
		return false, nil
	}
	macd, signal, _ := talib.Macd(closes(candles), s.Fast, s.Slow, s.Signal)
	n := len(macd)
	if n < 2 {
		return false, nil
	}
	crossed := macd[n-1] > signal[n-1] && macd[n-2] <= signal[n-2]
	return crossed, Metrics{
		"macd":        macd[n-1],
		"signal":      signal[n-1],
		"prev_macd":   macd[n-2],
		"prev_signal": signal[n-2],
	}
}
