package strategy

import (
	"laddr/internal/market"

	talib "github.com/markcheno/go-talib"
)

// StochRSISignal fires when the stochastic RSI recovers above the oversold
// threshold after its smoothed line was at or below it on the prior bar.
type StochRSISignal struct {
	Period    int
	FastK     int
	FastD     int
	Threshold float64
}

func (s StochRSISignal) Name() string { return "STOCH_RSI" }

func (s StochRSISignal) Evaluate(candles []market.Candle) (bool, Metrics) {
	required := s.Period*2 + s.FastK + s.FastD
	if len(candles) < required {
		return false, nil
	}
	fastK, fastD := talib.StochRsi(closes(candles), s.Period, s.FastK, s.FastD, talib.SMA)
	n := len(fastK)
	if n < 2 || len(fastD) < 2 {
		return false, nil
	}
	triggered := fastK[n-1] > s.Threshold && fastD[len(fastD)-2] <= s.Threshold
	return triggered, Metrics{
		"stoch_rsi":   fastK[n-1],
		"signal":      fastD[len(fastD)-1],
		"prev_signal": fastD[len(fastD)-2],
	}
}
