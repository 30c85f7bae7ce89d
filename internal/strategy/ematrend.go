package strategy

import (
	"laddr/internal/market"

	talib "github.com/markcheno/go-talib"
)

// EMATrendSignal fires when the fast EMA crosses above the slow EMA on the
// latest closed bar.
type EMATrendSignal struct {
	Fast int
	Slow int
}

func (s EMATrendSignal) Name() string { return "EMA_TREND" }

func (s EMATrendSignal) Evaluate(candles []market.Candle) (bool, Metrics) {
	if len(candles) < s.Slow+2 {
		return false, nil
	}
	cl := closes(candles)
	fast := talib.Ema(cl, s.Fast)
	slow := talib.Ema(cl, s.Slow)
	n := len(fast)
	if n < 2 || len(slow) < 2 {
		return false, nil
	}
	crossed := fast[n-1] > slow[n-1] && fast[n-2] <= slow[n-2]
	return crossed, Metrics{
		"ema_fast":  fast[n-1],
		"ema_slow":  slow[n-1],
		"prev_fast": fast[n-2],
		"prev_slow": slow[n-2],
	}
}
