package strategy

import (
	"math"
	"testing"

	"laddr/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bars(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     c,
			High:     c * 1.001,
			Low:      c * 0.999,
			Close:    c,
		}
	}
	return out
}

func TestNewSelectsByLogicName(t *testing.T) {
	for _, logic := range []string{"MACD", "macd", ""} {
		s, err := New(logic)
		require.NoError(t, err)
		assert.Equal(t, "MACD", s.Name())
	}
	for _, logic := range []string{"STOCH", "StochRSI", "stoch_rsi"} {
		s, err := New(logic)
		require.NoError(t, err)
		assert.Equal(t, "STOCH_RSI", s.Name())
	}
	s, err := New("atr")
	require.NoError(t, err)
	assert.Equal(t, "EMA_TREND", s.Name())

	_, err = New("quantum")
	assert.Error(t, err)
}

func TestMACDWarmupReturnsFalse(t *testing.T) {
	s := MACDSignal{Fast: 12, Slow: 26, Signal: 9}
	fired, metrics := s.Evaluate(bars(1, 2, 3, 4, 5))
	assert.False(t, fired)
	assert.Nil(t, metrics)
}

func TestMACDFiresOnBullishCrossover(t *testing.T) {
	// Long decline followed by a sharp recovery forces the MACD line up
	// through its signal line somewhere in the rebound.
	var cl []float64
	for i := 0; i < 60; i++ {
		cl = append(cl, 100-float64(i)*0.5)
	}
	s := MACDSignal{Fast: 12, Slow: 26, Signal: 9}

	fired := false
	for i := 0; i < 30; i++ {
		cl = append(cl, cl[len(cl)-1]+2)
		ok, metrics := s.Evaluate(bars(cl...))
		if ok {
			fired = true
			assert.Greater(t, metrics["macd"], metrics["signal"])
			assert.LessOrEqual(t, metrics["prev_macd"], metrics["prev_signal"])
			break
		}
	}
	assert.True(t, fired, "rebound must produce a MACD crossover")
}

func TestMACDStaysQuietInSteadyDecline(t *testing.T) {
	var cl []float64
	for i := 0; i < 80; i++ {
		cl = append(cl, 100-float64(i)*0.3)
	}
	s := MACDSignal{Fast: 12, Slow: 26, Signal: 9}
	fired, _ := s.Evaluate(bars(cl...))
	assert.False(t, fired)
}

func TestEMATrendCrossover(t *testing.T) {
	var cl []float64
	for i := 0; i < 40; i++ {
		cl = append(cl, 100-float64(i))
	}
	s := EMATrendSignal{Fast: 10, Slow: 30}

	fired := false
	for i := 0; i < 40; i++ {
		cl = append(cl, cl[len(cl)-1]+3)
		if ok, _ := s.Evaluate(bars(cl...)); ok {
			fired = true
			break
		}
	}
	assert.True(t, fired, "recovery must produce an EMA crossover")
}

func TestStochRSIWarmup(t *testing.T) {
	s := StochRSISignal{Period: 14, FastK: 14, FastD: 3, Threshold: 20}
	fired, _ := s.Evaluate(bars(1, 2, 3))
	assert.False(t, fired)
}

func TestStochRSIRecoveryFromOversold(t *testing.T) {
	// Monotonic decline pins StochRSI at 0; the bounce lifts it above the
	// threshold while the smoothed line still sits at the floor.
	var cl []float64
	for i := 0; i < 60; i++ {
		cl = append(cl, 200-float64(i)+0.3*math.Sin(float64(i)))
	}
	s := StochRSISignal{Period: 14, FastK: 14, FastD: 3, Threshold: 20}

	fired := false
	for i := 0; i < 25; i++ {
		cl = append(cl, cl[len(cl)-1]+4)
		if ok, _ := s.Evaluate(bars(cl...)); ok {
			fired = true
			break
		}
	}
	assert.True(t, fired, "oversold recovery must fire")
}
