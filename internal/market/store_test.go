package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowBounded(t *testing.T) {
	w := NewWindow(3)
	for i := 0; i < 5; i++ {
		w.Push(Candle{OpenTime: int64(i), Close: float64(i)})
	}
	got := w.Candles()
	assert.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].OpenTime)
	assert.Equal(t, int64(4), got[2].OpenTime)
}

func TestWindowDuplicateOpenTimeReplaces(t *testing.T) {
	w := NewWindow(10)
	w.Push(Candle{OpenTime: 100, Close: 1})
	w.Push(Candle{OpenTime: 100, Close: 2})
	got := w.Candles()
	assert.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Close)
}

func TestWindowSeedTruncates(t *testing.T) {
	w := NewWindow(2)
	w.Seed([]Candle{{OpenTime: 1}, {OpenTime: 2}, {OpenTime: 3}})
	got := w.Candles()
	assert.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].OpenTime)
}

func TestWindowCandlesIsCopy(t *testing.T) {
	w := NewWindow(10)
	w.Push(Candle{OpenTime: 1, Close: 1})
	got := w.Candles()
	got[0].Close = 99
	assert.Equal(t, 1.0, w.Candles()[0].Close)
}
