package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTradeEventRender(t *testing.T) {
	ev := TradeEvent{
		Symbol:   "BTCUSDT",
		Side:     "BUY",
		Kind:     "ADD_LAYER",
		Quantity: 200,
		Price:    95,
		Layer:    2,
		At:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	text := ev.Render()
	assert.Contains(t, text, "ADD_LAYER BTCUSDT")
	assert.Contains(t, text, "Layer: `2`")
	assert.Contains(t, text, "2025-06-01 12:00:00 UTC")
}

func TestRenderBlockTruncates(t *testing.T) {
	long := strings.Repeat("x", 5000)
	text := renderBlock("*t*", []string{long}, time.Time{})
	assert.LessOrEqual(t, len(text), maxMessageLen+3)
	assert.True(t, strings.HasSuffix(text, "..."))
}

type failingSink struct{ calls int }

func (f *failingSink) SendText(string) error {
	f.calls++
	return errors.New("boom")
}

func TestCompositeReportsLastError(t *testing.T) {
	ok := LogNotifier{}
	bad := &failingSink{}
	c := NewComposite(ok, bad)
	err := c.SendText("hello")
	assert.Error(t, err)
	assert.Equal(t, 1, bad.calls)
}
