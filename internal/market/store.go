package market

import "sync"

// Window is a bounded rolling candle history for one symbol/interval pair.
// Signal generators read it as an immutable slice copy.
type Window struct {
	mu  sync.RWMutex
	max int
	buf []Candle
}

func NewWindow(max int) *Window {
	if max <= 0 {
		max = 500
	}
	return &Window{max: max}
}

// Seed replaces the window contents, keeping at most max trailing candles.
func (w *Window) Seed(candles []Candle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(candles) > w.max {
		candles = candles[len(candles)-w.max:]
	}
	w.buf = append(w.buf[:0], candles...)
}

// Push appends a closed candle. A candle with the same open time as the last
// entry replaces it, so duplicate deliveries after a reconnect are harmless.
func (w *Window) Push(c Candle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.buf)
	if n > 0 && w.buf[n-1].OpenTime == c.OpenTime {
		w.buf[n-1] = c
		return
	}
	w.buf = append(w.buf, c)
	if len(w.buf) > w.max {
		w.buf = w.buf[len(w.buf)-w.max:]
	}
}

func (w *Window) Candles() []Candle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Candle, len(w.buf))
	copy(out, w.buf)
	return out
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.buf)
}
