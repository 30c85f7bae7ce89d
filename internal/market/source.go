package market

import "context"

// CandleEvent is a closed bar delivered by a subscription.
type CandleEvent struct {
	Symbol   string
	Interval string
	Candle   Candle
}

// TickEvent is a single trade print. Ticks drive intra-bar exit checks so the
// bot can react at stream cadence instead of waiting for bar close.
type TickEvent struct {
	Symbol    string
	Price     float64
	Quantity  float64
	EventTime int64
	TradeTime int64
}

type SubscribeOptions struct {
	Buffer       int
	OnConnect    func()
	OnDisconnect func(error)
}

type SourceStats struct {
	Reconnects      int
	SubscribeErrors int
	LastError       string
}

// Source produces candles and ticks for subscribed symbols. Subscribe and
// SubscribeTrades replace any previous subscription of the same kind, which
// makes resubscription (reconnect) idempotent.
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	Subscribe(ctx context.Context, symbols []string, interval string, opts SubscribeOptions) (<-chan CandleEvent, error)

	SubscribeTrades(ctx context.Context, symbols []string, opts SubscribeOptions) (<-chan TickEvent, error)

	Stats() SourceStats

	Close() error
}
