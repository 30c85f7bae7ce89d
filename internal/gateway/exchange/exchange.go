// Package exchange defines the abstraction over a spot trading venue.
// The execution coordinator and reconciler depend only on this interface so
// live Binance and the replay paper venue are interchangeable.
package exchange

import (
	"context"
	"time"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderStatus string

const (
	StatusPending  OrderStatus = "PENDING"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusRejected OrderStatus = "REJECTED"
	StatusCanceled OrderStatus = "CANCELED"
)

// Terminal reports whether the status can no longer change on the exchange.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusRejected, StatusCanceled:
		return true
	default:
		return false
	}
}

// OrderRequest is immutable once created. ClientOrderID is the idempotency
// key for status lookups and ledger mutation.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Quantity      float64
	ClientOrderID string
}

// OrderAck is the exchange's receipt for a submitted order.
type OrderAck struct {
	ExchangeOrderID int64
	ClientOrderID   string
}

// OrderResult is a point-in-time view of an order. Repeated lookups for the
// same ClientOrderID return fresh results for the same order.
type OrderResult struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Status        OrderStatus
	FilledQty     float64
	AvgPrice      float64
	UpdatedAt     time.Time
}

type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

func (b Balance) Total() float64 { return b.Free + b.Locked }

type Exchange interface {
	Name() string

	// SubmitOrder places a market order. A returned error may mean the order
	// never reached the venue or that only the response was lost; callers must
	// not assume either.
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error)

	// GetOrder is idempotent per clientOrderID. ErrOrderNotFound means the
	// venue has no record of the order.
	GetOrder(ctx context.Context, symbol, clientOrderID string) (OrderResult, error)

	GetBalances(ctx context.Context) (map[string]Balance, error)

	// LastPrice returns the venue's current trade price for the symbol.
	LastPrice(ctx context.Context, symbol string) (float64, error)
}
