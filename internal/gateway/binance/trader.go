package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"laddr/internal/gateway/exchange"
	"laddr/internal/pkg/circuit"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

// Binance error code for "Order does not exist".
const codeOrderNotFound = -2013

// Trader implements exchange.Exchange on Binance spot. All REST calls run
// behind a shared circuit breaker so a flapping venue does not get hammered.
type Trader struct {
	cfg       Config
	client    *binance.Client
	breaker   *circuit.Breaker
	qtyPlaces int32
}

var errCircuitOpen = errors.New("binance: circuit open")

func NewTrader(cfg Config, quantityPrecision int) *Trader {
	final := cfg.withDefaults()
	binance.UseTestnet = final.Testnet
	client := binance.NewClient(final.APIKey, final.APISecret)
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	if quantityPrecision < 0 {
		quantityPrecision = 6
	}
	return &Trader{
		cfg:       final,
		client:    client,
		breaker:   circuit.NewBreaker("binance-rest", 5, 30*time.Second),
		qtyPlaces: int32(quantityPrecision),
	}
}

func (t *Trader) Name() string { return "binance" }

func (t *Trader) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderAck, error) {
	if !t.breaker.Allow() {
		return exchange.OrderAck{}, errCircuitOpen
	}
	qty := t.formatQuantity(req.Quantity)
	if qty == "" {
		return exchange.OrderAck{}, fmt.Errorf("binance: quantity %v rounds to zero", req.Quantity)
	}
	resp, err := t.client.NewCreateOrderService().
		Symbol(strings.ToUpper(req.Symbol)).
		Side(toSide(req.Side)).
		Type(binance.OrderTypeMarket).
		Quantity(qty).
		NewClientOrderID(req.ClientOrderID).
		Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			// The venue answered: the order was definitively refused.
			t.breaker.Success()
			return exchange.OrderAck{}, fmt.Errorf("%w: %s", exchange.ErrOrderRejected, apiErr.Message)
		}
		t.breaker.Failure()
		return exchange.OrderAck{}, err
	}
	t.breaker.Success()
	return exchange.OrderAck{ExchangeOrderID: resp.OrderID, ClientOrderID: resp.ClientOrderID}, nil
}

func (t *Trader) GetOrder(ctx context.Context, symbol, clientOrderID string) (exchange.OrderResult, error) {
	if !t.breaker.Allow() {
		return exchange.OrderResult{}, errCircuitOpen
	}
	order, err := t.client.NewGetOrderService().
		Symbol(strings.ToUpper(symbol)).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			t.breaker.Success()
			if apiErr.Code == codeOrderNotFound {
				return exchange.OrderResult{}, exchange.ErrOrderNotFound
			}
			return exchange.OrderResult{}, err
		}
		t.breaker.Failure()
		return exchange.OrderResult{}, err
	}
	t.breaker.Success()
	return convertOrder(order), nil
}

func (t *Trader) GetBalances(ctx context.Context) (map[string]exchange.Balance, error) {
	if !t.breaker.Allow() {
		return nil, errCircuitOpen
	}
	account, err := t.client.NewGetAccountService().Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			t.breaker.Success()
		} else {
			t.breaker.Failure()
		}
		return nil, err
	}
	t.breaker.Success()
	out := make(map[string]exchange.Balance, len(account.Balances))
	for _, b := range account.Balances {
		out[strings.ToUpper(b.Asset)] = exchange.Balance{
			Asset:  strings.ToUpper(b.Asset),
			Free:   parseFloat(b.Free),
			Locked: parseFloat(b.Locked),
		}
	}
	return out, nil
}

func (t *Trader) LastPrice(ctx context.Context, symbol string) (float64, error) {
	if !t.breaker.Allow() {
		return 0, errCircuitOpen
	}
	symbol = strings.ToUpper(symbol)
	prices, err := t.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			t.breaker.Success()
		} else {
			t.breaker.Failure()
		}
		return 0, err
	}
	t.breaker.Success()
	for _, p := range prices {
		if p != nil && strings.EqualFold(p.Symbol, symbol) {
			return parseFloat(p.Price), nil
		}
	}
	return 0, fmt.Errorf("binance: no ticker price for %s", symbol)
}

func (t *Trader) formatQuantity(q float64) string {
	d := decimal.NewFromFloat(q).RoundFloor(t.qtyPlaces)
	if d.IsZero() || d.IsNegative() {
		return ""
	}
	return d.String()
}

func toSide(s exchange.Side) binance.SideType {
	if s == exchange.SideSell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

func convertOrder(o *binance.Order) exchange.OrderResult {
	filled := parseFloat(o.ExecutedQuantity)
	cumQuote := parseFloat(o.CummulativeQuoteQuantity)
	avg := 0.0
	if filled > 0 {
		avg = cumQuote / filled
	}
	updated := o.UpdateTime
	if updated == 0 {
		updated = o.Time
	}
	return exchange.OrderResult{
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          exchange.Side(o.Side),
		Status:        convertStatus(o.Status, filled, parseFloat(o.OrigQuantity)),
		FilledQty:     filled,
		AvgPrice:      avg,
		UpdatedAt:     time.UnixMilli(updated),
	}
}

func convertStatus(s binance.OrderStatusType, filled, orig float64) exchange.OrderStatus {
	switch s {
	case binance.OrderStatusTypeFilled:
		return exchange.StatusFilled
	case binance.OrderStatusTypePartiallyFilled:
		return exchange.StatusPartial
	case binance.OrderStatusTypeRejected:
		return exchange.StatusRejected
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		// A canceled order that filled partially still carries a usable fill.
		if filled > 0 && filled < orig {
			return exchange.StatusPartial
		}
		return exchange.StatusCanceled
	default:
		return exchange.StatusPending
	}
}

var _ exchange.Exchange = (*Trader)(nil)
