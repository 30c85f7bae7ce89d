package replay

import (
	"context"
	"strings"
	"sync"
	"time"

	"laddr/internal/gateway/exchange"
)

// PaperExchange fills every market order instantly at the current mark price.
// It implements exchange.Exchange so replay runs through the exact submit,
// confirm and apply path used live.
type PaperExchange struct {
	mu      sync.Mutex
	symbol  string
	quote   string
	mark    float64
	now     time.Time
	baseQty float64
	cash    float64
	orders  map[string]exchange.OrderResult
}

func NewPaperExchange(symbol, quoteAsset string, startingCash float64) *PaperExchange {
	return &PaperExchange{
		symbol: strings.ToUpper(symbol),
		quote:  strings.ToUpper(quoteAsset),
		cash:   startingCash,
		orders: make(map[string]exchange.OrderResult),
	}
}

// Advance moves the simulated clock and mark price to the given bar.
func (p *PaperExchange) Advance(price float64, at time.Time) {
	p.mu.Lock()
	p.mark = price
	p.now = at
	p.mu.Unlock()
}

func (p *PaperExchange) Name() string { return "paper" }

func (p *PaperExchange) SubmitOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	notional := req.Quantity * p.mark
	if req.Side == exchange.SideBuy {
		p.baseQty += req.Quantity
		p.cash -= notional
	} else {
		p.baseQty -= req.Quantity
		p.cash += notional
	}
	p.orders[req.ClientOrderID] = exchange.OrderResult{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Status:        exchange.StatusFilled,
		FilledQty:     req.Quantity,
		AvgPrice:      p.mark,
		UpdatedAt:     p.now,
	}
	return exchange.OrderAck{ClientOrderID: req.ClientOrderID}, nil
}

func (p *PaperExchange) GetOrder(_ context.Context, _, clientOrderID string) (exchange.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.orders[clientOrderID]
	if !ok {
		return exchange.OrderResult{}, exchange.ErrOrderNotFound
	}
	return res, nil
}

func (p *PaperExchange) GetBalances(_ context.Context) (map[string]exchange.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	base := strings.TrimSuffix(p.symbol, p.quote)
	return map[string]exchange.Balance{
		base:    {Asset: base, Free: p.baseQty},
		p.quote: {Asset: p.quote, Free: p.cash},
	}, nil
}

func (p *PaperExchange) LastPrice(_ context.Context, _ string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mark, nil
}

// Cash returns the remaining quote balance.
func (p *PaperExchange) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

var _ exchange.Exchange = (*PaperExchange)(nil)
