// Package exec turns approved decisions into confirmed fills. It owns the
// submit/poll/confirm state machine and guarantees the ledger is mutated at
// most once per distinct confirmed fill.
package exec

import (
	"context"
	"errors"
	"time"

	"laddr/internal/gateway/exchange"
	"laddr/internal/ledger"
	"laddr/internal/logger"

	"github.com/google/uuid"
)

type Status int

const (
	StatusConfirmed Status = iota
	StatusRejected
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "CONFIRMED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "TIMED_OUT"
	}
}

// Outcome is the terminal result of one Execute call. Fill is set only for
// StatusConfirmed.
type Outcome struct {
	Status  Status
	Fill    *ledger.Fill
	Request exchange.OrderRequest
}

type Config struct {
	PollInterval time.Duration
	MaxPolls     int
	MinFillRatio float64
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 10
	}
	if c.MinFillRatio <= 0 || c.MinFillRatio > 1 {
		c.MinFillRatio = 0.1
	}
	return c
}

type Coordinator struct {
	ex  exchange.Exchange
	cfg Config
}

func NewCoordinator(ex exchange.Exchange, cfg Config) *Coordinator {
	return &Coordinator{ex: ex, cfg: cfg.withDefaults()}
}

// Execute submits a market order and blocks until a terminal status or the
// poll budget runs out. On StatusTimedOut the order's true state is unknown:
// the caller must record it as pending and let the reconciler resolve it,
// never resubmit the same intent.
func (c *Coordinator) Execute(ctx context.Context, symbol string, side exchange.Side, quantity float64) (Outcome, error) {
	req := exchange.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Quantity:      quantity,
		ClientOrderID: uuid.NewString(),
	}
	out := Outcome{Request: req}

	ack, err := c.ex.SubmitOrder(ctx, req)
	if err != nil {
		if errors.Is(err, exchange.ErrOrderRejected) {
			logger.Warnf("exec %s: %s order rejected at submit: %v", symbol, side, err)
			out.Status = StatusRejected
			return out, nil
		}
		// Network-class failure: the order may or may not have reached the
		// venue. Fall through to polling with the same clientOrderID.
		logger.Warnf("exec %s: submit failed, probing order state: %v", symbol, err)
	} else {
		logger.Infof("exec %s: %s qty=%v submitted id=%s exchange_id=%d", symbol, side, quantity, req.ClientOrderID, ack.ExchangeOrderID)
	}

	return c.awaitConfirmation(ctx, out)
}

func (c *Coordinator) awaitConfirmation(ctx context.Context, out Outcome) (Outcome, error) {
	req := out.Request
	var last exchange.OrderResult
	var seen bool

	for attempt := 0; attempt < c.cfg.MaxPolls; attempt++ {
		res, err := c.ex.GetOrder(ctx, req.Symbol, req.ClientOrderID)
		switch {
		case errors.Is(err, exchange.ErrOrderNotFound):
			// Not visible yet (propagation delay) or never placed. Keep
			// polling; the reconciler settles the ambiguity if we time out.
		case err != nil:
			logger.Warnf("exec %s: order poll failed (attempt %d): %v", req.Symbol, attempt+1, err)
		default:
			last, seen = res, true
			if res.Status.Terminal() {
				return c.settle(out, res), nil
			}
		}
		if !sleepWithContext(ctx, c.cfg.PollInterval) {
			break
		}
	}

	// Budget exhausted. A sufficiently-filled partial is accepted as-is;
	// the remainder is never resubmitted.
	if seen && last.Status == exchange.StatusPartial && c.fillRatio(req, last) >= c.cfg.MinFillRatio {
		return c.settle(out, last), nil
	}

	logger.Warnf("exec %s: order %s state unknown after %d polls, leaving pending", req.Symbol, req.ClientOrderID, c.cfg.MaxPolls)
	out.Status = StatusTimedOut
	return out, nil
}

func (c *Coordinator) settle(out Outcome, res exchange.OrderResult) Outcome {
	req := out.Request
	switch res.Status {
	case exchange.StatusFilled, exchange.StatusPartial:
		if res.FilledQty <= 0 || c.fillRatio(req, res) < c.cfg.MinFillRatio {
			logger.Warnf("exec %s: order %s %s with fill %v below threshold, treating as rejected",
				req.Symbol, req.ClientOrderID, res.Status, res.FilledQty)
			out.Status = StatusRejected
			return out
		}
		out.Status = StatusConfirmed
		out.Fill = FillFromResult(req, res)
		return out
	default:
		out.Status = StatusRejected
		return out
	}
}

func (c *Coordinator) fillRatio(req exchange.OrderRequest, res exchange.OrderResult) float64 {
	if req.Quantity <= 0 {
		return 0
	}
	return res.FilledQty / req.Quantity
}

// FillFromResult converts an exchange-confirmed order into a ledger fill.
// Shared with the reconciler so late-resolved orders build identical fills.
func FillFromResult(req exchange.OrderRequest, res exchange.OrderResult) *ledger.Fill {
	at := res.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	return &ledger.Fill{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Quantity:      res.FilledQty,
		Price:         res.AvgPrice,
		Time:          at,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
