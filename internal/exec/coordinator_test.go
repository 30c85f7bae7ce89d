package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"laddr/internal/gateway/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExchange scripts submit/poll behavior per test.
type fakeExchange struct {
	mu        sync.Mutex
	submitErr error
	results   []exchange.OrderResult // consumed per GetOrder call, last repeats
	getErr    error
	notFound  bool
	submits   []exchange.OrderRequest
	getCalls  int
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) SubmitOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, req)
	if f.submitErr != nil {
		return exchange.OrderAck{}, f.submitErr
	}
	return exchange.OrderAck{ExchangeOrderID: 1, ClientOrderID: req.ClientOrderID}, nil
}

func (f *fakeExchange) GetOrder(_ context.Context, _, clientOrderID string) (exchange.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.notFound {
		return exchange.OrderResult{}, exchange.ErrOrderNotFound
	}
	if f.getErr != nil {
		return exchange.OrderResult{}, f.getErr
	}
	if len(f.results) == 0 {
		return exchange.OrderResult{}, exchange.ErrOrderNotFound
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	res.ClientOrderID = clientOrderID
	return res, nil
}

func (f *fakeExchange) GetBalances(context.Context) (map[string]exchange.Balance, error) {
	return nil, nil
}

func (f *fakeExchange) LastPrice(context.Context, string) (float64, error) {
	return 0, errors.New("no ticker")
}

func fastConfig() Config {
	return Config{PollInterval: time.Millisecond, MaxPolls: 3, MinFillRatio: 0.1}
}

func TestExecuteConfirmsFilledOrder(t *testing.T) {
	fx := &fakeExchange{results: []exchange.OrderResult{
		{Status: exchange.StatusFilled, FilledQty: 100, AvgPrice: 99.5, UpdatedAt: time.Now()},
	}}
	c := NewCoordinator(fx, fastConfig())

	out, err := c.Execute(context.Background(), "BTCUSDT", exchange.SideBuy, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, out.Status)
	require.NotNil(t, out.Fill)
	assert.InDelta(t, 100.0, out.Fill.Quantity, 1e-9)
	assert.InDelta(t, 99.5, out.Fill.Price, 1e-9)
	assert.Equal(t, out.Request.ClientOrderID, out.Fill.ClientOrderID)
	assert.NotEmpty(t, out.Request.ClientOrderID)
}

func TestExecuteWaitsThroughPendingPolls(t *testing.T) {
	fx := &fakeExchange{results: []exchange.OrderResult{
		{Status: exchange.StatusPending},
		{Status: exchange.StatusPending},
		{Status: exchange.StatusFilled, FilledQty: 50, AvgPrice: 10},
	}}
	c := NewCoordinator(fx, fastConfig())

	out, err := c.Execute(context.Background(), "ETHUSDT", exchange.SideBuy, 50)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, out.Status)
	assert.GreaterOrEqual(t, fx.getCalls, 3)
}

func TestExecuteRejectedAtSubmit(t *testing.T) {
	fx := &fakeExchange{submitErr: fmt.Errorf("%w: insufficient balance", exchange.ErrOrderRejected)}
	c := NewCoordinator(fx, fastConfig())

	out, err := c.Execute(context.Background(), "BTCUSDT", exchange.SideBuy, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.Status)
	assert.Nil(t, out.Fill)
	assert.Zero(t, fx.getCalls, "no polling after a definitive rejection")
}

func TestExecuteNetworkErrorThenDiscoveredFill(t *testing.T) {
	// Submit errors at transport level but the order actually reached the
	// venue; polling with the same clientOrderID finds it.
	fx := &fakeExchange{
		submitErr: errors.New("timeout awaiting response"),
		results: []exchange.OrderResult{
			{Status: exchange.StatusFilled, FilledQty: 100, AvgPrice: 20},
		},
	}
	c := NewCoordinator(fx, fastConfig())

	out, err := c.Execute(context.Background(), "BTCUSDT", exchange.SideBuy, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, out.Status)
}

func TestExecuteTimesOutWhenOrderNeverVisible(t *testing.T) {
	fx := &fakeExchange{submitErr: errors.New("connection reset"), notFound: true}
	c := NewCoordinator(fx, fastConfig())

	out, err := c.Execute(context.Background(), "BTCUSDT", exchange.SideSell, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, out.Status)
	assert.Nil(t, out.Fill, "no fill may be assumed on timeout")
}

func TestExecuteAcceptsPartialAboveThresholdAtBudgetEnd(t *testing.T) {
	fx := &fakeExchange{results: []exchange.OrderResult{
		{Status: exchange.StatusPartial, FilledQty: 40, AvgPrice: 10},
	}}
	c := NewCoordinator(fx, fastConfig())

	out, err := c.Execute(context.Background(), "BTCUSDT", exchange.SideBuy, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, out.Status)
	require.NotNil(t, out.Fill)
	assert.InDelta(t, 40.0, out.Fill.Quantity, 1e-9, "partial accepted as-is, remainder not resubmitted")
}

func TestExecuteRejectsCanceledUnfilled(t *testing.T) {
	fx := &fakeExchange{results: []exchange.OrderResult{
		{Status: exchange.StatusCanceled},
	}}
	c := NewCoordinator(fx, fastConfig())

	out, err := c.Execute(context.Background(), "BTCUSDT", exchange.SideBuy, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.Status)
}

func TestPendingBook(t *testing.T) {
	b := NewPendingBook()
	b.Add(exchange.OrderRequest{ClientOrderID: "a", Symbol: "BTCUSDT"})
	b.Add(exchange.OrderRequest{ClientOrderID: "b", Symbol: "ETHUSDT"})
	b.Add(exchange.OrderRequest{}) // no id, ignored
	assert.Equal(t, 2, b.Len())

	b.Remove("a")
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, "b", b.List()[0].ClientOrderID)
}
