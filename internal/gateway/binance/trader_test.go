package binance

import (
	"testing"

	"laddr/internal/gateway/exchange"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
)

func TestFormatQuantityRoundsDown(t *testing.T) {
	tr := &Trader{qtyPlaces: 3}
	assert.Equal(t, "0.123", tr.formatQuantity(0.123999))
	assert.Equal(t, "1", tr.formatQuantity(1.0))
	assert.Equal(t, "", tr.formatQuantity(0.0001), "below precision must not submit")
	assert.Equal(t, "", tr.formatQuantity(-1))
}

func TestConvertStatus(t *testing.T) {
	cases := []struct {
		name   string
		status binance.OrderStatusType
		filled float64
		orig   float64
		want   exchange.OrderStatus
	}{
		{"filled", binance.OrderStatusTypeFilled, 1, 1, exchange.StatusFilled},
		{"partially filled", binance.OrderStatusTypePartiallyFilled, 0.5, 1, exchange.StatusPartial},
		{"rejected", binance.OrderStatusTypeRejected, 0, 1, exchange.StatusRejected},
		{"canceled clean", binance.OrderStatusTypeCanceled, 0, 1, exchange.StatusCanceled},
		{"canceled with fill", binance.OrderStatusTypeCanceled, 0.3, 1, exchange.StatusPartial},
		{"expired with fill", binance.OrderStatusTypeExpired, 0.3, 1, exchange.StatusPartial},
		{"new", binance.OrderStatusTypeNew, 0, 1, exchange.StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, convertStatus(tc.status, tc.filled, tc.orig))
		})
	}
}

func TestConvertOrderAveragesFromCumQuote(t *testing.T) {
	res := convertOrder(&binance.Order{
		ClientOrderID:            "abc",
		Symbol:                   "BTCUSDT",
		Side:                     binance.SideTypeBuy,
		Status:                   binance.OrderStatusTypeFilled,
		OrigQuantity:             "0.020",
		ExecutedQuantity:         "0.020",
		CummulativeQuoteQuantity: "981.40",
		UpdateTime:               1717200000000,
	})
	assert.Equal(t, "abc", res.ClientOrderID)
	assert.Equal(t, exchange.StatusFilled, res.Status)
	assert.InDelta(t, 0.020, res.FilledQty, 1e-12)
	assert.InDelta(t, 49070, res.AvgPrice, 1e-6)
	assert.Equal(t, int64(1717200000000), res.UpdatedAt.UnixMilli())
}

func TestConvertOrderZeroFillHasZeroAvg(t *testing.T) {
	res := convertOrder(&binance.Order{
		Status:                   binance.OrderStatusTypeCanceled,
		OrigQuantity:             "1",
		ExecutedQuantity:         "0",
		CummulativeQuoteQuantity: "0",
	})
	assert.Equal(t, exchange.StatusCanceled, res.Status)
	assert.Zero(t, res.AvgPrice)
}
