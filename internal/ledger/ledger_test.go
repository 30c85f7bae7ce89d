package ledger

import (
	"testing"
	"time"

	"laddr/internal/gateway/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func buyFill(id string, qty, price float64, at time.Time) Fill {
	return Fill{ClientOrderID: id, Symbol: "BTCUSDT", Side: exchange.SideBuy, Quantity: qty, Price: price, Time: at}
}

func TestApplyBuildsWeightedLadder(t *testing.T) {
	l := New("BTCUSDT", Options{LayerCooldown: 30 * time.Minute})

	require.True(t, l.Apply(buyFill("o1", 100, 100, t0)))
	require.True(t, l.Apply(buyFill("o2", 200, 95, t0.Add(time.Hour))))
	require.True(t, l.Apply(buyFill("o3", 400, 90, t0.Add(2*time.Hour))))

	v := l.View()
	assert.Equal(t, StateLayering, v.State)
	assert.Equal(t, 3, v.LayerCount)
	assert.InDelta(t, 700.0, v.Quantity, 1e-9)
	assert.InDelta(t, 92.857142857, v.WeightedEntryPrice, 1e-6)
	assert.InDelta(t, 65000.0, v.CashCommitted, 1e-6)
}

func TestWeightedEntryTimeBetweenOldAndNew(t *testing.T) {
	l := New("BTCUSDT", Options{})
	l.Apply(buyFill("o1", 100, 100, t0))
	prev := l.View().WeightedEntryTime

	fillAt := t0.Add(4 * time.Hour)
	l.Apply(buyFill("o2", 300, 95, fillAt))

	got := l.View().WeightedEntryTime
	assert.True(t, got.After(prev), "weighted time must move forward")
	assert.True(t, got.Before(fillAt), "weighted time must stay before the new fill")
	// 300 of 400 units at t0+4h: weighted time is t0 + 3h.
	assert.WithinDuration(t, t0.Add(3*time.Hour), got, time.Second)
}

func TestApplyIdempotentOnClientOrderID(t *testing.T) {
	l := New("BTCUSDT", Options{})
	require.True(t, l.Apply(buyFill("dup", 100, 100, t0)))
	require.False(t, l.Apply(buyFill("dup", 100, 100, t0)))

	v := l.View()
	assert.Equal(t, 1, v.LayerCount)
	assert.InDelta(t, 100.0, v.Quantity, 1e-9)
	assert.InDelta(t, 10000.0, v.CashCommitted, 1e-9)
}

func TestExitResetsToFlatWithExitCooldown(t *testing.T) {
	l := New("BTCUSDT", Options{LayerCooldown: 10 * time.Minute, ExitCooldown: time.Hour})
	l.Apply(buyFill("o1", 100, 100, t0))
	l.Apply(buyFill("o2", 200, 95, t0))

	exitAt := t0.Add(3 * time.Hour)
	l.Apply(Fill{ClientOrderID: "x1", Symbol: "BTCUSDT", Side: exchange.SideSell, Quantity: 300, Price: 103, Time: exitAt})

	v := l.View()
	assert.Equal(t, StateFlat, v.State)
	assert.Zero(t, v.LayerCount)
	assert.Empty(t, v.Layers)
	assert.Zero(t, v.CashCommitted)
	assert.Equal(t, exitAt.Add(time.Hour), v.CooldownUntil)
}

func TestDuplicateExitFillAfterResetIsNoOp(t *testing.T) {
	l := New("BTCUSDT", Options{})
	l.Apply(buyFill("o1", 100, 100, t0))
	sell := Fill{ClientOrderID: "x1", Side: exchange.SideSell, Quantity: 100, Price: 105, Time: t0}
	require.True(t, l.Apply(sell))
	require.False(t, l.Apply(sell))
	assert.Equal(t, StateFlat, l.View().State)
}

func TestPendingMarkers(t *testing.T) {
	l := New("BTCUSDT", Options{})
	l.Apply(buyFill("o1", 100, 100, t0))

	l.MarkPending(exchange.SideSell)
	v := l.View()
	assert.Equal(t, StateExiting, v.State)
	assert.Equal(t, exchange.SideSell, v.PendingSide)

	l.ClearPending()
	v = l.View()
	assert.Equal(t, StateLayering, v.State)
	assert.Empty(t, v.PendingSide)
}

func TestApplyClearsPending(t *testing.T) {
	l := New("BTCUSDT", Options{})
	l.MarkPending(exchange.SideBuy)
	l.Apply(buyFill("o1", 100, 100, t0))
	assert.Empty(t, l.View().PendingSide)
}

func TestCorrectOverwritesToExchangeTruth(t *testing.T) {
	l := New("BTCUSDT", Options{})
	l.Apply(buyFill("o1", 100, 100, t0))
	l.Apply(buyFill("o2", 200, 95, t0))

	l.Correct(250, 96, t0.Add(time.Hour))
	v := l.View()
	assert.InDelta(t, 250.0, v.Quantity, 1e-9)
	assert.InDelta(t, 96.0, v.WeightedEntryPrice, 1e-9)
	assert.Equal(t, 2, v.LayerCount, "layer count survives correction")
	assert.Equal(t, StateLayering, v.State)

	l.Correct(0, 0, t0.Add(2*time.Hour))
	assert.Equal(t, StateFlat, l.View().State)
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := New("BTCUSDT", Options{LayerCooldown: time.Minute})
	l.Apply(buyFill("o1", 100, 100, t0))
	l.Apply(buyFill("o2", 200, 95, t0.Add(time.Hour)))

	snap := l.Snapshot()
	restored := New("BTCUSDT", Options{LayerCooldown: time.Minute})
	restored.Restore(snap)

	want, got := l.View(), restored.View()
	assert.Equal(t, want.State, got.State)
	assert.Equal(t, want.LayerCount, got.LayerCount)
	assert.InDelta(t, want.Quantity, got.Quantity, 1e-9)
	assert.InDelta(t, want.WeightedEntryPrice, got.WeightedEntryPrice, 1e-9)
	assert.WithinDuration(t, want.WeightedEntryTime, got.WeightedEntryTime, time.Millisecond)
	assert.InDelta(t, want.CashCommitted, got.CashCommitted, 1e-9)
	assert.Equal(t, want.CooldownUntil.UnixMilli(), got.CooldownUntil.UnixMilli())

	// Idempotency survives persistence.
	assert.False(t, restored.Apply(buyFill("o2", 200, 95, t0.Add(time.Hour))))
}

func TestRestoreExitingDegradesToLayering(t *testing.T) {
	l := New("BTCUSDT", Options{})
	l.Apply(buyFill("o1", 100, 100, t0))
	l.MarkPending(exchange.SideSell)
	snap := l.Snapshot()

	restored := New("BTCUSDT", Options{})
	restored.Restore(snap)
	v := restored.View()
	assert.Equal(t, StateLayering, v.State)
	assert.Empty(t, v.PendingSide)
}
