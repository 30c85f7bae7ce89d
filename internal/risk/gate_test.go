package risk

import (
	"testing"
	"time"

	"laddr/internal/engine"
	"laddr/internal/ledger"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestGateDeniesOverNotionalCap(t *testing.T) {
	g := NewGate(Config{MaxNotional: 50000})
	v := ledger.View{Symbol: "BTCUSDT", CashCommitted: 45000}

	ok, reason := g.Allow(v, engine.Decision{Kind: engine.AddLayer, Quantity: 100}, 100, now)
	assert.False(t, ok)
	assert.Contains(t, reason, "exceeds cap")

	ok, _ = g.Allow(v, engine.Decision{Kind: engine.AddLayer, Quantity: 40}, 100, now)
	assert.True(t, ok)
}

func TestGateDeniesDuringCooldown(t *testing.T) {
	g := NewGate(Config{MaxNotional: 1e9})
	v := ledger.View{Symbol: "BTCUSDT", CooldownUntil: now.Add(time.Minute)}

	ok, reason := g.Allow(v, engine.Decision{Kind: engine.OpenBase, Quantity: 1}, 100, now)
	assert.False(t, ok)
	assert.Contains(t, reason, "cooldown")

	ok, _ = g.Allow(v, engine.Decision{Kind: engine.OpenBase, Quantity: 1}, 100, now.Add(2*time.Minute))
	assert.True(t, ok)
}

func TestGateNeverDeniesExit(t *testing.T) {
	g := NewGate(Config{MaxNotional: 1})
	v := ledger.View{
		Symbol:        "BTCUSDT",
		CashCommitted: 1e12,
		CooldownUntil: now.Add(time.Hour),
	}
	ok, _ := g.Allow(v, engine.Decision{Kind: engine.Exit, Quantity: 1e6}, 100, now)
	assert.True(t, ok)
}

func TestGateZeroCapDisablesNotionalCheck(t *testing.T) {
	g := NewGate(Config{MaxNotional: 0})
	ok, _ := g.Allow(ledger.View{}, engine.Decision{Kind: engine.OpenBase, Quantity: 1e9}, 100, now)
	assert.True(t, ok)
}
