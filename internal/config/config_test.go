package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
exchange:
  api_key: key
  api_secret: secret
strategy:
  symbols: ["btcusdt"]
  base_order_size: 0.01
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "laddr.yaml", minimalConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT"}, cfg.Strategy.NormalizedSymbols())
	assert.Equal(t, "1m", cfg.Strategy.Interval)
	assert.Equal(t, "MACD", cfg.Strategy.EntryLogic)
	assert.Equal(t, 5, cfg.Strategy.MaxLayers)
	assert.Equal(t, 2.0, cfg.Strategy.Multiplier)
	assert.Equal(t, 24.0, cfg.Strategy.TakeProfitDecayHours)
	assert.Equal(t, "binance", cfg.Exchange.Name)
	assert.Equal(t, "USDT", cfg.Exchange.QuoteAsset)
	assert.Equal(t, 10, cfg.Execution.MaxPolls)
	assert.Equal(t, 5, cfg.Reconcile.IntervalMinutes)
	assert.Equal(t, ":9985", cfg.App.HTTPAddr)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
strategy:
  symbols: ["ethusdt"]
  base_order_size: 0.5
  max_layers: 3
exchange:
  api_key: base-key
  api_secret: base-secret
`)
	path := writeConfig(t, dir, "live.yaml", `
include:
  - base.yaml
strategy:
  max_layers: 6
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// The including file wins on conflicts; untouched keys survive the merge.
	assert.Equal(t, 6, cfg.Strategy.MaxLayers)
	assert.Equal(t, 0.5, cfg.Strategy.BaseOrderSize)
	assert.Equal(t, "base-key", cfg.Exchange.APIKey)
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoadExpandsSecretEnvRefs(t *testing.T) {
	t.Setenv("LADDR_TEST_KEY", "from-env")
	path := writeConfig(t, t.TempDir(), "laddr.yaml", `
exchange:
  api_key: ${LADDR_TEST_KEY}
  api_secret: literal
strategy:
  symbols: ["btcusdt"]
  base_order_size: 0.01
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Exchange.APIKey)
	assert.Equal(t, "literal", cfg.Exchange.APISecret)
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no symbols",
			body: "strategy:\n  base_order_size: 0.01\n",
			want: "symbols",
		},
		{
			name: "tp_min above tp0",
			body: "strategy:\n  symbols: [btcusdt]\n  base_order_size: 0.01\n  take_profit_pct: 1.0\n  take_profit_min_pct: 2.0\n",
			want: "take_profit_min_pct",
		},
		{
			name: "multiplier below one",
			body: "strategy:\n  symbols: [btcusdt]\n  base_order_size: 0.01\n  multiplier: 0.5\n",
			want: "multiplier",
		},
		{
			name: "negative max layers",
			body: "strategy:\n  symbols: [btcusdt]\n  base_order_size: 0.01\n  max_layers: -2\n",
			want: "max_layers",
		},
		{
			name: "bad interval",
			body: "strategy:\n  symbols: [btcusdt]\n  base_order_size: 0.01\n  interval: quarterly\n",
			want: "interval",
		},
		{
			name: "negative decay",
			body: "strategy:\n  symbols: [btcusdt]\n  base_order_size: 0.01\n  take_profit_decay_hours: -1\n",
			want: "decay",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "laddr.yaml", tc.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadRejectsEnabledTelegramWithoutToken(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "laddr.yaml", minimalConfig+`
notify:
  telegram:
    enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestApplyOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "laddr.yaml", minimalConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	err = ApplyOverrides(cfg, map[string]any{
		"strategy": map[string]any{"max_layers": 7, "layer_step_pct": 3.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Strategy.MaxLayers)
	assert.Equal(t, 3.5, cfg.Strategy.LayerStepPct)
	// Untouched sections keep their loaded values.
	assert.Equal(t, 0.01, cfg.Strategy.BaseOrderSize)
}

func TestApplyOverridesRevalidates(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "laddr.yaml", minimalConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	err = ApplyOverrides(cfg, map[string]any{
		"strategy": map[string]any{"multiplier": 0.2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiplier")
}
