package app

import (
	"testing"
	"time"

	"laddr/internal/config"
	"laddr/internal/ledger"

	"github.com/stretchr/testify/assert"
)

func TestCooldownsSharedDefaultFillsUnsetSides(t *testing.T) {
	cases := []struct {
		name      string
		strategy  config.StrategyConfig
		risk      config.RiskConfig
		wantLayer time.Duration
		wantExit  time.Duration
	}{
		{
			name:      "shared default covers both",
			risk:      config.RiskConfig{CooldownMinutes: 15},
			wantLayer: 15 * time.Minute,
			wantExit:  15 * time.Minute,
		},
		{
			name:      "strategy settings win",
			strategy:  config.StrategyConfig{LayerCooldownMinutes: 5, ExitCooldownMinutes: 60},
			risk:      config.RiskConfig{CooldownMinutes: 15},
			wantLayer: 5 * time.Minute,
			wantExit:  time.Hour,
		},
		{
			name:      "shared default fills only the unset side",
			strategy:  config.StrategyConfig{LayerCooldownMinutes: 5},
			risk:      config.RiskConfig{CooldownMinutes: 15},
			wantLayer: 5 * time.Minute,
			wantExit:  15 * time.Minute,
		},
		{
			name: "nothing set means no cooldown",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := cooldowns(tc.strategy, tc.risk)
			assert.Equal(t, ledger.Options{LayerCooldown: tc.wantLayer, ExitCooldown: tc.wantExit}, opts)
		})
	}
}
