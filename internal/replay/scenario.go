package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"laddr/internal/market"

	"gopkg.in/yaml.v3"
)

// Scenario is a YAML replay definition: a bar file plus the ladder settings
// to drive through it.
type Scenario struct {
	Name       string `yaml:"name"`
	Symbol     string `yaml:"symbol"`
	QuoteAsset string `yaml:"quote_asset"`
	// CSV holds open_time_ms,open,high,low,close,volume rows. Close times
	// are derived from the row spacing; a file with a single row is assumed
	// to hold one-minute bars.
	CSV        string  `yaml:"csv"`
	EntryLogic string  `yaml:"entry_logic"`
	Cash       float64 `yaml:"cash"`

	BaseOrderSize        float64 `yaml:"base_order_size"`
	Multiplier           float64 `yaml:"multiplier"`
	MaxLayers            int     `yaml:"max_layers"`
	LayerStepPct         float64 `yaml:"layer_step_pct"`
	TakeProfitPct        float64 `yaml:"take_profit_pct"`
	TakeProfitMinPct     float64 `yaml:"take_profit_min_pct"`
	TakeProfitDecayHours float64 `yaml:"take_profit_decay_hours"`
	MaxNotional          float64 `yaml:"max_notional"`
	HistoryBars          int     `yaml:"history_bars"`
}

func LoadScenario(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario failed (%s): %w", path, err)
	}
	if sc.Symbol == "" {
		return Scenario{}, fmt.Errorf("scenario %s: symbol is required", path)
	}
	if sc.CSV == "" {
		return Scenario{}, fmt.Errorf("scenario %s: csv is required", path)
	}
	if !filepath.IsAbs(sc.CSV) {
		sc.CSV = filepath.Join(filepath.Dir(path), sc.CSV)
	}
	applyScenarioDefaults(&sc)
	return sc, nil
}

func applyScenarioDefaults(sc *Scenario) {
	if sc.QuoteAsset == "" {
		sc.QuoteAsset = "USDT"
	}
	if sc.Cash == 0 {
		sc.Cash = 10000
	}
	if sc.Multiplier == 0 {
		sc.Multiplier = 2
	}
	if sc.MaxLayers == 0 {
		sc.MaxLayers = 5
	}
	if sc.LayerStepPct == 0 {
		sc.LayerStepPct = 2
	}
	if sc.TakeProfitPct == 0 {
		sc.TakeProfitPct = 1.5
	}
	if sc.TakeProfitMinPct == 0 {
		sc.TakeProfitMinPct = 0.4
	}
	if sc.TakeProfitDecayHours == 0 {
		sc.TakeProfitDecayHours = 24
	}
	if sc.HistoryBars == 0 {
		sc.HistoryBars = 300
	}
}

// LoadBars reads a CSV bar file: open_time_ms,open,high,low,close,volume.
// A header row is skipped if present.
// singleBarSpanMs is the assumed bar duration when a CSV has only one row.
const singleBarSpanMs = 60_000

func LoadBars(path string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var out []market.Candle
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 6 {
			return nil, fmt.Errorf("%s:%d: expected 6 columns, got %d", path, line, len(rec))
		}
		openTime, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			if line == 1 {
				// header row
				continue
			}
			return nil, fmt.Errorf("%s:%d: bad open_time: %w", path, line, err)
		}
		c := market.Candle{OpenTime: openTime}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for i, target := range fields {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad column %d: %w", path, line, i+1, err)
			}
			*target = v
		}
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if prev.CloseTime == 0 {
				prev.CloseTime = c.OpenTime - 1
			}
		}
		out = append(out, c)
	}
	// The last bar's close time is estimated from the previous spacing. A
	// single-row file carries no spacing, so it falls back to one-minute bars.
	if n := len(out); n >= 2 {
		span := out[n-1].OpenTime - out[n-2].OpenTime
		out[n-1].CloseTime = out[n-1].OpenTime + span - 1
	} else if n == 1 {
		out[0].CloseTime = out[0].OpenTime + singleBarSpanMs - 1
	}
	return out, nil
}
