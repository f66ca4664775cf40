package builtins

import (
	"fmt"
	"math"

	"scalparo/internal/domain"
	"scalparo/internal/indicator"
	"scalparo/internal/strategy"
)

var (
	_ strategy.Strategy = (*ZoneAccumulator)(nil)
)

func init() {
	strategy.Default.Register("zone", ZoneAccumulatorParams(), func(p strategy.Params) (strategy.Strategy, error) {
		return NewZoneAccumulator(p), nil
	})
}

// ZoneAccumulatorParams returns the parameter schema for the zone strategy.
func ZoneAccumulatorParams() map[string]strategy.ParamSpec {
	return map[string]strategy.ParamSpec{
		"chunk_small":       {Type: "float", Default: 150, Min: 10, Max: 100000, Description: "Smallest buy chunk in quote currency"},
		"chunk_medium":      {Type: "float", Default: 200, Min: 10, Max: 100000, Description: "Medium buy chunk in quote currency"},
		"chunk_large":       {Type: "float", Default: 300, Min: 10, Max: 100000, Description: "Largest buy chunk in quote currency"},
		"max_allocation":    {Type: "float", Default: 1000, Min: 100, Max: 1000000, Description: "Maximum total capital allocated to open lots"},
		"profit_target_pct": {Type: "float", Default: 0.5, Min: 0.1, Max: 20, Step: 0.1, Description: "Per-lot profit target percent"},
		"atr_period":        {Type: "int", Default: 14, Min: 2, Max: 100, Description: "ATR period for the entry threshold"},
		"weighted_period":   {Type: "int", Default: 24, Min: 2, Max: 200, Description: "Weighted close average period"},
	}
}

// ZoneAccumulator accumulates a position in fixed-value chunks while price
// holds above a volatility-adjusted trend floor, and exits each lot
// independently at its own profit target. Because each entry is a separate
// lot with its own target, several lots can be open at once; sells always
// name the lot they close.
//
// The entry floor is the weighted-close moving average minus one ATR. Buying
// stops once the allocated capital reaches max_allocation and resumes as
// lots close.
type ZoneAccumulator struct {
	chunks    []float64
	maxAlloc  float64
	targetPct float64
	atrPeriod int
	wcPeriod  int

	closes []float64
	floor  []float64
}

// NewZoneAccumulator creates the strategy from a resolved parameter set.
func NewZoneAccumulator(p strategy.Params) *ZoneAccumulator {
	return &ZoneAccumulator{
		chunks: []float64{
			p.Get("chunk_large", 300),
			p.Get("chunk_medium", 200),
			p.Get("chunk_small", 150),
		},
		maxAlloc:  p.Get("max_allocation", 1000),
		targetPct: p.Get("profit_target_pct", 0.5),
		atrPeriod: p.Int("atr_period", 14),
		wcPeriod:  p.Int("weighted_period", 24),
	}
}

// Name returns "zone".
func (s *ZoneAccumulator) Name() string { return "zone" }

// Init precomputes the entry floor over the whole series.
func (s *ZoneAccumulator) Init(series *domain.Series, params strategy.Params) error {
	highs, lows := series.Highs(), series.Lows()
	s.closes = series.Closes()

	wc := indicator.WeightedClose(highs, lows, s.closes)
	wcAvg := indicator.SMA(wc, s.wcPeriod)
	atr := indicator.ATR(highs, lows, s.closes, s.atrPeriod)

	s.floor = make([]float64, len(s.closes))
	for i := range s.floor {
		s.floor[i] = wcAvg[i] - atr[i]
	}
	return nil
}

// Decide first checks open lots for a hit profit target, then considers a
// new chunk entry. At most one intent is returned per bar, so a target hit
// defers any entry to the next bar.
func (s *ZoneAccumulator) Decide(i int, view strategy.PortfolioView) (*domain.Intent, error) {
	price := s.closes[i]

	for _, lot := range view.Lots {
		target := lot.TargetPct
		if target <= 0 {
			target = s.targetPct
		}
		if price >= lot.EntryPrice*(1+target/100) {
			return &domain.Intent{
				Side:   domain.SideSell,
				LotID:  lot.ID,
				Size:   lot.Size,
				Reason: fmt.Sprintf("Profit target %.1f%% hit on lot entered at %.2f", target, lot.EntryPrice),
			}, nil
		}
	}

	if math.IsNaN(s.floor[i]) || price < s.floor[i] {
		return nil, nil
	}
	remaining := s.maxAlloc - view.Allocated
	for _, chunk := range s.chunks {
		if chunk <= remaining {
			return &domain.Intent{
				Side:      domain.SideBuy,
				Value:     chunk,
				TargetPct: s.targetPct,
				Reason:    fmt.Sprintf("Price %.2f above trend floor %.2f", price, s.floor[i]),
			}, nil
		}
	}
	return nil, nil
}
