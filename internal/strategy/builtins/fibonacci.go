package builtins

import (
	"scalparo/internal/domain"
	"scalparo/internal/indicator"
	"scalparo/internal/strategy"
)

var _ strategy.Strategy = (*FibRetracement)(nil)

func init() {
	strategy.Default.Register("fibonacci", FibRetracementParams(), func(p strategy.Params) (strategy.Strategy, error) {
		return NewFibRetracement(p.Int("lookback", 50)), nil
	})
}

// FibRetracementParams returns the parameter schema for the Fibonacci
// retracement strategy.
func FibRetracementParams() map[string]strategy.ParamSpec {
	return map[string]strategy.ParamSpec{
		"lookback": {Type: "int", Default: 50, Min: 10, Max: 500, Description: "Swing high/low lookback window"},
	}
}

// FibRetracement tracks the rolling swing high and low over a lookback window
// and derives the 38.2% and 61.8% retracement levels from that range. A close
// crossing above either level is a buy; a close crossing below either level
// is a sell.
type FibRetracement struct {
	lookback int

	closes []float64
	lvl382 []float64
	lvl618 []float64
}

// NewFibRetracement creates the strategy with the given lookback.
func NewFibRetracement(lookback int) *FibRetracement {
	return &FibRetracement{lookback: lookback}
}

// Name returns "fibonacci".
func (s *FibRetracement) Name() string { return "fibonacci" }

// Init precomputes the retracement levels over the whole series.
func (s *FibRetracement) Init(series *domain.Series, params strategy.Params) error {
	if p := params.Int("lookback", 0); p > 0 {
		s.lookback = p
	}
	s.closes = series.Closes()
	hh := indicator.HighestHigh(series.Highs(), s.lookback)
	ll := indicator.LowestLow(series.Lows(), s.lookback)
	s.lvl382 = make([]float64, len(hh))
	s.lvl618 = make([]float64, len(hh))
	for i := range hh {
		diff := hh[i] - ll[i]
		s.lvl382[i] = hh[i] - diff*0.382
		s.lvl618[i] = hh[i] - diff*0.618
	}
	return nil
}

// Decide emits intents on retracement level crossings.
func (s *FibRetracement) Decide(i int, view strategy.PortfolioView) (*domain.Intent, error) {
	if view.Flat() {
		if indicator.CrossAbove(s.closes, s.lvl618, i) {
			return &domain.Intent{Side: domain.SideBuy, Reason: "Price crossed above 61.8% retracement"}, nil
		}
		if indicator.CrossAbove(s.closes, s.lvl382, i) {
			return &domain.Intent{Side: domain.SideBuy, Reason: "Price crossed above 38.2% retracement"}, nil
		}
		return nil, nil
	}
	if indicator.CrossBelow(s.closes, s.lvl382, i) {
		return &domain.Intent{Side: domain.SideSell, Reason: "Price crossed below 38.2% retracement"}, nil
	}
	if indicator.CrossBelow(s.closes, s.lvl618, i) {
		return &domain.Intent{Side: domain.SideSell, Reason: "Price crossed below 61.8% retracement"}, nil
	}
	return nil, nil
}
