package builtins

import (
	"fmt"
	"math"

	"scalparo/internal/domain"
	"scalparo/internal/indicator"
	"scalparo/internal/strategy"
)

var _ strategy.Strategy = (*RSIReversion)(nil)

func init() {
	strategy.Default.Register("rsi", RSIReversionParams(), func(p strategy.Params) (strategy.Strategy, error) {
		return NewRSIReversion(
			p.Int("rsi_period", 14),
			p.Get("oversold", 30),
			p.Get("overbought", 70),
		), nil
	})
}

// RSIReversionParams returns the parameter schema for the RSI strategy.
func RSIReversionParams() map[string]strategy.ParamSpec {
	return map[string]strategy.ParamSpec{
		"rsi_period": {Type: "int", Default: 14, Min: 2, Max: 100, Description: "RSI lookback period"},
		"oversold":   {Type: "float", Default: 30, Min: 1, Max: 50, Description: "Buy when RSI falls below this level"},
		"overbought": {Type: "float", Default: 70, Min: 50, Max: 99, Description: "Sell when RSI rises above this level"},
	}
}

// RSIReversion is a mean-reversion strategy. It buys when RSI drops below the
// oversold level and sells when RSI rises above the overbought level. Levels
// are evaluated directly rather than as crossings, so a persistently oversold
// market keeps producing a buy intent until the position is open.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64

	rsi []float64
}

// NewRSIReversion creates the strategy with explicit levels.
func NewRSIReversion(period int, oversold, overbought float64) *RSIReversion {
	return &RSIReversion{period: period, oversold: oversold, overbought: overbought}
}

// Name returns "rsi".
func (s *RSIReversion) Name() string { return "rsi" }

// Init precomputes the RSI over the whole series.
func (s *RSIReversion) Init(series *domain.Series, params strategy.Params) error {
	if p := params.Int("rsi_period", 0); p > 0 {
		s.period = p
	}
	if v := params.Get("oversold", 0); v > 0 {
		s.oversold = v
	}
	if v := params.Get("overbought", 0); v > 0 {
		s.overbought = v
	}
	s.rsi = indicator.RSI(series.Closes(), s.period)
	return nil
}

// Decide emits level-based intents from the precomputed RSI.
func (s *RSIReversion) Decide(i int, view strategy.PortfolioView) (*domain.Intent, error) {
	v := s.rsi[i]
	if math.IsNaN(v) {
		return nil, nil
	}
	if view.Flat() {
		if v < s.oversold {
			return &domain.Intent{
				Side:   domain.SideBuy,
				Reason: fmt.Sprintf("RSI %.1f below oversold %.0f", v, s.oversold),
			}, nil
		}
		return nil, nil
	}
	if v > s.overbought {
		return &domain.Intent{
			Side:   domain.SideSell,
			Reason: fmt.Sprintf("RSI %.1f above overbought %.0f", v, s.overbought),
		}, nil
	}
	return nil, nil
}
