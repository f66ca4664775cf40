package builtins

import (
	"math"

	"scalparo/internal/domain"
	"scalparo/internal/indicator"
	"scalparo/internal/strategy"
)

var _ strategy.Strategy = (*BollingerReversion)(nil)

func init() {
	strategy.Default.Register("bollinger", BollingerReversionParams(), func(p strategy.Params) (strategy.Strategy, error) {
		return NewBollingerReversion(
			p.Int("bb_period", 20),
			p.Get("bb_dev", 2.0),
		), nil
	})
}

// BollingerReversionParams returns the parameter schema for the Bollinger
// band strategy.
func BollingerReversionParams() map[string]strategy.ParamSpec {
	return map[string]strategy.ParamSpec{
		"bb_period": {Type: "int", Default: 20, Min: 5, Max: 200, Description: "Moving average period for the bands"},
		"bb_dev":    {Type: "float", Default: 2.0, Min: 0.5, Max: 4.0, Step: 0.1, Description: "Standard deviation multiplier"},
	}
}

// BollingerReversion buys when the close touches or breaks the lower band
// and sells when it touches or breaks the upper band, betting on reversion
// to the middle of the channel. Band touches are evaluated as levels, not
// crossings.
type BollingerReversion struct {
	period int
	dev    float64

	closes []float64
	upper  []float64
	lower  []float64
}

// NewBollingerReversion creates the strategy with explicit band settings.
func NewBollingerReversion(period int, dev float64) *BollingerReversion {
	return &BollingerReversion{period: period, dev: dev}
}

// Name returns "bollinger".
func (s *BollingerReversion) Name() string { return "bollinger" }

// Init precomputes the bands over the whole series.
func (s *BollingerReversion) Init(series *domain.Series, params strategy.Params) error {
	if p := params.Int("bb_period", 0); p > 0 {
		s.period = p
	}
	if v := params.Get("bb_dev", 0); v > 0 {
		s.dev = v
	}
	s.closes = series.Closes()
	_, s.upper, s.lower = indicator.Bollinger(s.closes, s.period, s.dev)
	return nil
}

// Decide emits intents on band touches.
func (s *BollingerReversion) Decide(i int, view strategy.PortfolioView) (*domain.Intent, error) {
	price := s.closes[i]
	if math.IsNaN(s.lower[i]) {
		return nil, nil
	}
	if view.Flat() {
		if price <= s.lower[i] {
			return &domain.Intent{Side: domain.SideBuy, Reason: "Price at or below lower band"}, nil
		}
		return nil, nil
	}
	if price >= s.upper[i] {
		return &domain.Intent{Side: domain.SideSell, Reason: "Price at or above upper band"}, nil
	}
	return nil, nil
}
