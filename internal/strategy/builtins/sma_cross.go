// Package builtins provides the built-in strategy implementations that ship
// with scalparo. Every strategy registers itself into strategy.Default at
// process start.
package builtins

import (
	"fmt"
	"math"

	"scalparo/internal/domain"
	"scalparo/internal/indicator"
	"scalparo/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

func init() {
	strategy.Default.Register("sma-cross", SMACrossParams(), func(p strategy.Params) (strategy.Strategy, error) {
		return NewSMACross(p.Int("sma_period", 15)), nil
	})
}

// SMACrossParams returns the parameter schema for the SMA crossover strategy.
func SMACrossParams() map[string]strategy.ParamSpec {
	return map[string]strategy.ParamSpec{
		"sma_period": {Type: "int", Default: 15, Min: 5, Max: 200, Description: "Simple Moving Average period"},
	}
}

// SMACross buys when the close moves above its simple moving average and
// sells when it moves back below. The comparison is a strict level check
// gated on position state, so entry happens on the first bar where price
// exceeds a defined SMA (including the first bar the SMA exists at all)
// and exactly-equal values trigger nothing.
type SMACross struct {
	period int

	closes []float64
	sma    []float64
}

// NewSMACross creates the strategy with the given SMA period.
func NewSMACross(period int) *SMACross {
	return &SMACross{period: period}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string { return "sma-cross" }

// Init precomputes the SMA over the whole series.
func (s *SMACross) Init(series *domain.Series, params strategy.Params) error {
	if p := params.Int("sma_period", 0); p > 0 {
		s.period = p
	}
	s.closes = series.Closes()
	s.sma = indicator.SMA(s.closes, s.period)
	return nil
}

// Decide emits a buy while flat once price is above the SMA and a sell
// while holding once price drops below it.
func (s *SMACross) Decide(i int, view strategy.PortfolioView) (*domain.Intent, error) {
	price, sma := s.closes[i], s.sma[i]
	if math.IsNaN(sma) {
		return nil, nil
	}
	if view.Flat() {
		if price > sma {
			return &domain.Intent{
				Side:   domain.SideBuy,
				Reason: fmt.Sprintf("Price crossed above SMA(%d)", s.period),
			}, nil
		}
		return nil, nil
	}
	if price < sma {
		return &domain.Intent{
			Side:   domain.SideSell,
			Reason: fmt.Sprintf("Price crossed below SMA(%d)", s.period),
		}, nil
	}
	return nil, nil
}
