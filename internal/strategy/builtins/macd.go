package builtins

import (
	"scalparo/internal/domain"
	"scalparo/internal/indicator"
	"scalparo/internal/strategy"
)

var _ strategy.Strategy = (*MACDCross)(nil)

func init() {
	strategy.Default.Register("macd", MACDCrossParams(), func(p strategy.Params) (strategy.Strategy, error) {
		return NewMACDCross(
			p.Int("fast_period", 12),
			p.Int("slow_period", 26),
			p.Int("signal_period", 9),
		), nil
	})
}

// MACDCrossParams returns the parameter schema for the MACD strategy.
func MACDCrossParams() map[string]strategy.ParamSpec {
	return map[string]strategy.ParamSpec{
		"fast_period":   {Type: "int", Default: 12, Min: 2, Max: 50, Description: "Fast EMA period"},
		"slow_period":   {Type: "int", Default: 26, Min: 5, Max: 200, Description: "Slow EMA period"},
		"signal_period": {Type: "int", Default: 9, Min: 2, Max: 50, Description: "Signal line EMA period"},
	}
}

// MACDCross buys when the MACD line crosses above its signal line and sells
// when it crosses below.
type MACDCross struct {
	fast, slow, signal int

	macd   []float64
	sigArr []float64
}

// NewMACDCross creates the strategy with explicit periods.
func NewMACDCross(fast, slow, signal int) *MACDCross {
	return &MACDCross{fast: fast, slow: slow, signal: signal}
}

// Name returns "macd".
func (s *MACDCross) Name() string { return "macd" }

// Init precomputes the MACD and signal lines over the whole series.
func (s *MACDCross) Init(series *domain.Series, params strategy.Params) error {
	if p := params.Int("fast_period", 0); p > 0 {
		s.fast = p
	}
	if p := params.Int("slow_period", 0); p > 0 {
		s.slow = p
	}
	if p := params.Int("signal_period", 0); p > 0 {
		s.signal = p
	}
	s.macd, s.sigArr = indicator.MACD(series.Closes(), s.fast, s.slow, s.signal)
	return nil
}

// Decide emits intents on MACD/signal crossings.
func (s *MACDCross) Decide(i int, view strategy.PortfolioView) (*domain.Intent, error) {
	if view.Flat() {
		if indicator.CrossAbove(s.macd, s.sigArr, i) {
			return &domain.Intent{Side: domain.SideBuy, Reason: "MACD crossed above signal"}, nil
		}
		return nil, nil
	}
	if indicator.CrossBelow(s.macd, s.sigArr, i) {
		return &domain.Intent{Side: domain.SideSell, Reason: "MACD crossed below signal"}, nil
	}
	return nil, nil
}
