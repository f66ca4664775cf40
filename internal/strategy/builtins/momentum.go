package builtins

import (
	"fmt"
	"math"

	"scalparo/internal/domain"
	"scalparo/internal/indicator"
	"scalparo/internal/strategy"
)

var (
	_ strategy.Strategy     = (*MomentumScalper)(nil)
	_ strategy.FillObserver = (*MomentumScalper)(nil)
)

func init() {
	strategy.Default.Register("momentum", MomentumScalperParams(), func(p strategy.Params) (strategy.Strategy, error) {
		return NewMomentumScalper(p), nil
	})
}

// MomentumScalperParams returns the parameter schema for the momentum
// strategy.
func MomentumScalperParams() map[string]strategy.ParamSpec {
	return map[string]strategy.ParamSpec{
		"chunk_size":      {Type: "float", Default: 100, Min: 10, Max: 100000, Description: "Buy chunk in quote currency before throttling"},
		"max_allocation":  {Type: "float", Default: 1000, Min: 100, Max: 1000000, Description: "Maximum total capital allocated to open lots"},
		"atr_period":      {Type: "int", Default: 14, Min: 2, Max: 100, Description: "ATR period for the dynamic profit target"},
		"momentum_period": {Type: "int", Default: 3, Min: 1, Max: 50, Description: "Momentum lookback in bars"},
		"stat_period":     {Type: "int", Default: 24, Min: 2, Max: 200, Description: "Window for the rolling high and average"},
		"stop_pct":        {Type: "float", Default: 0.5, Min: 0.1, Max: 20, Step: 0.1, Description: "Per-lot stop loss percent"},
		"zone_pct":        {Type: "float", Default: 1.0, Min: 0.1, Max: 10, Step: 0.1, Description: "Re-entry suppression zone width percent"},
		"cooldown_bars":   {Type: "int", Default: 12, Min: 1, Max: 500, Description: "Bars a filled entry price suppresses re-entry"},
		"halt_bars":       {Type: "int", Default: 24, Min: 1, Max: 500, Description: "Bars to halt entries after a deep loss streak"},
	}
}

// MomentumScalper opens fixed-value lots on short-term momentum or dips below
// the rolling average, and exits each lot on a volatility-scaled profit
// target, a fixed stop, or fading momentum.
//
// Two feedback controls shape entries. Re-entry suppression skips buys near
// a recent fill price so the strategy does not stack lots inside one price
// zone. Loss throttling halves the chunk after three consecutive losing
// exits and halts entries entirely after five; a winning exit grows the
// chunk back by half steps up to full size. Both controls key off executed
// fills, so a rejected intent leaves them untouched.
type MomentumScalper struct {
	chunk     float64
	maxAlloc  float64
	atrPeriod int
	momPeriod int
	statPer   int
	stopPct   float64
	zonePct   float64
	cooldown  int
	haltBars  int

	closes []float64
	atr    []float64
	mom    []float64
	high   []float64
	avg    []float64

	// Fill-driven state.
	sizeFactor   float64
	losses       int
	haltUntil    int
	lastBuyPrice float64
	lastBuyBar   int
	entries      map[string]float64 // lot ID -> entry price
}

// NewMomentumScalper creates the strategy from a resolved parameter set.
func NewMomentumScalper(p strategy.Params) *MomentumScalper {
	return &MomentumScalper{
		chunk:     p.Get("chunk_size", 100),
		maxAlloc:  p.Get("max_allocation", 1000),
		atrPeriod: p.Int("atr_period", 14),
		momPeriod: p.Int("momentum_period", 3),
		statPer:   p.Int("stat_period", 24),
		stopPct:   p.Get("stop_pct", 0.5),
		zonePct:   p.Get("zone_pct", 1.0),
		cooldown:  p.Int("cooldown_bars", 12),
		haltBars:  p.Int("halt_bars", 24),

		sizeFactor: 1.0,
		haltUntil:  -1,
		lastBuyBar: -1,
		entries:    make(map[string]float64),
	}
}

// Name returns "momentum".
func (s *MomentumScalper) Name() string { return "momentum" }

// Init precomputes the indicator arrays over the whole series.
func (s *MomentumScalper) Init(series *domain.Series, params strategy.Params) error {
	highs, lows := series.Highs(), series.Lows()
	s.closes = series.Closes()
	s.atr = indicator.ATR(highs, lows, s.closes, s.atrPeriod)
	s.mom = indicator.Momentum(s.closes, s.momPeriod)
	s.high = indicator.HighestHigh(highs, s.statPer)
	s.avg = indicator.SMA(s.closes, s.statPer)
	return nil
}

// Decide checks open lots for an exit, then considers a throttled entry.
func (s *MomentumScalper) Decide(i int, view strategy.PortfolioView) (*domain.Intent, error) {
	price := s.closes[i]

	if intent := s.exitIntent(i, price, view); intent != nil {
		return intent, nil
	}

	if i <= s.haltUntil {
		return nil, nil
	}
	if s.inSuppressionZone(i, price) {
		return nil, nil
	}
	if math.IsNaN(s.avg[i]) || math.IsNaN(s.high[i]) || i < 1 {
		return nil, nil
	}

	dip := price < s.avg[i]
	momo := price > s.closes[i-1] && price <= s.high[i]*0.98
	if !dip && !momo {
		return nil, nil
	}

	value := math.Min(s.chunk*s.sizeFactor, s.maxAlloc-view.Allocated)
	if value <= 0 {
		return nil, nil
	}

	reason := "Momentum entry below recent high"
	if dip {
		reason = "Dip below rolling average"
	}
	return &domain.Intent{
		Side:      domain.SideBuy,
		Value:     value,
		TargetPct: s.dynamicTarget(i, price),
		StopPrice: price * (1 - s.stopPct/100),
		Reason:    reason,
	}, nil
}

func (s *MomentumScalper) exitIntent(i int, price float64, view strategy.PortfolioView) *domain.Intent {
	for _, lot := range view.Lots {
		target := lot.TargetPct
		if target <= 0 {
			target = s.dynamicTarget(i, price)
		}
		switch {
		case price >= lot.EntryPrice*(1+target/100):
			return &domain.Intent{
				Side:   domain.SideSell,
				LotID:  lot.ID,
				Size:   lot.Size,
				Reason: fmt.Sprintf("Profit target %.2f%% hit", target),
			}
		case lot.StopPrice > 0 && price <= lot.StopPrice:
			return &domain.Intent{
				Side:   domain.SideSell,
				LotID:  lot.ID,
				Size:   lot.Size,
				Reason: fmt.Sprintf("Stop loss at %.2f triggered", lot.StopPrice),
			}
		case !math.IsNaN(s.mom[i]) && s.mom[i] < 0 && price > lot.EntryPrice:
			return &domain.Intent{
				Side:   domain.SideSell,
				LotID:  lot.ID,
				Size:   lot.Size,
				Reason: "Momentum fading while in profit",
			}
		}
	}
	return nil
}

// dynamicTarget scales the profit target with volatility: 0.3% plus the ATR
// as a percent of price, clamped to [0.3%, 1.5%].
func (s *MomentumScalper) dynamicTarget(i int, price float64) float64 {
	target := 0.3
	if !math.IsNaN(s.atr[i]) && price > 0 {
		target += s.atr[i] / price * 100
	}
	return math.Min(1.5, math.Max(0.3, target))
}

func (s *MomentumScalper) inSuppressionZone(i int, price float64) bool {
	if s.lastBuyBar < 0 || i-s.lastBuyBar >= s.cooldown {
		return false
	}
	return math.Abs(price-s.lastBuyPrice)/s.lastBuyPrice*100 < s.zonePct
}

// OnFill feeds executed orders back into the suppression zone and the loss
// throttle.
func (s *MomentumScalper) OnFill(barIndex int, fill domain.Fill) {
	switch fill.Side {
	case domain.SideBuy:
		s.lastBuyPrice = fill.Price
		s.lastBuyBar = barIndex
		s.entries[fill.LotID] = fill.Price
	case domain.SideSell:
		entry, ok := s.entries[fill.LotID]
		if !ok {
			return
		}
		delete(s.entries, fill.LotID)
		if fill.Price > entry {
			s.losses = 0
			s.sizeFactor = math.Min(1.0, s.sizeFactor*1.5)
			return
		}
		s.losses++
		if s.losses >= 5 {
			s.haltUntil = barIndex + s.haltBars
			s.sizeFactor = 0.5
		} else if s.losses >= 3 {
			s.sizeFactor = 0.5
		}
	}
}
