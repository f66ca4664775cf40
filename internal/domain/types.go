// Package domain defines the core data model shared by the backtest engine,
// strategies, analytics, and reporting: bars, order intents, fills, lots,
// trades, and equity curve points.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Side identifies the direction of an intent or fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeResult classifies a closed round-trip.
type TradeResult string

const (
	TradeWin  TradeResult = "win"
	TradeLoss TradeResult = "loss"
)

// Bar is one OHLCV record for a fixed time interval. Bars are immutable
// once loaded into a Series.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Series is an ordered, immutable sequence of bars with strictly increasing
// timestamps. Spacing between bars is not assumed to be uniform.
type Series struct {
	symbol string
	bars   []Bar
}

// ErrUnorderedBars is returned by NewSeries when timestamps are not
// strictly increasing.
var ErrUnorderedBars = errors.New("bar timestamps must be strictly increasing")

// NewSeries validates ordering and wraps the given bars. The slice is owned
// by the Series afterwards and must not be mutated by the caller.
func NewSeries(symbol string, bars []Bar) (*Series, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: bar %d (%s) not after bar %d (%s)",
				ErrUnorderedBars, i, bars[i].Timestamp, i-1, bars[i-1].Timestamp)
		}
	}
	return &Series{symbol: symbol, bars: bars}, nil
}

// Symbol returns the instrument symbol the series belongs to.
func (s *Series) Symbol() string { return s.symbol }

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.bars) }

// Bar returns the bar at index i.
func (s *Series) Bar(i int) Bar { return s.bars[i] }

// Closes returns the close price of every bar, in order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high price of every bar, in order.
func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low price of every bar, in order.
func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Low
	}
	return out
}

// Volumes returns the volume of every bar, in order.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Volume
	}
	return out
}

// Intent is the order request a strategy emits for the current bar. It is
// transient: produced by Decide, consumed immediately by the engine, never
// persisted.
//
// Sizing: if Size > 0 it is an explicit quantity; otherwise if Value > 0 the
// engine buys Value worth at the bar close; otherwise the engine applies the
// default policy (95% of available cash at the close). Sell intents may name
// a specific lot via LotID; an empty LotID closes the whole position.
type Intent struct {
	Side  Side
	Size  float64
	Value float64

	// LotID targets a specific open lot on sells.
	LotID string

	// TargetPct and StopPrice, when non-zero on a buy, are recorded as
	// metadata on the opened lot.
	TargetPct float64
	StopPrice float64

	// Reason is a human-readable diagnostic carried through to the fill
	// and the signal timeline.
	Reason string
}

// Fill is one completed order execution. The fill log is append-only.
type Fill struct {
	Side       Side
	Price      float64
	Size       float64
	Value      float64
	Commission float64
	Timestamp  time.Time
	Reason     string

	// LotID links the fill to the lot it opened or closed.
	LotID string
}

// Lot is one open unit of exposure with its own entry price and size. A lot
// is created whole by a buy fill and destroyed whole by the sell fill that
// closes it.
type Lot struct {
	ID         string
	EntryPrice float64
	Size       float64
	OpenedAt   time.Time

	// Optional per-lot exit metadata, set from the opening intent.
	TargetPct float64
	StopPrice float64
}

// Value returns the lot's entry value (entry price times size).
func (l Lot) Value() float64 { return l.EntryPrice * l.Size }

// Trade is a closed round-trip derived from a lot's open and close fills.
// Trades are never mutated after creation.
type Trade struct {
	Direction  string // "long" in the base model
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	PnL        float64
	Result     TradeResult
	EntryTime  time.Time
	ExitTime   time.Time
}

// EquityPoint is one mark-to-market portfolio valuation, sampled once per
// bar during a run.
type EquityPoint struct {
	Timestamp time.Time
	Value     float64
}

// SignalMarker is a buy/sell chart marker projected from the signal log,
// in chronological order.
type SignalMarker struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Side      Side      `json:"side"`
	Reason    string    `json:"reason"`
}
