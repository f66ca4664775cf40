package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"scalparo/internal/domain"
	"scalparo/internal/strategy"
	"scalparo/internal/strategy/builtins"
)

func seriesFromCloses(t *testing.T, closes []float64) *domain.Series {
	t.Helper()
	bars := make([]domain.Bar, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol:    "BTC/USD",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    100,
		}
	}
	s, err := domain.NewSeries("BTC/USD", bars)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

// scripted plays back a fixed intent per bar index.
type scripted struct {
	intents map[int]*domain.Intent
	errs    map[int]error
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Init(*domain.Series, strategy.Params) error { return nil }

func (s *scripted) Decide(i int, _ strategy.PortfolioView) (*domain.Intent, error) {
	if err, ok := s.errs[i]; ok {
		return nil, err
	}
	return s.intents[i], nil
}

func cents(v float64) float64 { return math.Round(v*100) / 100 }

func TestRisingSeriesSingleBuyAndHold(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + float64(i)*100/99
	}
	series := seriesFromCloses(t, closes)

	res, err := NewEngine(0.001, nil).Run(series, builtins.NewSMACross(10), nil, 10000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	buys, sells := 0, 0
	for _, f := range res.Fills {
		switch f.Side {
		case domain.SideBuy:
			buys++
		case domain.SideSell:
			sells++
		}
	}
	if buys != 1 {
		t.Errorf("buys = %d, want exactly 1", buys)
	}
	if sells != 0 {
		t.Errorf("sells = %d, want 0 on a monotonic rise", sells)
	}
	if res.FinalValue <= res.InitialCash {
		t.Errorf("FinalValue = %v, want > initial %v", res.FinalValue, res.InitialCash)
	}
	if len(res.EquityCurve) != series.Len() {
		t.Errorf("equity curve length = %d, want one point per bar (%d)",
			len(res.EquityCurve), series.Len())
	}
}

func TestDipThenRallyBuysLowSellsHigh(t *testing.T) {
	// Flat, then a sharp 20-bar dip, then a 20-bar rally.
	var closes []float64
	price := 100.0
	for i := 0; i < 10; i++ {
		closes = append(closes, price)
	}
	for i := 0; i < 20; i++ {
		price -= 2
		closes = append(closes, price)
	}
	dipEnd := len(closes) - 1
	for i := 0; i < 20; i++ {
		price += 3
		closes = append(closes, price)
	}
	series := seriesFromCloses(t, closes)

	res, err := NewEngine(0.001, nil).Run(series, builtins.NewRSIReversion(14, 30, 70), nil, 10000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Fills) != 2 {
		t.Fatalf("fills = %d, want buy then sell", len(res.Fills))
	}
	buy, sell := res.Fills[0], res.Fills[1]
	if buy.Side != domain.SideBuy || sell.Side != domain.SideSell {
		t.Fatalf("fill sides = %v, %v, want buy then sell", buy.Side, sell.Side)
	}
	buyBar := int(buy.Timestamp.Sub(series.Bar(0).Timestamp).Hours())
	sellBar := int(sell.Timestamp.Sub(series.Bar(0).Timestamp).Hours())
	if buyBar > dipEnd {
		t.Errorf("buy at bar %d, want during dip (<= %d)", buyBar, dipEnd)
	}
	if sellBar <= dipEnd {
		t.Errorf("sell at bar %d, want during rally (> %d)", sellBar, dipEnd)
	}
	if sell.Price <= buy.Price {
		t.Errorf("sold at %v after buying at %v, want a profitable exit", sell.Price, buy.Price)
	}
}

func TestRoundTripCommissionToTheCent(t *testing.T) {
	series := seriesFromCloses(t, []float64{100, 110})
	strat := &scripted{intents: map[int]*domain.Intent{
		0: {Side: domain.SideBuy, Reason: "enter"},
		1: {Side: domain.SideSell, Reason: "exit"},
	}}

	res, err := NewEngine(0.01, nil).Run(series, strat, nil, 10000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}

	// Default sizing: 95% of 10000 at price 100 buys 95 units. Entry
	// commission 95.00, exit value 10450 with commission 104.50, so the
	// realized trade nets (110-100)*95 - 95.00 - 104.50.
	trade := res.Trades[0]
	if got, want := trade.Size, 95.0; got != want {
		t.Errorf("trade size = %v, want %v", got, want)
	}
	if got, want := cents(trade.PnL), 750.50; got != want {
		t.Errorf("trade PnL = %v, want %v", got, want)
	}
	if got, want := cents(res.TotalCommission), 199.50; got != want {
		t.Errorf("total commission = %v, want %v", got, want)
	}
	if trade.Result != domain.TradeWin {
		t.Errorf("trade result = %v, want win", trade.Result)
	}
}

func TestEmptySeriesFailsBeforeAnyMutation(t *testing.T) {
	engine := NewEngine(0.001, nil)

	if _, err := engine.Run(nil, &scripted{}, nil, 10000); !errors.Is(err, ErrNoData) {
		t.Errorf("Run(nil series) err = %v, want ErrNoData", err)
	}

	empty, err := domain.NewSeries("BTC/USD", nil)
	if err != nil {
		t.Fatalf("NewSeries(empty): %v", err)
	}
	res, err := engine.Run(empty, &scripted{}, nil, 10000)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Run(empty series) err = %v, want ErrNoData", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil on precondition failure", res)
	}
}

func TestStrategyFaultAbortsRun(t *testing.T) {
	series := seriesFromCloses(t, []float64{100, 101, 102})
	boom := errors.New("bad indicator state")
	strat := &scripted{errs: map[int]error{1: boom}}

	res, err := NewEngine(0, nil).Run(series, strat, nil, 1000)
	if res != nil {
		t.Fatalf("result = %+v, want nil after fault", res)
	}
	var fault *StrategyFault
	if !errors.As(err, &fault) {
		t.Fatalf("err = %v, want StrategyFault", err)
	}
	if fault.Bar != 1 {
		t.Errorf("fault bar = %d, want 1", fault.Bar)
	}
	if !errors.Is(err, boom) {
		t.Errorf("fault does not wrap the strategy error: %v", err)
	}
}

func TestRejectedIntentsRecoverAndLog(t *testing.T) {
	series := seriesFromCloses(t, []float64{100, 100, 100, 100})
	strat := &scripted{intents: map[int]*domain.Intent{
		0: {Side: domain.SideSell, Reason: "sell while flat"},
		1: {Side: domain.SideBuy, Size: 1000, Reason: "buy beyond cash"},
		2: {Side: domain.SideBuy, Reason: "legit entry"},
	}}

	res, err := NewEngine(0.001, nil).Run(series, strat, nil, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Fills) != 1 {
		t.Fatalf("fills = %d, want 1 (two rejections recovered)", len(res.Fills))
	}
	if len(res.Rejections) != 2 {
		t.Fatalf("rejections = %d, want 2", len(res.Rejections))
	}
	if res.Rejections[0].Reason != "sell while flat" || res.Rejections[1].Reason != "buy beyond cash" {
		t.Errorf("rejection reasons = %+v, want intents in bar order", res.Rejections)
	}
	if len(res.EquityCurve) != 4 {
		t.Errorf("equity curve length = %d, want 4 (loop continued)", len(res.EquityCurve))
	}
}

type countingRecorder struct {
	*SignalLog
	fills   int
	rejects int
}

func (c *countingRecorder) RecordFill(marker domain.SignalMarker) {
	c.fills++
	c.SignalLog.RecordFill(marker)
}

func (c *countingRecorder) RecordReject(ts time.Time, intent *domain.Intent, cause error) {
	c.rejects++
	c.SignalLog.RecordReject(ts, intent, cause)
}

func TestInjectedRecorderReceivesSignals(t *testing.T) {
	series := seriesFromCloses(t, []float64{100, 100, 100})
	strat := &scripted{intents: map[int]*domain.Intent{
		0: {Side: domain.SideSell, Reason: "sell while flat"},
		1: {Side: domain.SideBuy, Reason: "entry"},
	}}

	rec := &countingRecorder{SignalLog: NewSignalLog()}
	engine := NewEngine(0.001, nil)
	engine.UseRecorder(func() Recorder { return rec })

	res, err := engine.Run(series, strat, nil, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.fills != 1 || rec.rejects != 1 {
		t.Fatalf("recorder saw fills=%d rejects=%d, want 1 and 1", rec.fills, rec.rejects)
	}
	if len(res.Signals) != len(rec.Markers()) {
		t.Errorf("result signals = %d, want %d from injected recorder", len(res.Signals), len(rec.Markers()))
	}
	if len(res.Rejections) != 1 || res.Rejections[0].Reason != "sell while flat" {
		t.Errorf("rejections = %+v, want the refused sell from the injected recorder", res.Rejections)
	}
}

func TestEquityMatchesCashPlusLotsEachBar(t *testing.T) {
	closes := []float64{100, 105, 95, 120, 110, 130}
	series := seriesFromCloses(t, closes)
	strat := &scripted{intents: map[int]*domain.Intent{
		0: {Side: domain.SideBuy, Value: 300},
		2: {Side: domain.SideBuy, Value: 200},
		4: {Side: domain.SideSell},
	}}

	res, err := NewEngine(0.002, nil).Run(series, strat, nil, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Replay the fills against an independent cash/position tally and
	// compare with the sampled equity each bar.
	cash := res.InitialCash
	held := 0.0
	fillIdx := 0
	for i, pt := range res.EquityCurve {
		ts := series.Bar(i).Timestamp
		for fillIdx < len(res.Fills) && res.Fills[fillIdx].Timestamp.Equal(ts) {
			f := res.Fills[fillIdx]
			if f.Side == domain.SideBuy {
				cash -= f.Value + f.Commission
				held += f.Size
			} else {
				cash += f.Value - f.Commission
				held -= f.Size
			}
			fillIdx++
		}
		want := cash + held*closes[i]
		if math.Abs(pt.Value-want) > 1e-6 {
			t.Errorf("equity[%d] = %v, want %v", i, pt.Value, want)
		}
	}
}

func TestTradePnLSumMatchesFinalValue(t *testing.T) {
	closes := []float64{100, 104, 98, 107, 103, 111}
	series := seriesFromCloses(t, closes)
	strat := &scripted{intents: map[int]*domain.Intent{
		0: {Side: domain.SideBuy, Value: 400},
		1: {Side: domain.SideBuy, Value: 300},
		3: {Side: domain.SideSell}, // closes both lots
		4: {Side: domain.SideBuy, Value: 200},
		5: {Side: domain.SideSell},
	}}

	res, err := NewEngine(0.001, nil).Run(series, strat, nil, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 3 {
		t.Fatalf("trades = %d, want 3", len(res.Trades))
	}

	var sum float64
	for _, tr := range res.Trades {
		sum += tr.PnL
	}
	// All lots are closed by the last bar, so realized P&L (commissions
	// included) accounts for the whole equity change.
	if diff := math.Abs(sum - (res.FinalValue - res.InitialCash)); diff > 1e-6 {
		t.Errorf("sum(PnL) = %v, final-initial = %v (diff %v)",
			sum, res.FinalValue-res.InitialCash, diff)
	}
}

func TestTargetedLotCloseKeepsOtherLots(t *testing.T) {
	closes := []float64{100, 100, 100, 100}
	series := seriesFromCloses(t, closes)

	var firstLot string
	strat := &observingScripted{
		scripted: scripted{intents: map[int]*domain.Intent{
			0: {Side: domain.SideBuy, Value: 100},
			1: {Side: domain.SideBuy, Value: 100},
		}},
	}
	// Bar 2 sells the first opened lot by ID, resolved via the fill log.
	strat.decideHook = func(i int) *domain.Intent {
		if i == 2 && firstLot != "" {
			return &domain.Intent{Side: domain.SideSell, LotID: firstLot, Size: 1}
		}
		return nil
	}
	strat.onFill = func(f domain.Fill) {
		if f.Side == domain.SideBuy && firstLot == "" {
			firstLot = f.LotID
		}
	}

	res, err := NewEngine(0, nil).Run(series, strat, nil, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	sells := 0
	for _, f := range res.Fills {
		if f.Side == domain.SideSell {
			sells++
			if f.LotID != firstLot {
				t.Errorf("sell closed lot %q, want targeted lot %q", f.LotID, firstLot)
			}
		}
	}
	if sells != 1 {
		t.Errorf("sell fills = %d, want 1", sells)
	}
}

// observingScripted extends scripted with a decide hook and fill callback.
type observingScripted struct {
	scripted
	decideHook func(i int) *domain.Intent
	onFill     func(domain.Fill)
}

func (s *observingScripted) Decide(i int, view strategy.PortfolioView) (*domain.Intent, error) {
	if intent, err := s.scripted.Decide(i, view); intent != nil || err != nil {
		return intent, err
	}
	if s.decideHook != nil {
		return s.decideHook(i), nil
	}
	return nil, nil
}

func (s *observingScripted) OnFill(_ int, f domain.Fill) {
	if s.onFill != nil {
		s.onFill(f)
	}
}

func TestSingleBarSeries(t *testing.T) {
	series := seriesFromCloses(t, []float64{100})
	res, err := NewEngine(0.001, nil).Run(series, &scripted{}, nil, 500)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.EquityCurve) != 1 {
		t.Fatalf("equity curve length = %d, want 1", len(res.EquityCurve))
	}
	if res.FinalValue != 500 {
		t.Errorf("FinalValue = %v, want untouched 500", res.FinalValue)
	}
	if len(res.Trades) != 0 || len(res.Fills) != 0 {
		t.Errorf("trades/fills = %d/%d, want none", len(res.Trades), len(res.Fills))
	}
}

func TestSignalTimelineMatchesFills(t *testing.T) {
	closes := []float64{100, 110, 120}
	series := seriesFromCloses(t, closes)
	strat := &scripted{intents: map[int]*domain.Intent{
		0: {Side: domain.SideBuy, Reason: "enter"},
		2: {Side: domain.SideSell, Reason: "exit"},
	}}

	res, err := NewEngine(0, nil).Run(series, strat, nil, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Signals) != len(res.Fills) {
		t.Fatalf("signals = %d, fills = %d, want equal", len(res.Signals), len(res.Fills))
	}
	for i, m := range res.Signals {
		f := res.Fills[i]
		if !m.Timestamp.Equal(f.Timestamp) || m.Price != f.Price || m.Side != f.Side || m.Reason != f.Reason {
			t.Errorf("signal[%d] = %+v, want projection of fill %+v", i, m, f)
		}
		if i > 0 && m.Timestamp.Before(res.Signals[i-1].Timestamp) {
			t.Errorf("signal[%d] out of chronological order", i)
		}
	}
}
