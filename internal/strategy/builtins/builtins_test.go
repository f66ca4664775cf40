package builtins

import (
	"testing"
	"time"

	"scalparo/internal/domain"
	"scalparo/internal/strategy"
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

func flatView(cash float64) strategy.PortfolioView {
	return strategy.PortfolioView{Cash: cash}
}

func TestAllBuiltinsRegistered(t *testing.T) {
	want := []string{"bollinger", "fibonacci", "macd", "momentum", "rsi", "sma-cross", "zone"}
	got := strategy.Default.List()
	for _, name := range want {
		found := false
		for _, g := range got {
			if g == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("strategy %q not registered, got %v", name, got)
		}
	}
}

func TestSMACrossBuysOnUpwardCross(t *testing.T) {
	// Closes sit below the SMA, then jump above it.
	closes := []float64{10, 10, 10, 10, 10, 9, 9, 9, 9, 12}
	series := seriesFromCloses(t, closes)

	s, err := strategy.Default.New("sma-cross", strategy.Params{"sma_period": 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Init(series, strategy.Params{"sma_period": 5}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var buyBar = -1
	for i := 0; i < series.Len(); i++ {
		intent, err := s.Decide(i, flatView(1000))
		if err != nil {
			t.Fatalf("Decide(%d): %v", i, err)
		}
		if intent != nil {
			if intent.Side != domain.SideBuy {
				t.Fatalf("Decide(%d) side = %v, want buy", i, intent.Side)
			}
			buyBar = i
			break
		}
	}
	if buyBar != 9 {
		t.Errorf("buy bar = %d, want 9", buyBar)
	}
}

func TestSMACrossSellsOnDownwardCross(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 11, 11, 11, 11, 8}
	series := seriesFromCloses(t, closes)

	s := NewSMACross(5)
	if err := s.Init(series, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	holding := strategy.PortfolioView{
		Cash: 0,
		Lots: []domain.Lot{{ID: "a", EntryPrice: 10, Size: 1}},
	}
	intent, err := s.Decide(9, holding)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent == nil || intent.Side != domain.SideSell {
		t.Fatalf("Decide(9) = %+v, want sell intent", intent)
	}
}

func TestMACDCrossSignals(t *testing.T) {
	// A decline, a rally, and a second decline produce one upward and one
	// downward MACD/signal crossing with short periods.
	closes := make([]float64, 0, 45)
	for i := 0; i < 15; i++ {
		closes = append(closes, 100-float64(i))
	}
	for i := 0; i < 15; i++ {
		closes = append(closes, 86+2*float64(i))
	}
	for i := 0; i < 15; i++ {
		closes = append(closes, 114-2*float64(i))
	}
	series := seriesFromCloses(t, closes)

	s := NewMACDCross(3, 6, 3)
	if err := s.Init(series, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	holding := strategy.PortfolioView{
		Lots: []domain.Lot{{ID: "a", EntryPrice: 90, Size: 1}},
	}
	var sides []domain.Side
	flat := true
	for i := 0; i < series.Len(); i++ {
		view := flatView(1000)
		if !flat {
			view = holding
		}
		intent, err := s.Decide(i, view)
		if err != nil {
			t.Fatalf("Decide(%d): %v", i, err)
		}
		if intent == nil {
			continue
		}
		sides = append(sides, intent.Side)
		flat = intent.Side == domain.SideSell
	}

	if len(sides) < 2 {
		t.Fatalf("sides = %v, want at least one buy and one sell", sides)
	}
	if sides[0] != domain.SideBuy {
		t.Errorf("first intent = %v, want buy", sides[0])
	}
	for i := 1; i < len(sides); i++ {
		if sides[i] == sides[i-1] {
			t.Errorf("intent %d repeats side %v, want alternation", i, sides[i])
		}
	}
}

func TestRSILevelsNotCrossings(t *testing.T) {
	// A long decline keeps RSI pinned low; level semantics keep producing
	// a buy intent every bar while flat, not only on the first breach.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	series := seriesFromCloses(t, closes)

	s := NewRSIReversion(14, 30, 70)
	if err := s.Init(series, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	buys := 0
	for i := 15; i < series.Len(); i++ {
		intent, err := s.Decide(i, flatView(1000))
		if err != nil {
			t.Fatalf("Decide(%d): %v", i, err)
		}
		if intent != nil && intent.Side == domain.SideBuy {
			buys++
		}
	}
	if buys < 2 {
		t.Errorf("buy intents during persistent oversold = %d, want >= 2", buys)
	}
}

func TestRSIWarmupProducesNoIntent(t *testing.T) {
	closes := []float64{100, 99, 98, 97, 96}
	series := seriesFromCloses(t, closes)

	s := NewRSIReversion(14, 30, 70)
	if err := s.Init(series, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for i := 0; i < series.Len(); i++ {
		intent, err := s.Decide(i, flatView(1000))
		if err != nil {
			t.Fatalf("Decide(%d): %v", i, err)
		}
		if intent != nil {
			t.Errorf("Decide(%d) = %+v during warm-up, want nil", i, intent)
		}
	}
}

func TestZoneTargetsSpecificLot(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	series := seriesFromCloses(t, closes)

	s := NewZoneAccumulator(strategy.Params{})
	if err := s.Init(series, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	view := strategy.PortfolioView{
		Cash:      700,
		Allocated: 300,
		Lots: []domain.Lot{
			{ID: "lot-1", EntryPrice: 100, Size: 1.5, TargetPct: 0.5},
			{ID: "lot-2", EntryPrice: 99.4, Size: 1.5, TargetPct: 0.5},
		},
	}
	// Close is 100: lot-2 (entry 99.4, target 99.897) is past target,
	// lot-1 is not. The sell must name lot-2.
	intent, err := s.Decide(30, view)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent == nil || intent.Side != domain.SideSell {
		t.Fatalf("Decide = %+v, want sell intent", intent)
	}
	if intent.LotID != "lot-2" {
		t.Errorf("intent.LotID = %q, want lot-2", intent.LotID)
	}
	if intent.Size != 1.5 {
		t.Errorf("intent.Size = %v, want 1.5", intent.Size)
	}
}

func TestZoneBuysInChunksUpToMaxAllocation(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.1 // gentle uptrend keeps price above the floor
	}
	series := seriesFromCloses(t, closes)

	s := NewZoneAccumulator(strategy.Params{})
	if err := s.Init(series, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	intent, err := s.Decide(30, strategy.PortfolioView{Cash: 1000})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent == nil || intent.Side != domain.SideBuy {
		t.Fatalf("Decide = %+v, want buy intent", intent)
	}
	if intent.Value != 300 {
		t.Errorf("first chunk value = %v, want 300", intent.Value)
	}
	if intent.TargetPct != 0.5 {
		t.Errorf("intent.TargetPct = %v, want 0.5", intent.TargetPct)
	}

	// With 900 already allocated only the small chunk fits.
	intent, err = s.Decide(30, strategy.PortfolioView{Cash: 100, Allocated: 850})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent == nil || intent.Value != 150 {
		t.Fatalf("near-cap intent = %+v, want buy of 150", intent)
	}

	// At the cap no chunk fits.
	intent, err = s.Decide(30, strategy.PortfolioView{Cash: 0, Allocated: 1000})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent != nil {
		t.Errorf("at-cap intent = %+v, want nil", intent)
	}
}

func TestMomentumDynamicTargetClamped(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	series := seriesFromCloses(t, closes)

	s := NewMomentumScalper(strategy.Params{})
	if err := s.Init(series, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	got := s.dynamicTarget(30, 100)
	if got < 0.3 || got > 1.5 {
		t.Errorf("dynamicTarget = %v, want within [0.3, 1.5]", got)
	}
}

func TestMomentumStopAndTargetExits(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	series := seriesFromCloses(t, closes)

	s := NewMomentumScalper(strategy.Params{})
	if err := s.Init(series, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Price at 100 against a lot entered at 98 with a 1% target: target
	// price 98.98 is exceeded, expect a target sell naming the lot.
	view := strategy.PortfolioView{
		Allocated: 100,
		Lots:      []domain.Lot{{ID: "win", EntryPrice: 98, Size: 1, TargetPct: 1.0}},
	}
	intent, err := s.Decide(30, view)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent == nil || intent.Side != domain.SideSell || intent.LotID != "win" {
		t.Fatalf("target exit = %+v, want sell of lot win", intent)
	}

	// Price at 100 against a lot with stop at 101: stop fires.
	view = strategy.PortfolioView{
		Allocated: 100,
		Lots:      []domain.Lot{{ID: "stop", EntryPrice: 103, Size: 1, TargetPct: 1.0, StopPrice: 101}},
	}
	intent, err = s.Decide(30, view)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent == nil || intent.Side != domain.SideSell || intent.LotID != "stop" {
		t.Fatalf("stop exit = %+v, want sell of lot stop", intent)
	}
}

func TestMomentumLossThrottling(t *testing.T) {
	s := NewMomentumScalper(strategy.Params{})

	lose := func(id string) {
		s.OnFill(10, domain.Fill{Side: domain.SideBuy, Price: 100, LotID: id})
		s.OnFill(11, domain.Fill{Side: domain.SideSell, Price: 99, LotID: id})
	}

	lose("a")
	lose("b")
	if s.sizeFactor != 1.0 {
		t.Errorf("sizeFactor after 2 losses = %v, want 1.0", s.sizeFactor)
	}
	lose("c")
	if s.sizeFactor != 0.5 {
		t.Errorf("sizeFactor after 3 losses = %v, want 0.5", s.sizeFactor)
	}
	lose("d")
	lose("e")
	if s.haltUntil <= 11 {
		t.Errorf("haltUntil = %d after 5 losses, want a future bar", s.haltUntil)
	}

	// A winning exit resets the streak and grows the factor back.
	s.OnFill(40, domain.Fill{Side: domain.SideBuy, Price: 100, LotID: "w"})
	s.OnFill(41, domain.Fill{Side: domain.SideSell, Price: 102, LotID: "w"})
	if s.losses != 0 {
		t.Errorf("losses after win = %d, want 0", s.losses)
	}
	if s.sizeFactor != 0.75 {
		t.Errorf("sizeFactor after win = %v, want 0.75", s.sizeFactor)
	}
}

func TestMomentumSuppressionZoneFollowsFillsOnly(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	series := seriesFromCloses(t, closes)

	s := NewMomentumScalper(strategy.Params{})
	if err := s.Init(series, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if s.inSuppressionZone(30, 100) {
		t.Fatal("suppression active before any fill")
	}
	// A fill at 100 suppresses nearby prices for the cooldown window.
	s.OnFill(30, domain.Fill{Side: domain.SideBuy, Price: 100, LotID: "x"})
	if !s.inSuppressionZone(31, 100.5) {
		t.Error("price 0.5% from fill inside cooldown not suppressed")
	}
	if s.inSuppressionZone(31, 105) {
		t.Error("price 5% from fill suppressed, want outside zone")
	}
	if s.inSuppressionZone(30+13, 100.5) {
		t.Error("suppression persists past cooldown window")
	}
}

func TestParamValidationAcrossBuiltins(t *testing.T) {
	cases := []struct {
		strategy string
		params   strategy.Params
	}{
		{"sma-cross", strategy.Params{"sma_period": 1}},
		{"rsi", strategy.Params{"rsi_period": 14.5}},
		{"macd", strategy.Params{"no_such": 1}},
		{"bollinger", strategy.Params{"bb_dev": 9}},
	}
	for _, tc := range cases {
		if _, err := strategy.Default.New(tc.strategy, tc.params); err == nil {
			t.Errorf("New(%q, %v) accepted invalid params", tc.strategy, tc.params)
		}
	}
}
