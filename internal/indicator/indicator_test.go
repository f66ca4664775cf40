package indicator

import (
	"math"
	"testing"
)

const tol = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tol
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := SMA(values, 3)

	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Error("SMA warm-up bars should be NaN")
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(got[i+2], w) {
			t.Errorf("SMA[%d] = %v, want %v", i+2, got[i+2], w)
		}
	}
}

func TestSMAShortInput(t *testing.T) {
	got := SMA([]float64{1, 2}, 5)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("SMA[%d] = %v, want NaN for input shorter than period", i, v)
		}
	}
}

func TestEMASeed(t *testing.T) {
	values := []float64{2, 4, 6, 8}
	got := EMA(values, 3)

	// Seeded with SMA(2,4,6) = 4 at index 2.
	if !almostEqual(got[2], 4) {
		t.Errorf("EMA seed = %v, want 4", got[2])
	}
	// alpha = 0.5: 0.5*8 + 0.5*4 = 6.
	if !almostEqual(got[3], 6) {
		t.Errorf("EMA[3] = %v, want 6", got[3])
	}
}

func TestRSIExtremes(t *testing.T) {
	// Monotonically increasing prices: all gains, RSI = 100.
	up := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
	}
	got := RSI(up, 14)
	if !almostEqual(got[len(got)-1], 100) {
		t.Errorf("RSI of all-gain series = %v, want 100", got[len(got)-1])
	}

	// Monotonically decreasing prices: all losses, RSI = 0.
	down := make([]float64, 20)
	for i := range down {
		down[i] = float64(100 - i)
	}
	got = RSI(down, 14)
	if !almostEqual(got[len(got)-1], 0) {
		t.Errorf("RSI of all-loss series = %v, want 0", got[len(got)-1])
	}

	// Warm-up region is undefined.
	if !math.IsNaN(got[13]) {
		t.Error("RSI[period-1] should be NaN")
	}
}

func TestRSIBounded(t *testing.T) {
	values := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10,
		45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.0, 46.03, 46.41, 46.22}
	got := RSI(values, 14)
	for i := 14; i < len(got); i++ {
		if got[i] < 0 || got[i] > 100 {
			t.Errorf("RSI[%d] = %v out of [0,100]", i, got[i])
		}
	}
}

func TestMACDDefinedRegion(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	macd, signal := MACD(values, 12, 26, 9)

	if !math.IsNaN(macd[24]) {
		t.Error("MACD before slow EMA warm-up should be NaN")
	}
	if math.IsNaN(macd[25]) {
		t.Error("MACD at slow EMA warm-up should be defined")
	}
	if math.IsNaN(signal[40]) {
		t.Error("signal line should be defined after its warm-up")
	}
	// Rising series: fast EMA above slow EMA.
	if macd[59] <= 0 {
		t.Errorf("MACD of rising series = %v, want > 0", macd[59])
	}
}

func TestBollingerBands(t *testing.T) {
	values := []float64{1, 1, 1, 1, 1}
	mid, upper, lower := Bollinger(values, 5, 2)

	// Zero variance: all three bands collapse to the mean.
	if !almostEqual(mid[4], 1) || !almostEqual(upper[4], 1) || !almostEqual(lower[4], 1) {
		t.Errorf("constant series bands = %v/%v/%v, want 1/1/1", mid[4], upper[4], lower[4])
	}

	values = []float64{2, 4, 2, 4, 2, 4}
	mid, upper, lower = Bollinger(values, 4, 2)
	if upper[5] <= mid[5] || lower[5] >= mid[5] {
		t.Error("bands must straddle the middle line")
	}
}

func TestATRConstantRange(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 105
		lows[i] = 95
		closes[i] = 100
	}
	got := ATR(highs, lows, closes, 14)
	// True range is 10 every bar, so ATR converges to exactly 10.
	if !almostEqual(got[n-1], 10) {
		t.Errorf("ATR = %v, want 10", got[n-1])
	}
	if !math.IsNaN(got[13]) {
		t.Error("ATR warm-up should be NaN")
	}
}

func TestHighestLowest(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	hh := HighestHigh(values, 3)
	ll := LowestLow(values, 3)

	if !almostEqual(hh[5], 9) {
		t.Errorf("HighestHigh[5] = %v, want 9", hh[5])
	}
	if !almostEqual(ll[3], 1) {
		t.Errorf("LowestLow[3] = %v, want 1", ll[3])
	}
	if !almostEqual(hh[7], 9) {
		t.Errorf("HighestHigh[7] = %v, want 9", hh[7])
	}
}

func TestMomentum(t *testing.T) {
	values := []float64{10, 12, 11, 15}
	got := Momentum(values, 2)
	if !almostEqual(got[2], 1) || !almostEqual(got[3], 3) {
		t.Errorf("Momentum = %v, want [NaN NaN 1 3]", got)
	}
}

func TestWeightedClose(t *testing.T) {
	got := WeightedClose([]float64{10}, []float64{6}, []float64{8})
	if !almostEqual(got[0], 8) {
		t.Errorf("WeightedClose = %v, want 8", got[0])
	}
}

func TestCrossAboveStrictTieBreak(t *testing.T) {
	ref := []float64{5, 5, 5, 5}

	// Previous below, current equal: triggers.
	a := []float64{4, 5, 5, 5}
	if !CrossAbove(a, ref, 1) {
		t.Error("prev below, current equal should trigger CrossAbove")
	}
	// Equal on both bars: must not re-trigger.
	if CrossAbove(a, ref, 2) {
		t.Error("equal on both bars must not trigger CrossAbove")
	}
	// Previous above: no trigger.
	b := []float64{6, 7, 7, 7}
	if CrossAbove(b, ref, 1) {
		t.Error("already above must not trigger CrossAbove")
	}

	// Mirror checks for CrossBelow.
	c := []float64{6, 5, 5, 5}
	if !CrossBelow(c, ref, 1) {
		t.Error("prev above, current equal should trigger CrossBelow")
	}
	if CrossBelow(c, ref, 2) {
		t.Error("equal on both bars must not trigger CrossBelow")
	}
}

func TestCrossUndefinedInputs(t *testing.T) {
	a := []float64{math.NaN(), 6}
	b := []float64{5, 5}
	if CrossAbove(a, b, 1) {
		t.Error("NaN input must not trigger a cross")
	}
	if CrossAbove(b, b, 0) {
		t.Error("index 0 must not trigger a cross")
	}
}

// Indicators must never consume future bars: recomputing over a truncated
// prefix must reproduce the same values for the prefix.
func TestNoLookAhead(t *testing.T) {
	values := []float64{5, 9, 2, 7, 3, 8, 6, 4, 10, 1, 7, 9, 3, 6, 8, 2, 5, 7}
	full := RSI(values, 5)
	prefix := RSI(values[:12], 5)
	for i := range prefix {
		bothNaN := math.IsNaN(full[i]) && math.IsNaN(prefix[i])
		if !bothNaN && !almostEqual(full[i], prefix[i]) {
			t.Errorf("RSI[%d] differs between prefix (%v) and full (%v)", i, prefix[i], full[i])
		}
	}

	fullSMA := SMA(values, 4)
	prefSMA := SMA(values[:10], 4)
	for i := range prefSMA {
		bothNaN := math.IsNaN(fullSMA[i]) && math.IsNaN(prefSMA[i])
		if !bothNaN && !almostEqual(fullSMA[i], prefSMA[i]) {
			t.Errorf("SMA[%d] differs between prefix and full", i)
		}
	}
}
