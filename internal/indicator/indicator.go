// Package indicator computes technical indicator series over a whole bar
// series in one pass. Every function returns a slice aligned index-for-index
// with its input, with math.NaN() marking warm-up bars where the indicator is
// not yet defined. Each output value depends only on inputs at or before the
// same index, so indexing into a precomputed series at bar i can never look
// ahead of bar i.
package indicator

import "math"

// SMA returns the simple moving average of values over the given period.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average of values with smoothing
// 2/(period+1), seeded with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[period-1] = seed

	alpha := 2.0 / float64(period+1)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI returns the Wilder relative strength index of values over the given
// period, in the range [0, 100].
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gainSum += d
		} else {
			lossSum -= d
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	// Wilder smoothing for subsequent bars.
	n := float64(period)
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*(n-1) + gain) / n
		avgLoss = (avgLoss*(n-1) + loss) / n
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line (fast EMA minus slow EMA) and its signal line
// (EMA of the MACD line over signalPeriod).
func MACD(values []float64, fast, slow, signalPeriod int) (macd, signal []float64) {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	macd = nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	// Signal line: EMA over the defined region of the MACD line.
	signal = nanSlice(len(values))
	start := -1
	for i, v := range macd {
		if !math.IsNaN(v) {
			start = i
			break
		}
	}
	if start < 0 {
		return macd, signal
	}
	sub := EMA(macd[start:], signalPeriod)
	for i, v := range sub {
		signal[start+i] = v
	}
	return macd, signal
}

// Bollinger returns the middle (SMA), upper, and lower Bollinger bands for
// the given period and standard deviation factor.
func Bollinger(values []float64, period int, dev float64) (mid, upper, lower []float64) {
	mid = SMA(values, period)
	upper = nanSlice(len(values))
	lower = nanSlice(len(values))
	if period <= 1 || len(values) < period {
		return mid, upper, lower
	}
	for i := period - 1; i < len(values); i++ {
		m := mid[i]
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - m
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(period))
		upper[i] = m + dev*sd
		lower[i] = m - dev*sd
	}
	return mid, upper, lower
}

// ATR returns the Wilder average true range over the given period.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period <= 0 || n <= period {
		return out
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period] = prev
	for i := period + 1; i < n; i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return out
}

// HighestHigh returns the rolling maximum of values over the given period.
func HighestHigh(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		m := values[i]
		for j := i - period + 1; j <= i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// LowestLow returns the rolling minimum of values over the given period.
func LowestLow(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		m := values[i]
		for j := i - period + 1; j <= i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// Momentum returns values[i] - values[i-period].
func Momentum(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	for i := period; i < len(values); i++ {
		out[i] = values[i] - values[i-period]
	}
	return out
}

// WeightedClose returns (high + low + 2*close) / 4 per bar.
func WeightedClose(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = (highs[i] + lows[i] + 2*closes[i]) / 4
	}
	return out
}

// CrossAbove reports whether a crossed above b at index i: strictly below on
// the previous bar and at-or-above on the current one. Exactly-equal values
// on both bars do not trigger. Returns false when either series is undefined
// at i-1 or i, or when i is the first bar.
func CrossAbove(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}
	if math.IsNaN(a[i-1]) || math.IsNaN(b[i-1]) || math.IsNaN(a[i]) || math.IsNaN(b[i]) {
		return false
	}
	return a[i-1] < b[i-1] && a[i] >= b[i]
}

// CrossBelow reports whether a crossed below b at index i, with the same
// strict tie-break as CrossAbove.
func CrossBelow(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}
	if math.IsNaN(a[i-1]) || math.IsNaN(b[i-1]) || math.IsNaN(a[i]) || math.IsNaN(b[i]) {
		return false
	}
	return a[i-1] > b[i-1] && a[i] <= b[i]
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
