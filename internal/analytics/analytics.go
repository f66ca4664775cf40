// Package analytics computes performance metrics from a frozen backtest
// result. Analyze is a pure function: identical inputs always produce
// identical metrics, and no formula ever propagates a division error; any
// zero-denominator case falls back to a defined sentinel.
package analytics

import (
	"math"
	"time"

	"scalparo/internal/domain"
)

// Config holds the analysis constants. The zero value is not useful; use
// DefaultConfig as the starting point.
type Config struct {
	// RiskFreeRate is the annual risk-free rate used for excess returns.
	RiskFreeRate float64
	// Annualization is the number of return periods per year.
	Annualization float64
	// RollingWindow is the window length for rolling metrics.
	RollingWindow int
}

// DefaultConfig returns the standard constants: 2% risk-free, 252 periods
// per year, 30-period rolling window.
func DefaultConfig() Config {
	return Config{RiskFreeRate: 0.02, Annualization: 252, RollingWindow: 30}
}

// Metrics is the full analysis output.
type Metrics struct {
	Basic        BasicMetrics         `json:"basic"`
	Risk         RiskMetrics          `json:"risk"`
	Trade        TradeMetrics         `json:"trade"`
	Rolling      RollingMetrics       `json:"rolling"`
	Monthly      MonthlyAnalysis      `json:"monthly"`
	Distribution DistributionAnalysis `json:"distribution"`

	// Correlation is nil when there is no date-aligned overlap with the
	// reference series.
	Correlation *CorrelationAnalysis `json:"correlation,omitempty"`
}

// BasicMetrics are the headline return figures, as fractions.
type BasicMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	FinalValue       float64 `json:"final_value"`
	InitialValue     float64 `json:"initial_value"`
	Periods          int     `json:"periods"`
}

// RiskMetrics are the volatility and drawdown figures. MaxDrawdown is a
// positive fraction. Sortino may be +Inf when no downside periods exist.
type RiskMetrics struct {
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	Sortino     float64 `json:"sortino"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Calmar      float64 `json:"calmar"`
	VaR95       float64 `json:"var_95"`
	ES95        float64 `json:"es_95"`
}

// TradeMetrics summarize the closed trade list. WinRate is a percentage.
type TradeMetrics struct {
	TotalTrades  int     `json:"total_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"`
	TotalPnL     float64 `json:"total_pnl"`
}

// RollingMetrics hold per-period rolling values. The first window-1 entries
// are NaN: undefined, not zero.
type RollingMetrics struct {
	Window     int       `json:"window"`
	Returns    []float64 `json:"returns"`
	Volatility []float64 `json:"volatility"`
	Sharpe     []float64 `json:"sharpe"`
}

// MonthReturn is one calendar month's compounded return.
type MonthReturn struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Return float64 `json:"return"`
}

// MonthlyAnalysis aggregates returns by calendar month.
type MonthlyAnalysis struct {
	Months         []MonthReturn `json:"months"`
	Best           float64       `json:"best"`
	Worst          float64       `json:"worst"`
	PositiveMonths int           `json:"positive_months"`
	NegativeMonths int           `json:"negative_months"`
}

// DistributionAnalysis describes the shape of the per-period return
// distribution. Kurtosis is excess kurtosis; IQROutliers counts returns
// outside 1.5 IQR of the quartiles.
type DistributionAnalysis struct {
	Mean        float64 `json:"mean"`
	Median      float64 `json:"median"`
	StdDev      float64 `json:"std_dev"`
	Skewness    float64 `json:"skewness"`
	Kurtosis    float64 `json:"kurtosis"`
	IQROutliers int     `json:"iqr_outliers"`
}

// CorrelationAnalysis relates strategy returns to a reference series over
// their date-aligned overlap.
type CorrelationAnalysis struct {
	Beta        float64 `json:"beta"`
	Alpha       float64 `json:"alpha"`
	Correlation float64 `json:"correlation"`
	// RSquared is the squared correlation, the share of strategy variance
	// explained by the reference.
	RSquared float64 `json:"r_squared"`
	// TrackingError is the annualized standard deviation of the return
	// difference against the reference, in percent.
	TrackingError float64 `json:"tracking_error"`
	Overlap       int     `json:"overlap"`
}

// Analyze computes all metric sections from an equity curve, the closed
// trades, and an optional reference series for beta and alpha. A curve
// with fewer than two points yields zeroed metrics rather than an error.
func Analyze(equity []domain.EquityPoint, trades []domain.Trade, market *domain.Series, cfg Config) Metrics {
	returns := periodReturns(equity)

	m := Metrics{
		Basic:        basicMetrics(equity, cfg),
		Risk:         riskMetrics(equity, returns, cfg),
		Trade:        tradeMetrics(trades),
		Rolling:      rollingMetrics(returns, cfg),
		Monthly:      monthlyAnalysis(equity, returns),
		Distribution: distributionAnalysis(returns),
	}
	m.Correlation = correlationAnalysis(equity, market, cfg)
	return m
}

// periodReturns derives fractional per-period returns from the equity
// curve. Zero or negative denominators are skipped.
func periodReturns(equity []domain.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev <= 0 {
			continue
		}
		out = append(out, equity[i].Value/prev-1)
	}
	return out
}

func basicMetrics(equity []domain.EquityPoint, cfg Config) BasicMetrics {
	b := BasicMetrics{Periods: len(equity)}
	if len(equity) == 0 {
		return b
	}
	b.InitialValue = equity[0].Value
	b.FinalValue = equity[len(equity)-1].Value
	if b.InitialValue <= 0 {
		return b
	}

	growth := b.FinalValue / b.InitialValue
	b.TotalReturn = growth - 1

	days := equity[len(equity)-1].Timestamp.Sub(equity[0].Timestamp).Hours() / 24
	years := math.Max(days/365.25, 1/365.25)
	if growth > 0 {
		b.AnnualizedReturn = math.Pow(growth, 1/years) - 1
	} else {
		b.AnnualizedReturn = -1
	}
	return b
}

func riskMetrics(equity []domain.EquityPoint, returns []float64, cfg Config) RiskMetrics {
	var r RiskMetrics
	if len(returns) == 0 {
		return r
	}

	sd := stdev(returns)
	sqrtA := math.Sqrt(cfg.Annualization)
	r.Volatility = sd * sqrtA

	perPeriodRF := cfg.RiskFreeRate / cfg.Annualization
	excess := make([]float64, len(returns))
	for i, ret := range returns {
		excess[i] = ret - perPeriodRF
	}
	meanExcess := mean(excess)

	if sd > 0 {
		r.Sharpe = meanExcess / sd * sqrtA
	}

	var downside []float64
	for _, e := range excess {
		if e < 0 {
			downside = append(downside, e)
		}
	}
	switch {
	case len(downside) == 0 && meanExcess > 0:
		r.Sortino = math.Inf(1)
	case len(downside) > 0:
		if dsd := stdev(downside); dsd > 0 {
			r.Sortino = meanExcess / dsd * sqrtA
		}
	}

	r.MaxDrawdown = maxDrawdown(returns)

	ann := basicMetrics(equity, cfg).AnnualizedReturn
	if r.MaxDrawdown > 0 {
		r.Calmar = ann / r.MaxDrawdown
	}

	r.VaR95 = percentile(returns, 5)
	var tail []float64
	for _, ret := range returns {
		if ret <= r.VaR95 {
			tail = append(tail, ret)
		}
	}
	if len(tail) > 0 {
		r.ES95 = mean(tail)
	}
	return r
}

// maxDrawdown is the largest peak-to-trough decline of the cumulative
// return curve, as a positive fraction.
func maxDrawdown(returns []float64) float64 {
	cum := 1.0
	peak := 1.0
	var maxDD float64
	for _, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if dd := 1 - cum/peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func tradeMetrics(trades []domain.Trade) TradeMetrics {
	t := TradeMetrics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return t
	}

	var grossProfit, grossLoss float64
	for _, tr := range trades {
		t.TotalPnL += tr.PnL
		if tr.Result == domain.TradeWin {
			t.Wins++
			grossProfit += tr.PnL
			if tr.PnL > t.LargestWin {
				t.LargestWin = tr.PnL
			}
		} else {
			t.Losses++
			grossLoss += -tr.PnL
			if tr.PnL < t.LargestLoss {
				t.LargestLoss = tr.PnL
			}
		}
	}

	t.WinRate = float64(t.Wins) / float64(t.TotalTrades) * 100
	if grossLoss > 0 {
		t.ProfitFactor = grossProfit / grossLoss
	}
	if t.Wins > 0 {
		t.AvgWin = grossProfit / float64(t.Wins)
	}
	if t.Losses > 0 {
		t.AvgLoss = -grossLoss / float64(t.Losses)
	}
	return t
}

func rollingMetrics(returns []float64, cfg Config) RollingMetrics {
	w := cfg.RollingWindow
	rm := RollingMetrics{
		Window:     w,
		Returns:    nanSlice(len(returns)),
		Volatility: nanSlice(len(returns)),
		Sharpe:     nanSlice(len(returns)),
	}
	if w <= 0 || len(returns) < w {
		return rm
	}

	sqrtA := math.Sqrt(cfg.Annualization)
	perPeriodRF := cfg.RiskFreeRate / cfg.Annualization
	for i := w - 1; i < len(returns); i++ {
		window := returns[i-w+1 : i+1]
		m := mean(window)
		sd := stdev(window)
		rm.Returns[i] = m
		rm.Volatility[i] = sd * sqrtA
		if sd > 0 {
			rm.Sharpe[i] = (m - perPeriodRF) / sd * sqrtA
		} else {
			rm.Sharpe[i] = 0
		}
	}
	return rm
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func monthlyAnalysis(equity []domain.EquityPoint, returns []float64) MonthlyAnalysis {
	var ma MonthlyAnalysis
	if len(returns) == 0 {
		return ma
	}

	type key struct{ y, m int }
	growth := make(map[key]float64)
	var order []key
	// returns[i] belongs to the period ending at equity[i+1].
	for i, r := range returns {
		ts := equity[i+1].Timestamp
		k := key{ts.Year(), int(ts.Month())}
		if _, ok := growth[k]; !ok {
			growth[k] = 1
			order = append(order, k)
		}
		growth[k] *= 1 + r
	}

	for i, k := range order {
		ret := growth[k] - 1
		ma.Months = append(ma.Months, MonthReturn{Year: k.y, Month: k.m, Return: ret})
		if i == 0 || ret > ma.Best {
			ma.Best = ret
		}
		if i == 0 || ret < ma.Worst {
			ma.Worst = ret
		}
		if ret > 0 {
			ma.PositiveMonths++
		} else if ret < 0 {
			ma.NegativeMonths++
		}
	}
	return ma
}

func distributionAnalysis(returns []float64) DistributionAnalysis {
	var d DistributionAnalysis
	if len(returns) == 0 {
		return d
	}
	d.Mean = mean(returns)
	d.Median = median(returns)
	d.StdDev = stdev(returns)
	d.Skewness = skewness(returns)
	d.Kurtosis = kurtosis(returns)

	q1 := percentile(returns, 25)
	q3 := percentile(returns, 75)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr
	for _, r := range returns {
		if r < lo || r > hi {
			d.IQROutliers++
		}
	}
	return d
}

// correlationAnalysis aligns strategy and reference returns on equal
// timestamps. Fewer than two aligned periods means no overlap and a nil
// result.
func correlationAnalysis(equity []domain.EquityPoint, market *domain.Series, cfg Config) *CorrelationAnalysis {
	if market == nil || market.Len() < 2 || len(equity) < 2 {
		return nil
	}

	marketVal := make(map[time.Time]float64, market.Len())
	for i := 0; i < market.Len(); i++ {
		b := market.Bar(i)
		marketVal[b.Timestamp.UTC()] = b.Close
	}

	var stratR, refR []float64
	var prevEq, prevRef float64
	havePrev := false
	for _, pt := range equity {
		ref, ok := marketVal[pt.Timestamp.UTC()]
		if !ok {
			continue
		}
		if havePrev && prevEq > 0 && prevRef > 0 {
			stratR = append(stratR, pt.Value/prevEq-1)
			refR = append(refR, ref/prevRef-1)
		}
		prevEq, prevRef = pt.Value, ref
		havePrev = true
	}
	if len(stratR) < 2 {
		return nil
	}

	ca := &CorrelationAnalysis{Overlap: len(stratR)}
	refVar := sampleCov(refR, refR)
	cov := sampleCov(stratR, refR)
	if refVar > 0 {
		ca.Beta = cov / refVar
	}
	if ssd, rsd := stdev(stratR), stdev(refR); ssd > 0 && rsd > 0 {
		ca.Correlation = cov / (ssd * rsd)
	}
	ca.RSquared = ca.Correlation * ca.Correlation

	diffs := make([]float64, len(stratR))
	for i := range stratR {
		diffs[i] = stratR[i] - refR[i]
	}
	ca.TrackingError = stdev(diffs) * math.Sqrt(cfg.Annualization) * 100

	stratAnn := annualizedFromReturns(stratR, cfg)
	refAnn := annualizedFromReturns(refR, cfg)
	ca.Alpha = stratAnn - (cfg.RiskFreeRate + ca.Beta*(refAnn-cfg.RiskFreeRate))
	return ca
}

// annualizedFromReturns compounds per-period returns and annualizes by
// period count.
func annualizedFromReturns(returns []float64, cfg Config) float64 {
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	if growth <= 0 || len(returns) == 0 {
		return -1
	}
	return math.Pow(growth, cfg.Annualization/float64(len(returns))) - 1
}
