// Package report turns a frozen backtest result and its metrics into the
// interchange forms the outer layers consume: a JSON document and a console
// summary. This is the only layer that serializes; everything upstream
// stays in-memory.
package report

import (
	"time"

	"scalparo/internal/analytics"
	"scalparo/internal/backtest"
	"scalparo/internal/domain"
)

// Report is the serializable output of one backtest run.
type Report struct {
	RunID       string    `json:"run_id"`
	Symbol      string    `json:"symbol"`
	Strategy    string    `json:"strategy"`
	GeneratedAt time.Time `json:"generated_at"`

	Summary  Summary  `json:"summary"`
	Basic    Basic    `json:"basic_metrics"`
	Risk     Risk     `json:"risk_metrics"`
	Trade    Trade    `json:"trade_metrics"`
	Rolling  Rolling  `json:"rolling_metrics"`
	Monthly  Monthly  `json:"monthly_analysis"`
	Shape    Shape    `json:"distribution_analysis"`
	Relative *Relative `json:"correlation_analysis,omitempty"`

	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`

	Signals []domain.SignalMarker `json:"signals"`
}

// Summary holds the currency headline figures, rounded to cents.
type Summary struct {
	InitialCash     float64 `json:"initial_cash"`
	FinalValue      float64 `json:"final_value"`
	NetProfit       float64 `json:"net_profit"`
	TotalCommission float64 `json:"total_commission"`
	Bars            int     `json:"bars"`
	Fills           int     `json:"fills"`
	Rejections      int     `json:"rejections"`
}

// Basic mirrors the headline return metrics.
type Basic struct {
	TotalReturn      Num `json:"total_return"`
	AnnualizedReturn Num `json:"annualized_return"`
}

// Risk mirrors the risk metrics. Sortino can carry the infinity sentinel.
type Risk struct {
	Volatility  Num `json:"volatility"`
	Sharpe      Num `json:"sharpe"`
	Sortino     Num `json:"sortino"`
	MaxDrawdown Num `json:"max_drawdown"`
	Calmar      Num `json:"calmar"`
	VaR95       Num `json:"var_95"`
	ES95        Num `json:"es_95"`
}

// Trade mirrors the closed-trade statistics, currency rounded to cents.
type Trade struct {
	TotalTrades  int     `json:"total_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      Num     `json:"win_rate"`
	ProfitFactor Num     `json:"profit_factor"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"`
	TotalPnL     float64 `json:"total_pnl"`
}

// Rolling carries the rolling windows; undefined head entries serialize as
// null.
type Rolling struct {
	Window     int   `json:"window"`
	Returns    []Num `json:"returns"`
	Volatility []Num `json:"volatility"`
	Sharpe     []Num `json:"sharpe"`
}

// Monthly mirrors the calendar-month aggregation.
type Monthly struct {
	Months         []analytics.MonthReturn `json:"months"`
	Best           Num                     `json:"best"`
	Worst          Num                     `json:"worst"`
	PositiveMonths int                     `json:"positive_months"`
	NegativeMonths int                     `json:"negative_months"`
}

// Shape mirrors the return-distribution analysis.
type Shape struct {
	Mean        Num `json:"mean"`
	Median      Num `json:"median"`
	StdDev      Num `json:"std_dev"`
	Skewness    Num `json:"skewness"`
	Kurtosis    Num `json:"kurtosis"`
	IQROutliers int `json:"iqr_outliers"`
}

// Relative mirrors the beta/alpha analysis against a reference series.
type Relative struct {
	Beta          Num `json:"beta"`
	Alpha         Num `json:"alpha"`
	Correlation   Num `json:"correlation"`
	RSquared      Num `json:"r_squared"`
	TrackingError Num `json:"tracking_error"`
	Overlap       int `json:"overlap"`
}

// Build assembles the report from a run result and its computed metrics.
func Build(res *backtest.Result, m analytics.Metrics, now time.Time) *Report {
	r := &Report{
		RunID:       res.RunID,
		Symbol:      res.Symbol,
		Strategy:    res.StrategyName,
		GeneratedAt: now.UTC(),
		Summary: Summary{
			InitialCash:     Cents(res.InitialCash),
			FinalValue:      Cents(res.FinalValue),
			NetProfit:       Cents(res.FinalValue) - Cents(res.InitialCash),
			TotalCommission: Cents(res.TotalCommission),
			Bars:            len(res.EquityCurve),
			Fills:           len(res.Fills),
			Rejections:      len(res.Rejections),
		},
		Basic: Basic{
			TotalReturn:      Num(m.Basic.TotalReturn),
			AnnualizedReturn: Num(m.Basic.AnnualizedReturn),
		},
		Risk: Risk{
			Volatility:  Num(m.Risk.Volatility),
			Sharpe:      Num(m.Risk.Sharpe),
			Sortino:     Num(m.Risk.Sortino),
			MaxDrawdown: Num(m.Risk.MaxDrawdown),
			Calmar:      Num(m.Risk.Calmar),
			VaR95:       Num(m.Risk.VaR95),
			ES95:        Num(m.Risk.ES95),
		},
		Trade: Trade{
			TotalTrades:  m.Trade.TotalTrades,
			Wins:         m.Trade.Wins,
			Losses:       m.Trade.Losses,
			WinRate:      Num(m.Trade.WinRate),
			ProfitFactor: Num(m.Trade.ProfitFactor),
			AvgWin:       Cents(m.Trade.AvgWin),
			AvgLoss:      Cents(m.Trade.AvgLoss),
			LargestWin:   Cents(m.Trade.LargestWin),
			LargestLoss:  Cents(m.Trade.LargestLoss),
			TotalPnL:     Cents(m.Trade.TotalPnL),
		},
		Rolling: Rolling{
			Window:     m.Rolling.Window,
			Returns:    nums(m.Rolling.Returns),
			Volatility: nums(m.Rolling.Volatility),
			Sharpe:     nums(m.Rolling.Sharpe),
		},
		Monthly: Monthly{
			Months:         m.Monthly.Months,
			Best:           Num(m.Monthly.Best),
			Worst:          Num(m.Monthly.Worst),
			PositiveMonths: m.Monthly.PositiveMonths,
			NegativeMonths: m.Monthly.NegativeMonths,
		},
		Shape: Shape{
			Mean:        Num(m.Distribution.Mean),
			Median:      Num(m.Distribution.Median),
			StdDev:      Num(m.Distribution.StdDev),
			Skewness:    Num(m.Distribution.Skewness),
			Kurtosis:    Num(m.Distribution.Kurtosis),
			IQROutliers: m.Distribution.IQROutliers,
		},
		Signals: res.Signals,
	}
	if m.Correlation != nil {
		r.Relative = &Relative{
			Beta:          Num(m.Correlation.Beta),
			Alpha:         Num(m.Correlation.Alpha),
			Correlation:   Num(m.Correlation.Correlation),
			RSquared:      Num(m.Correlation.RSquared),
			TrackingError: Num(m.Correlation.TrackingError),
			Overlap:       m.Correlation.Overlap,
		}
	}
	r.Insights, r.Recommendations = evaluate(m)
	return r
}

func nums(xs []float64) []Num {
	out := make([]Num, len(xs))
	for i, x := range xs {
		out[i] = Num(x)
	}
	return out
}
