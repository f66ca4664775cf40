package report

import (
	"fmt"
	"io"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteConsole renders a human-readable summary with localized number
// formatting (thousand separators on currency figures).
func (r *Report) WriteConsole(w io.Writer) error {
	p := message.NewPrinter(language.English)

	if _, err := p.Fprintf(w, "Backtest %s  %s / %s\n", r.RunID, r.Symbol, r.Strategy); err != nil {
		return err
	}
	p.Fprintf(w, "Generated %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	p.Fprintf(w, "Initial cash      %12.2f\n", r.Summary.InitialCash)
	p.Fprintf(w, "Final value       %12.2f\n", r.Summary.FinalValue)
	p.Fprintf(w, "Net profit        %12.2f\n", r.Summary.NetProfit)
	p.Fprintf(w, "Commission paid   %12.2f\n", r.Summary.TotalCommission)
	p.Fprintf(w, "Bars / fills      %d / %d (%d rejected intents)\n\n",
		r.Summary.Bars, r.Summary.Fills, r.Summary.Rejections)

	p.Fprintf(w, "Total return      %10.2f%%\n", float64(r.Basic.TotalReturn)*100)
	p.Fprintf(w, "Annualized        %10.2f%%\n", float64(r.Basic.AnnualizedReturn)*100)
	p.Fprintf(w, "Volatility        %10.2f%%\n", float64(r.Risk.Volatility)*100)
	p.Fprintf(w, "Sharpe            %10.2f\n", float64(r.Risk.Sharpe))
	p.Fprintf(w, "Sortino           %10s\n", fmtNum(r.Risk.Sortino, 2))
	p.Fprintf(w, "Max drawdown      %10.2f%%\n", float64(r.Risk.MaxDrawdown)*100)
	p.Fprintf(w, "Calmar            %10s\n", fmtNum(r.Risk.Calmar, 2))

	p.Fprintf(w, "\nTrades            %d (%d wins / %d losses)\n",
		r.Trade.TotalTrades, r.Trade.Wins, r.Trade.Losses)
	if r.Trade.TotalTrades > 0 {
		p.Fprintf(w, "Win rate          %10.1f%%\n", float64(r.Trade.WinRate))
		p.Fprintf(w, "Profit factor     %10s\n", fmtNum(r.Trade.ProfitFactor, 2))
		p.Fprintf(w, "Avg win / loss    %.2f / %.2f\n", r.Trade.AvgWin, r.Trade.AvgLoss)
	}

	if r.Relative != nil {
		p.Fprintf(w, "\nBeta              %10.2f\n", float64(r.Relative.Beta))
		p.Fprintf(w, "Alpha             %10.2f\n", float64(r.Relative.Alpha))
		p.Fprintf(w, "R-squared         %10.2f\n", float64(r.Relative.RSquared))
		p.Fprintf(w, "Tracking error    %9.2f%%\n", float64(r.Relative.TrackingError))
	}

	if len(r.Insights) > 0 {
		p.Fprintf(w, "\nInsights:\n")
		for _, s := range r.Insights {
			p.Fprintf(w, "  - %s\n", s)
		}
	}
	if len(r.Recommendations) > 0 {
		p.Fprintf(w, "Recommendations:\n")
		for _, s := range r.Recommendations {
			p.Fprintf(w, "  - %s\n", s)
		}
	}
	return nil
}

// fmtNum renders a metric for the console, spelling out the sentinels.
func fmtNum(n Num, prec int) string {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return "n/a"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return fmt.Sprintf("%.*f", prec, f)
	}
}
