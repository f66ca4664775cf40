package report

import (
	"fmt"
	"math"

	"scalparo/internal/analytics"
)

// Threshold rules for the free-text sections. These read the computed
// metrics only; they never recompute anything.
const (
	goodSharpe        = 1.0
	riskyDrawdown     = 0.20
	strongWinRate     = 60.0
	weakWinRate       = 40.0
	minSignificant    = 10
	solidProfitFactor = 1.5
)

func evaluate(m analytics.Metrics) (insights, recommendations []string) {
	if m.Trade.TotalTrades < minSignificant {
		insights = append(insights, fmt.Sprintf(
			"Only %d closed trades; results are not statistically significant.", m.Trade.TotalTrades))
		recommendations = append(recommendations,
			"Extend the test period or loosen entry conditions to gather more trades.")
	}

	switch {
	case math.IsInf(float64(m.Risk.Sortino), 1):
		insights = append(insights, "No losing periods observed; downside risk is unmeasured.")
	case m.Risk.Sharpe > goodSharpe:
		insights = append(insights, fmt.Sprintf(
			"Sharpe ratio %.2f indicates good risk-adjusted returns.", m.Risk.Sharpe))
	case m.Risk.Sharpe < 0:
		insights = append(insights, fmt.Sprintf(
			"Negative Sharpe ratio %.2f; the strategy underperforms the risk-free rate.", m.Risk.Sharpe))
		recommendations = append(recommendations,
			"Reconsider the entry logic; returns do not compensate for volatility.")
	}

	if m.Risk.MaxDrawdown > riskyDrawdown {
		insights = append(insights, fmt.Sprintf(
			"Maximum drawdown %.1f%% is risky.", m.Risk.MaxDrawdown*100))
		recommendations = append(recommendations,
			"Add or tighten stop losses to cap drawdowns.")
	}

	if m.Trade.TotalTrades >= minSignificant {
		switch {
		case m.Trade.WinRate > strongWinRate:
			insights = append(insights, fmt.Sprintf(
				"Win rate %.1f%% is strong.", m.Trade.WinRate))
		case m.Trade.WinRate < weakWinRate:
			insights = append(insights, fmt.Sprintf(
				"Win rate %.1f%% needs improvement.", m.Trade.WinRate))
			recommendations = append(recommendations,
				"Filter entries with an additional confirmation signal.")
		}
		if m.Trade.ProfitFactor > solidProfitFactor {
			insights = append(insights, fmt.Sprintf(
				"Profit factor %.2f shows winners outweigh losers.", m.Trade.ProfitFactor))
		}
	}

	return insights, recommendations
}
