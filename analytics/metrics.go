package analytics

import (
	"time"

	"github.com/rustyeddy/quantsim/order"
)

// PerformanceMetrics is the flat report written to journals and served
// over HTTP. Returns and drawdowns are fractions, WinRate is a percentage.
type PerformanceMetrics struct {
	StartTime           time.Time     `json:"start_time"`
	EndTime             time.Time     `json:"end_time"`
	InitialEquity       float64       `json:"initial_equity"`
	FinalEquity         float64       `json:"final_equity"`
	TotalReturn         float64       `json:"total_return"`
	AnnualizedReturn    float64       `json:"annualized_return"`
	Volatility          float64       `json:"volatility"`
	SharpeRatio         float64       `json:"sharpe_ratio"`
	SortinoRatio        float64       `json:"sortino_ratio"`
	CalmarRatio         float64       `json:"calmar_ratio"`
	MaxDrawdown         float64       `json:"max_drawdown"`
	MaxDrawdownDuration time.Duration `json:"max_drawdown_duration"`
	TotalTrades         int           `json:"total_trades"`
	WinningTrades       int           `json:"winning_trades"`
	LosingTrades        int           `json:"losing_trades"`
	WinRate             float64       `json:"win_rate"`
	ProfitFactor        float64       `json:"profit_factor"`
	MaxConsecutiveWins  int           `json:"max_consecutive_wins"`
	MaxConsecutiveLoss  int           `json:"max_consecutive_losses"`
	AvgHoldingPeriod    time.Duration `json:"avg_holding_period"`
	LargestWin          float64       `json:"largest_win"`
	LargestLoss         float64       `json:"largest_loss"`
	BenchmarkReturn     float64       `json:"benchmark_return"`
	Alpha               float64       `json:"alpha"`
	AnnualizedAlpha     float64       `json:"annualized_alpha"`
}

// Calculate runs every metric over one session's history.
// benchmarkReturn is the fractional return of the reference (buy and hold)
// over the same window.
func Calculate(points []EquityPoint, trades []order.Trade, benchmarkReturn float64) PerformanceMetrics {
	var m PerformanceMetrics
	if len(points) > 0 {
		m.StartTime = points[0].Time
		m.EndTime = points[len(points)-1].Time
		m.InitialEquity = points[0].Equity
		m.FinalEquity = points[len(points)-1].Equity
	}

	rets := Returns(points)
	m.TotalReturn = TotalReturn(points)
	m.AnnualizedReturn = AnnualizedReturn(points)
	m.Volatility = Volatility(rets)
	m.SharpeRatio = SharpeRatio(rets)
	m.SortinoRatio = SortinoRatio(rets)
	m.CalmarRatio = CalmarRatio(points)
	m.MaxDrawdown = MaxDrawdown(points)
	m.MaxDrawdownDuration = MaxDrawdownDuration(points)

	trips := RoundTrips(trades)
	m.TotalTrades = len(trips)
	for _, r := range trips {
		if r.Win() {
			m.WinningTrades++
		} else {
			m.LosingTrades++
		}
	}
	m.WinRate = WinRate(trips)
	m.ProfitFactor = ProfitFactor(trips)
	m.MaxConsecutiveWins, m.MaxConsecutiveLoss = Streaks(trips)
	m.AvgHoldingPeriod = AverageHoldingPeriod(trips)
	m.LargestWin = LargestWin(trips)
	m.LargestLoss = LargestLoss(trips)

	m.BenchmarkReturn = benchmarkReturn
	m.Alpha = Alpha(m.TotalReturn, benchmarkReturn)
	m.AnnualizedAlpha = AnnualizedAlpha(m.TotalReturn, benchmarkReturn, elapsedDays(points))
	return m
}
