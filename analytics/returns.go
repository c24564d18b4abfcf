package analytics

import (
	"math"
	"time"
)

const (
	// TradingDaysPerYear annualizes per-period volatility.
	TradingDaysPerYear = 252

	// Unbounded is reported where a ratio has no downside to divide by.
	Unbounded = 999.0
)

func elapsedDays(points []EquityPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	return points[len(points)-1].Time.Sub(points[0].Time).Hours() / 24
}

// TotalReturn is last/first - 1 as a fraction.
func TotalReturn(points []EquityPoint) float64 {
	if len(points) < 2 || points[0].Equity <= 0 {
		return 0
	}
	return points[len(points)-1].Equity/points[0].Equity - 1
}

// AnnualizedReturn compounds TotalReturn over a 365 day year.
func AnnualizedReturn(points []EquityPoint) float64 {
	days := elapsedDays(points)
	if days <= 0 {
		return 0
	}
	growth := 1 + TotalReturn(points)
	if growth <= 0 {
		return -1
	}
	// sub-day windows overflow the exponent
	return finite(math.Pow(growth, 365/days) - 1)
}

// finite maps overflowed ratios onto the Unbounded sentinel so metrics
// always encode.
func finite(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return Unbounded
	case math.IsInf(x, -1):
		return -Unbounded
	}
	return x
}

func MaxDrawdown(points []EquityPoint) float64 {
	var max float64
	for _, p := range points {
		if p.Drawdown > max {
			max = p.Drawdown
		}
	}
	return max
}

// MaxDrawdownDuration is the longest stretch spent below a previous peak,
// from the first underwater point until recovery or the end of the series.
func MaxDrawdownDuration(points []EquityPoint) time.Duration {
	var (
		longest time.Duration
		start   time.Time
		inDD    bool
	)
	for _, p := range points {
		switch {
		case p.Drawdown > 0 && !inDD:
			start, inDD = p.Time, true
		case p.Drawdown <= 0 && inDD:
			if d := p.Time.Sub(start); d > longest {
				longest = d
			}
			inDD = false
		}
	}
	if inDD && len(points) > 0 {
		if d := points[len(points)-1].Time.Sub(start); d > longest {
			longest = d
		}
	}
	return longest
}

// Returns are the period-over-period fractional changes in equity.
func Returns(points []EquityPoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, points[i].Equity/prev-1)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// stdev is the sample standard deviation.
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// Volatility is the annualized standard deviation of returns.
func Volatility(returns []float64) float64 {
	return stdev(returns) * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatio assumes a zero risk-free rate.
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := stdev(returns)
	if sd == 0 {
		return 0
	}
	return mean(returns) / sd * math.Sqrt(TradingDaysPerYear)
}

// SortinoRatio divides by the deviation of negative returns only. With no
// negative returns it reports Unbounded.
func SortinoRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var downside float64
	var n int
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			n++
		}
	}
	if n == 0 {
		return Unbounded
	}
	dd := math.Sqrt(downside / float64(n))
	if dd == 0 {
		return 0
	}
	return mean(returns) / dd * math.Sqrt(TradingDaysPerYear)
}

// CalmarRatio is annualized return over max drawdown, 0 without drawdown.
func CalmarRatio(points []EquityPoint) float64 {
	dd := MaxDrawdown(points)
	if dd == 0 {
		return 0
	}
	return finite(AnnualizedReturn(points) / dd)
}

// Alpha is excess return over the benchmark for the same window.
func Alpha(strategyReturn, benchmarkReturn float64) float64 {
	return strategyReturn - benchmarkReturn
}

// AnnualizedAlpha scales Alpha linearly by 365/days.
func AnnualizedAlpha(strategyReturn, benchmarkReturn, days float64) float64 {
	if days <= 0 {
		return 0
	}
	return finite(Alpha(strategyReturn, benchmarkReturn) * 365 / days)
}
