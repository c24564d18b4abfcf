package risk

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidParameter = errors.New("invalid sizing parameter")

type SizingKind int

const (
	FixedAmount SizingKind = iota
	FixedPercentage
	Kelly
	Pyramid
	AllIn
)

func (k SizingKind) String() string {
	switch k {
	case FixedAmount:
		return "fixed_amount"
	case FixedPercentage:
		return "fixed_percentage"
	case Kelly:
		return "kelly"
	case Pyramid:
		return "pyramid"
	case AllIn:
		return "all_in"
	default:
		return fmt.Sprintf("sizing(%d)", int(k))
	}
}

func ParseSizingKind(s string) (SizingKind, error) {
	switch s {
	case "fixed_amount", "fixed":
		return FixedAmount, nil
	case "", "fixed_percentage", "percentage":
		return FixedPercentage, nil
	case "kelly":
		return Kelly, nil
	case "pyramid":
		return Pyramid, nil
	case "all_in":
		return AllIn, nil
	default:
		return 0, fmt.Errorf("%w: unknown sizing %q", ErrInvalidParameter, s)
	}
}

// Sizing is a closed set of sizing rules; only the fields Kind uses are
// read. Percentages are fractions.
type Sizing struct {
	Kind SizingKind

	Amount     float64 // FixedAmount, in account currency
	Percentage float64 // FixedPercentage

	WinRate         float64 // Kelly, probability of a win
	ProfitLossRatio float64 // Kelly, average win / average loss
	KellyFraction   float64 // Kelly, 0.5 is half Kelly

	InitialPct      float64 // Pyramid
	ProfitThreshold float64 // Pyramid, unrealized profit per step
	MaxPct          float64 // Pyramid
	Increment       float64 // Pyramid, added per step
}

// PositionManager turns equity into a trade notional.
type PositionManager struct {
	Strategy         Sizing
	MinPositionValue float64
	MaxLeverage      float64 // 0 means 1
}

func unit(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be in [0,1], got %v", ErrInvalidParameter, name, v)
	}
	return nil
}

// Validate checks the parameters the chosen strategy reads.
func (s Sizing) Validate() error {
	switch s.Kind {
	case FixedAmount:
		if math.IsNaN(s.Amount) || s.Amount < 0 {
			return fmt.Errorf("%w: amount must be >= 0, got %v", ErrInvalidParameter, s.Amount)
		}
	case FixedPercentage:
		return unit("percentage", s.Percentage)
	case Kelly:
		if err := unit("win rate", s.WinRate); err != nil {
			return err
		}
		if !(s.ProfitLossRatio > 0) {
			return fmt.Errorf("%w: profit/loss ratio must be > 0, got %v", ErrInvalidParameter, s.ProfitLossRatio)
		}
		return unit("kelly fraction", s.KellyFraction)
	case Pyramid:
		for _, p := range []struct {
			name string
			v    float64
		}{{"initial", s.InitialPct}, {"max", s.MaxPct}, {"increment", s.Increment}} {
			if err := unit(p.name, p.v); err != nil {
				return err
			}
		}
		if !(s.ProfitThreshold > 0) {
			return fmt.Errorf("%w: profit threshold must be > 0, got %v", ErrInvalidParameter, s.ProfitThreshold)
		}
	case AllIn:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidParameter, s.Kind)
	}
	return nil
}

func (s Sizing) raw(equity, unrealizedProfit float64) float64 {
	switch s.Kind {
	case FixedAmount:
		return s.Amount
	case FixedPercentage:
		return equity * s.Percentage
	case Kelly:
		p, b := s.WinRate, s.ProfitLossRatio
		f := math.Max(0, (p*b-(1-p))/b)
		return f * s.KellyFraction * equity
	case Pyramid:
		steps := math.Max(0, math.Floor(unrealizedProfit/s.ProfitThreshold))
		pct := math.Min(s.InitialPct+steps*s.Increment, s.MaxPct)
		return pct * equity
	case AllIn:
		return equity
	default:
		return 0
	}
}

// PositionSize returns the notional to trade for the given equity and
// unrealized profit fraction of the open position. The result is
// leveraged, then clamped to [MinPositionValue, equity*leverage].
func (pm PositionManager) PositionSize(equity, unrealizedProfit float64) (float64, error) {
	if math.IsNaN(equity) || equity <= 0 {
		return 0, fmt.Errorf("%w: equity must be > 0, got %v", ErrInvalidParameter, equity)
	}
	lev := pm.MaxLeverage
	if lev == 0 {
		lev = 1
	}
	if math.IsNaN(lev) || lev < 0 {
		return 0, fmt.Errorf("%w: leverage must be > 0, got %v", ErrInvalidParameter, lev)
	}
	if pm.MinPositionValue < 0 {
		return 0, fmt.Errorf("%w: min position value must be >= 0, got %v", ErrInvalidParameter, pm.MinPositionValue)
	}
	if err := pm.Strategy.Validate(); err != nil {
		return 0, err
	}

	size := pm.Strategy.raw(equity, unrealizedProfit) * lev
	size = math.Max(size, pm.MinPositionValue)
	return math.Min(size, equity*lev), nil
}

// Quantity converts a notional into units at price.
func Quantity(notional, price float64) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("%w: price must be > 0, got %v", ErrInvalidParameter, price)
	}
	return notional / price, nil
}
