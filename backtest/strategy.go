package backtest

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/quantsim/indicators"
	"github.com/rustyeddy/quantsim/market"
)

// Signal is what a strategy wants after seeing a closed kline. The runner
// decides whether it can act on it.
type Signal int

const (
	Hold Signal = iota
	Enter
	Exit
)

func (s Signal) String() string {
	switch s {
	case Hold:
		return "hold"
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Strategy is called once per kline. Strategies are long-only and see
// nothing but prices; sizing and risk belong to the runner.
type Strategy interface {
	Name() string
	Reset()
	OnKline(k market.Kline) Signal
}

// BuyAndHold enters on the first kline and never exits.
type BuyAndHold struct {
	entered bool
}

func (*BuyAndHold) Name() string { return "hold" }

func (s *BuyAndHold) Reset() { s.entered = false }

func (s *BuyAndHold) OnKline(market.Kline) Signal {
	if s.entered {
		return Hold
	}
	s.entered = true
	return Enter
}

// SMACross enters when the fast SMA crosses above the slow one and exits
// on the opposite cross.
type SMACross struct {
	fast, slow *indicators.SimpleMA

	lastDiff     float64
	haveLastDiff bool
}

func NewSMACross(fast, slow int) (*SMACross, error) {
	if fast <= 0 || slow <= fast {
		return nil, fmt.Errorf("sma cross: need 0 < fast < slow, got %d/%d", fast, slow)
	}
	return &SMACross{fast: indicators.NewMA(fast), slow: indicators.NewMA(slow)}, nil
}

func (s *SMACross) Name() string {
	return fmt.Sprintf("sma_cross(%d,%d)", s.fast.Warmup(), s.slow.Warmup())
}

func (s *SMACross) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	s.haveLastDiff = false
}

func (s *SMACross) OnKline(k market.Kline) Signal {
	s.fast.Update(k)
	s.slow.Update(k)
	if !s.slow.Ready() {
		return Hold
	}

	diff := s.fast.Value() - s.slow.Value()
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return Hold
	}

	prev := s.lastDiff
	s.lastDiff = diff
	switch {
	case diff > 0 && prev <= 0:
		return Enter
	case diff < 0 && prev >= 0:
		return Exit
	default:
		return Hold
	}
}

// StrategyByName builds one of the bundled strategies.
func StrategyByName(name string, fast, slow int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hold", "buy_and_hold":
		return &BuyAndHold{}, nil
	case "sma_cross", "sma-cross":
		return NewSMACross(fast, slow)
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: hold, sma_cross)", name)
	}
}
