// Package indicators holds streaming indicators over closed klines. The
// batch helpers replay a slice through the streaming form, so both always
// agree.
package indicators

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/quantsim/market"
)

var (
	ErrPeriod      = errors.New("period must be positive")
	ErrShortSeries = errors.New("not enough klines")
)

// Indicator consumes closed klines one at a time.
type Indicator interface {
	// Name is a stable label such as "SMA(20)".
	Name() string
	// Warmup is the number of updates before Ready can be true.
	Warmup() int
	Reset()
	Update(k market.Kline)
	Ready() bool
	// Value is 0 until Ready.
	Value() float64
}

// Run resets ind, feeds it ks in order and returns its final value.
func Run(ind Indicator, ks []market.Kline) (float64, error) {
	ind.Reset()
	for _, k := range ks {
		ind.Update(k)
	}
	if !ind.Ready() {
		return 0, fmt.Errorf("%s: %w: need %d, got %d", ind.Name(), ErrShortSeries, ind.Warmup(), len(ks))
	}
	return ind.Value(), nil
}

func checkPeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("%w, got %d", ErrPeriod, period)
	}
	return nil
}

// smoother averages its first n inputs, then moves toward each new input
// by alpha: v += alpha*(x-v).
type smoother struct {
	n     int
	alpha float64
	seen  int
	sum   float64
	v     float64
}

func (s *smoother) push(x float64) {
	if s.seen < s.n {
		s.sum += x
		s.seen++
		if s.seen == s.n {
			s.v = s.sum / float64(s.n)
		}
		return
	}
	s.v += s.alpha * (x - s.v)
}

func (s *smoother) ready() bool { return s.seen >= s.n }

func (s *smoother) reset() { s.seen, s.sum, s.v = 0, 0, 0 }

func (s *smoother) value() float64 {
	if !s.ready() {
		return 0
	}
	return s.v
}
