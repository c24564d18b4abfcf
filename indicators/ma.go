package indicators

import (
	"fmt"

	"github.com/rustyeddy/quantsim/market"
)

// MA is the mean of the last period closes.
func MA(klines []market.Kline, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	return Run(NewMA(period), klines)
}

// EMA is the exponential average of the closes, seeded with the mean of
// the first period closes.
func EMA(klines []market.Kline, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	return Run(NewEMA(period), klines)
}

// SimpleMA keeps a ring of the last period closes and their running sum.
type SimpleMA struct {
	ring []float64
	head int
	full bool
	sum  float64
}

// NewMA clamps period to at least 1.
func NewMA(period int) *SimpleMA {
	return &SimpleMA{ring: make([]float64, max(period, 1))}
}

func (m *SimpleMA) Name() string { return fmt.Sprintf("SMA(%d)", len(m.ring)) }
func (m *SimpleMA) Warmup() int  { return len(m.ring) }
func (m *SimpleMA) Ready() bool  { return m.full }

func (m *SimpleMA) Reset() {
	clear(m.ring)
	m.head, m.full, m.sum = 0, false, 0
}

func (m *SimpleMA) Update(k market.Kline) {
	m.sum += k.Close - m.ring[m.head]
	m.ring[m.head] = k.Close
	m.head++
	if m.head == len(m.ring) {
		m.head, m.full = 0, true
	}
}

func (m *SimpleMA) Value() float64 {
	if !m.full {
		return 0
	}
	return m.sum / float64(len(m.ring))
}

// ExponentialMA smooths closes with alpha 2/(period+1).
type ExponentialMA struct {
	s smoother
}

// NewEMA clamps period to at least 1.
func NewEMA(period int) *ExponentialMA {
	period = max(period, 1)
	return &ExponentialMA{s: smoother{n: period, alpha: 2 / float64(period+1)}}
}

func (e *ExponentialMA) Name() string          { return fmt.Sprintf("EMA(%d)", e.s.n) }
func (e *ExponentialMA) Warmup() int           { return e.s.n }
func (e *ExponentialMA) Reset()                { e.s.reset() }
func (e *ExponentialMA) Update(k market.Kline) { e.s.push(k.Close) }
func (e *ExponentialMA) Ready() bool           { return e.s.ready() }
func (e *ExponentialMA) Value() float64        { return e.s.value() }
