package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/quantsim/market"
)

// ATRFunc is the Average True Range of klines with Wilder smoothing. It
// needs period+1 klines.
func ATRFunc(klines []market.Kline, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	return Run(NewATR(period), klines)
}

// ATR is Wilder's Average True Range. The first kline only supplies a
// previous close.
type ATR struct {
	s      smoother
	prev   market.Kline
	primed bool
}

// NewATR clamps period to at least 1.
func NewATR(period int) *ATR {
	period = max(period, 1)
	return &ATR{s: smoother{n: period, alpha: 1 / float64(period)}}
}

func (a *ATR) Name() string   { return fmt.Sprintf("ATR(%d)", a.s.n) }
func (a *ATR) Warmup() int    { return a.s.n + 1 }
func (a *ATR) Ready() bool    { return a.s.ready() }
func (a *ATR) Value() float64 { return a.s.value() }

func (a *ATR) Reset() {
	a.s.reset()
	a.primed = false
}

func (a *ATR) Update(k market.Kline) {
	if a.primed {
		a.s.push(trueRange(k, a.prev))
	}
	a.prev, a.primed = k, true
}

// Relative is the ATR as a fraction of the last close, which is how the
// cost model reads volatility. 0 until Ready.
func (a *ATR) Relative() float64 {
	if !a.Ready() || a.prev.Close <= 0 {
		return 0
	}
	return a.s.v / a.prev.Close
}

// trueRange is the widest of the bar and its gaps from the previous close.
func trueRange(cur, prev market.Kline) float64 {
	return math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
}
