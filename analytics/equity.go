package analytics

import "time"

// EquityPoint is one snapshot of account value. Drawdown is the fraction
// below the running peak.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Equity   float64   `json:"equity"`
	Drawdown float64   `json:"drawdown"`
}

// Curve is an append-only equity series with a non-decreasing peak.
type Curve struct {
	points []EquityPoint
	peak   float64
}

func (c *Curve) Append(t time.Time, equity float64) EquityPoint {
	if equity > c.peak {
		c.peak = equity
	}
	var dd float64
	if c.peak > 0 {
		dd = (c.peak - equity) / c.peak
	}
	p := EquityPoint{Time: t, Equity: equity, Drawdown: dd}
	c.points = append(c.points, p)
	return p
}

// Points returns a copy of the series.
func (c *Curve) Points() []EquityPoint {
	return append([]EquityPoint(nil), c.points...)
}

func (c *Curve) Len() int { return len(c.points) }

func (c *Curve) Peak() float64 { return c.peak }

// Last is the most recent point; ok is false on an empty curve.
func (c *Curve) Last() (EquityPoint, bool) {
	if len(c.points) == 0 {
		return EquityPoint{}, false
	}
	return c.points[len(c.points)-1], true
}

// Drawdown is the current fraction below peak.
func (c *Curve) Drawdown() float64 {
	p, ok := c.Last()
	if !ok {
		return 0
	}
	return p.Drawdown
}
