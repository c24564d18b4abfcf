package market

import "time"

// Kline is one OHLCV bar as delivered by a feed. The close is what the
// matching engine treats as the current price.
type Kline struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Range is high minus low.
func (k Kline) Range() float64 {
	return k.High - k.Low
}

// Volatility is the bar range relative to its close, 0 when the close is
// not positive.
func (k Kline) Volatility() float64 {
	if k.Close <= 0 {
		return 0
	}
	return k.Range() / k.Close
}
