package order

import (
	"time"

	"github.com/rustyeddy/quantsim/market"
)

// Trade is the immutable record of one fill. Only the matching engine and
// the paper broker create them.
type Trade struct {
	ID        string      `json:"trade_id"`
	OrderID   string      `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Side      market.Side `json:"side"`
	Price     float64     `json:"price"`
	Quantity  float64     `json:"quantity"`
	Timestamp time.Time   `json:"timestamp"`
	Fee       *float64    `json:"fee,omitempty"`
}

// Notional is price times quantity, before fees.
func (t Trade) Notional() float64 {
	return t.Price * t.Quantity
}

// FeeOrZero unwraps Fee.
func (t Trade) FeeOrZero() float64 {
	if t.Fee == nil {
		return 0
	}
	return *t.Fee
}

// WithFee returns a copy carrying the given fee.
func (t Trade) WithFee(fee float64) Trade {
	t.Fee = &fee
	return t
}
