package cost

import "math"

// MarketContext is what the slippage and fee models may look at besides
// price and quantity.
type MarketContext struct {
	Volatility float64 // fractional, e.g. kline range / close
	IsMaker    bool
}

// Cost is the breakdown of one fill. TotalCost is signed so it can be
// added straight to cash: positive outlay for buys, negative net proceeds
// for sells.
type Cost struct {
	OriginalPrice float64 `json:"original_price"`
	Slippage      float64 `json:"slippage"`
	ExecutedPrice float64 `json:"executed_price"`
	Fee           float64 `json:"fee"`
	TotalCost     float64 `json:"total_cost"`
}

// Calculator turns a quoted price into an executed price and fee. It holds
// no state.
type Calculator struct {
	Fee      FeeModel
	Slippage SlippageModel
}

// Frictionless charges nothing.
func Frictionless() Calculator {
	return Calculator{Fee: NoFees()}
}

func (c Calculator) Validate() error {
	if err := c.Fee.Validate(); err != nil {
		return err
	}
	return c.Slippage.Validate()
}

func (c Calculator) BuyCost(price, qty float64, ctx MarketContext) Cost {
	slip := c.Slippage.Offset(price, qty, ctx)
	exec := price + slip
	notional := exec * qty
	fee := c.Fee.Fee(notional, ctx.IsMaker)
	return Cost{
		OriginalPrice: price,
		Slippage:      slip,
		ExecutedPrice: exec,
		Fee:           fee,
		TotalCost:     notional + fee,
	}
}

func (c Calculator) SellCost(price, qty float64, ctx MarketContext) Cost {
	slip := c.Slippage.Offset(price, qty, ctx)
	exec := math.Max(price-slip, 0)
	notional := exec * qty
	fee := c.Fee.Fee(notional, ctx.IsMaker)
	return Cost{
		OriginalPrice: price,
		Slippage:      price - exec,
		ExecutedPrice: exec,
		Fee:           fee,
		TotalCost:     -(notional - fee),
	}
}
