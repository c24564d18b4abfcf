package sim

import (
	"fmt"

	"github.com/rustyeddy/quantsim/broker"
	"github.com/rustyeddy/quantsim/market"
	"github.com/shopspring/decimal"
)

// ledger keeps cash per asset and positions per base asset in decimal so
// repeated fills do not drift.
type ledger struct {
	balances  map[string]decimal.Decimal
	positions map[string]decimal.Decimal
}

func newLedger() *ledger {
	return &ledger{
		balances:  make(map[string]decimal.Decimal),
		positions: make(map[string]decimal.Decimal),
	}
}

func (l *ledger) cash(asset string) decimal.Decimal {
	return l.balances[asset]
}

func (l *ledger) position(asset string) decimal.Decimal {
	return l.positions[asset]
}

func (l *ledger) credit(asset string, amount decimal.Decimal) {
	l.balances[asset] = l.balances[asset].Add(amount)
}

// buy debits quote by totalCost and credits qty of base. Nothing changes
// when the quote balance is short.
func (l *ledger) buy(sym market.Symbol, qty, totalCost float64) error {
	cost := decimal.NewFromFloat(totalCost)
	have := l.balances[sym.Quote]
	if have.LessThan(cost) {
		return fmt.Errorf("%w: need %s %s, have %s", broker.ErrInsufficientBalance, cost.StringFixed(8), sym.Quote, have.StringFixed(8))
	}
	l.balances[sym.Quote] = have.Sub(cost)
	l.positions[sym.Base] = l.positions[sym.Base].Add(decimal.NewFromFloat(qty))
	return nil
}

// sell debits qty of base and credits the net proceeds. totalCost is the
// signed sell cost, i.e. minus the proceeds. It is positive when fees
// exceed the proceeds, and then the quote balance must cover it. Nothing
// changes when either side is short.
func (l *ledger) sell(sym market.Symbol, qty, totalCost float64) error {
	q := decimal.NewFromFloat(qty)
	have := l.positions[sym.Base]
	if have.LessThan(q) {
		return fmt.Errorf("%w: need %s %s, have %s", broker.ErrInsufficientPosition, q.String(), sym.Base, have.String())
	}
	cost := decimal.NewFromFloat(totalCost)
	cash := l.balances[sym.Quote]
	if cost.IsPositive() && cash.LessThan(cost) {
		return fmt.Errorf("%w: fees exceed proceeds by %s %s, have %s", broker.ErrInsufficientBalance, cost.StringFixed(8), sym.Quote, cash.StringFixed(8))
	}
	l.positions[sym.Base] = have.Sub(q)
	l.balances[sym.Quote] = cash.Sub(cost)
	return nil
}

func (l *ledger) cashMap() map[string]float64 {
	return floats(l.balances)
}

func (l *ledger) positionMap() map[string]float64 {
	return floats(l.positions)
}

func floats(m map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v.InexactFloat64()
	}
	return out
}
