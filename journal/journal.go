// journal/journal.go
package journal

import (
	"time"

	"github.com/rustyeddy/quantsim/order"
)

// TradeRecord is one settled fill as persisted.
type TradeRecord struct {
	TradeID  string
	OrderID  string
	Symbol   string
	Side     string
	Price    float64
	Quantity float64
	Fee      float64
	Time     time.Time
	Note     string
}

// FromTrade flattens a fill for storage.
func FromTrade(t order.Trade, note string) TradeRecord {
	return TradeRecord{
		TradeID:  t.ID,
		OrderID:  t.OrderID,
		Symbol:   t.Symbol,
		Side:     t.Side.String(),
		Price:    t.Price,
		Quantity: t.Quantity,
		Fee:      t.FeeOrZero(),
		Time:     t.Timestamp,
		Note:     note,
	}
}

// EquitySnapshot is written once per price update.
type EquitySnapshot struct {
	Time     time.Time
	Cash     float64
	Equity   float64
	Drawdown float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Discard drops everything.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error     { return nil }
func (Discard) RecordEquity(EquitySnapshot) error { return nil }
func (Discard) Close() error                      { return nil }
