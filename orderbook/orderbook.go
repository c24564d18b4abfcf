package orderbook

import (
	"errors"
	"fmt"

	"github.com/google/btree"
	"github.com/rustyeddy/quantsim/market"
	"github.com/rustyeddy/quantsim/order"
)

var (
	ErrMarketOrder    = errors.New("market orders are never stored in the book")
	ErrDuplicateOrder = errors.New("duplicate order id")
	ErrInvalidPrice   = errors.New("invalid price")
	ErrOrderNotFound  = errors.New("order not found")
)

// priceLevel holds the FIFO queue of resting orders at one price.
type priceLevel struct {
	price  float64
	orders []*order.Order
}

func byPrice(a, b *priceLevel) bool { return a.price < b.price }

// Level is an aggregated view of one price level.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Orders   int     `json:"orders"`
}

// Book holds resting orders for a single symbol. Limit orders are ranked
// by price then time; stop-loss and take-profit orders are triggered by
// price, not ranked, so they sit in their own list.
//
// A Book is not safe for concurrent use.
type Book struct {
	Symbol string

	bids  *btree.BTreeG[*priceLevel]
	asks  *btree.BTreeG[*priceLevel]
	stops []*order.Order
	index map[string]*order.Order
}

// New creates an empty book.
func New(symbol string) *Book {
	return &Book{
		Symbol: symbol,
		bids:   btree.NewG(16, byPrice),
		asks:   btree.NewG(16, byPrice),
		index:  make(map[string]*order.Order),
	}
}

// Add files a resting order.
func (b *Book) Add(o *order.Order) error {
	if o.Kind == order.Market {
		return ErrMarketOrder
	}
	if _, ok := b.index[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}
	price, ok := o.TriggerPrice()
	if !ok || !market.ValidPrice(price) {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	switch o.Kind {
	case order.Limit:
		side := b.side(o.Side)
		lvl, ok := side.Get(&priceLevel{price: price})
		if !ok {
			lvl = &priceLevel{price: price}
			side.ReplaceOrInsert(lvl)
		}
		lvl.orders = append(lvl.orders, o)
	case order.StopLoss, order.TakeProfit:
		b.stops = append(b.stops, o)
	}
	b.index[o.ID] = o
	return nil
}

// Get looks an order up by id.
func (b *Book) Get(id string) (*order.Order, bool) {
	o, ok := b.index[id]
	return o, ok
}

// Cancel removes the order and marks it cancelled.
func (b *Book) Cancel(id string) (*order.Order, error) {
	o, err := b.Remove(id)
	if err != nil {
		return nil, err
	}
	o.Cancel()
	return o, nil
}

// Remove takes the order out of the book without touching its status.
func (b *Book) Remove(id string) (*order.Order, error) {
	o, ok := b.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	delete(b.index, id)

	if o.Kind != order.Limit {
		b.stops = removeOrder(b.stops, id)
		return o, nil
	}

	price, _ := o.TriggerPrice()
	side := b.side(o.Side)
	if lvl, ok := side.Get(&priceLevel{price: price}); ok {
		lvl.orders = removeOrder(lvl.orders, id)
		if len(lvl.orders) == 0 {
			side.Delete(lvl)
		}
	}
	return o, nil
}

// BestBid is the highest resting buy price.
func (b *Book) BestBid() (float64, bool) {
	lvl, ok := b.bids.Max()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// BestAsk is the lowest resting sell price.
func (b *Book) BestAsk() (float64, bool) {
	lvl, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// BidDepth returns the top n bid levels, highest first.
func (b *Book) BidDepth(n int) []Level {
	if n <= 0 {
		return nil
	}
	out := make([]Level, 0, n)
	b.bids.Descend(func(lvl *priceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, lvl.aggregate())
		return true
	})
	return out
}

// AskDepth returns the top n ask levels, lowest first.
func (b *Book) AskDepth(n int) []Level {
	if n <= 0 {
		return nil
	}
	out := make([]Level, 0, n)
	b.asks.Ascend(func(lvl *priceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, lvl.aggregate())
		return true
	})
	return out
}

// Crossing returns, in scan order, every order that fires at price: bid
// levels at or above the price (best first), ask levels at or below it
// (best first), then the stop list in insertion order. The book is not
// modified.
func (b *Book) Crossing(price float64) []*order.Order {
	var hits []*order.Order
	collect := func(orders []*order.Order) {
		for _, o := range orders {
			if o.ShouldTrigger(price) {
				hits = append(hits, o)
			}
		}
	}

	b.bids.Descend(func(lvl *priceLevel) bool {
		if lvl.price < price {
			return false
		}
		collect(lvl.orders)
		return true
	})
	b.asks.Ascend(func(lvl *priceLevel) bool {
		if lvl.price > price {
			return false
		}
		collect(lvl.orders)
		return true
	})
	collect(b.stops)
	return hits
}

// Orders lists every resting order: bids best first, asks best first,
// then stops.
func (b *Book) Orders() []*order.Order {
	out := make([]*order.Order, 0, len(b.index))
	b.bids.Descend(func(lvl *priceLevel) bool {
		out = append(out, lvl.orders...)
		return true
	})
	b.asks.Ascend(func(lvl *priceLevel) bool {
		out = append(out, lvl.orders...)
		return true
	})
	return append(out, b.stops...)
}

// Len is the number of resting orders.
func (b *Book) Len() int {
	return len(b.index)
}

func (b *Book) side(s market.Side) *btree.BTreeG[*priceLevel] {
	if s == market.Buy {
		return b.bids
	}
	return b.asks
}

func (lvl *priceLevel) aggregate() Level {
	var qty float64
	for _, o := range lvl.orders {
		qty += o.Quantity
	}
	return Level{Price: lvl.price, Quantity: qty, Orders: len(lvl.orders)}
}

// removeOrder deletes id in place. The vacated tail slot is cleared so
// the backing array does not pin a finished order.
func removeOrder(orders []*order.Order, id string) []*order.Order {
	for i, o := range orders {
		if o.ID == id {
			last := len(orders) - 1
			copy(orders[i:], orders[i+1:])
			orders[last] = nil
			return orders[:last]
		}
	}
	return orders
}
