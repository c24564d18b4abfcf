package matching

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/quantsim/market"
	"github.com/rustyeddy/quantsim/order"
	"github.com/rustyeddy/quantsim/orderbook"
	"github.com/rustyeddy/quantsim/pkg/id"
)

var (
	ErrSymbolNotConfigured = errors.New("symbol not configured")
	ErrInvalidPrice        = errors.New("invalid tick price")
)

// Settler is consulted for every fill before the order is marked
// executed. It may re-price the trade (fees, slippage) and it may refuse
// it, in which case the order is cancelled instead.
type Settler interface {
	Settle(symbol string, t order.Trade) (order.Trade, error)
}

// Engine owns one book and one last price per symbol.
//
// Engine is single threaded; callers sharing one instance must serialize
// SubmitOrder and UpdatePrice themselves.
type Engine struct {
	books   map[string]*orderbook.Book
	last    map[string]float64
	settler Settler
}

func NewEngine() *Engine {
	return &Engine{
		books: make(map[string]*orderbook.Book),
		last:  make(map[string]float64),
	}
}

// SetSettler installs the fill hook. nil removes it.
func (e *Engine) SetSettler(s Settler) {
	e.settler = s
}

// Book returns the book for symbol, creating an empty one on first use.
func (e *Engine) Book(symbol string) *orderbook.Book {
	b, ok := e.books[symbol]
	if !ok {
		b = orderbook.New(symbol)
		e.books[symbol] = b
	}
	return b
}

// LastPrice is the most recent tick seen for symbol.
func (e *Engine) LastPrice(symbol string) (float64, error) {
	p, ok := e.last[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSymbolNotConfigured, symbol)
	}
	return p, nil
}

// SubmitOrder executes Market orders immediately at the last price and
// returns the fill. Every other kind rests in the book and returns nil.
func (e *Engine) SubmitOrder(symbol string, o *order.Order) (*order.Trade, error) {
	if o.Kind != order.Market {
		if err := e.Book(symbol).Add(o); err != nil {
			return nil, err
		}
		return nil, nil
	}

	price, err := e.LastPrice(symbol)
	if err != nil {
		return nil, err
	}
	o.Trigger()
	tr, err := e.fill(symbol, o, price, o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// UpdatePrice records a tick and executes every resting order it
// triggers. Fills happen at the tick price, in book scan order: bids best
// first, asks best first, then stop orders in arrival order.
//
// Fills refused by the settler cancel their order; their errors are
// joined into the returned error while the accepted trades are still
// returned.
func (e *Engine) UpdatePrice(symbol string, price float64, ts time.Time) ([]order.Trade, error) {
	if !market.ValidPrice(price) {
		return nil, fmt.Errorf("%w: %s %v", ErrInvalidPrice, symbol, price)
	}
	e.last[symbol] = price

	book := e.Book(symbol)
	hits := book.Crossing(price)
	if len(hits) == 0 {
		return nil, nil
	}

	var (
		trades []order.Trade
		errs   []error
	)
	for _, o := range hits {
		if _, err := book.Remove(o.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		o.Trigger()
		tr, err := e.fill(symbol, o, price, ts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		trades = append(trades, tr)
	}
	return trades, errors.Join(errs...)
}

func (e *Engine) fill(symbol string, o *order.Order, price float64, ts time.Time) (order.Trade, error) {
	tr := order.Trade{
		ID:        id.At(ts),
		OrderID:   o.ID,
		Symbol:    symbol,
		Side:      o.Side,
		Price:     price,
		Quantity:  o.Quantity,
		Timestamp: ts,
	}
	if e.settler != nil {
		settled, err := e.settler.Settle(symbol, tr)
		if err != nil {
			o.Note = err.Error()
			o.Cancel()
			return order.Trade{}, fmt.Errorf("order %s: %w", o.ID, err)
		}
		tr = settled
	}
	o.Execute(tr.Price, ts)
	return tr, nil
}

// CancelOrder cancels a resting order on symbol.
func (e *Engine) CancelOrder(symbol, orderID string) (*order.Order, error) {
	return e.Book(symbol).Cancel(orderID)
}

// Order finds a resting order on symbol.
func (e *Engine) Order(symbol, orderID string) (*order.Order, bool) {
	return e.Book(symbol).Get(orderID)
}

// OpenOrders lists resting orders on symbol in book order.
func (e *Engine) OpenOrders(symbol string) []*order.Order {
	return e.Book(symbol).Orders()
}

// Symbols lists every symbol with a book.
func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.books))
	for s := range e.books {
		out = append(out, s)
	}
	return out
}

func (e *Engine) BestBid(symbol string) (float64, bool) {
	return e.Book(symbol).BestBid()
}

func (e *Engine) BestAsk(symbol string) (float64, bool) {
	return e.Book(symbol).BestAsk()
}

// Depth returns the top n levels on each side.
func (e *Engine) Depth(symbol string, n int) (bids, asks []orderbook.Level) {
	b := e.Book(symbol)
	return b.BidDepth(n), b.AskDepth(n)
}
