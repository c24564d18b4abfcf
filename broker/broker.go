package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/quantsim/order"
)

var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidOrder         = errors.New("invalid order")
)

// Broker is the only surface drivers and the HTTP API use to trade.
type Broker interface {
	SubmitOrder(ctx context.Context, symbol string, o *order.Order) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	OrderStatus(ctx context.Context, orderID string) (order.Status, error)
	OpenOrders(ctx context.Context, symbol string) ([]order.Order, error)
	TradeHistory(ctx context.Context) ([]order.Trade, error)
	UpdateMarketPrice(ctx context.Context, symbol string, price float64, ts time.Time) ([]order.Trade, error)
	Balance(ctx context.Context, asset string) (float64, error)
	Position(ctx context.Context, asset string) (float64, error)
}

// Account is a point-in-time view of a broker's ledger.
type Account struct {
	ID        string             `json:"id"`
	Currency  string             `json:"currency"`
	Balances  map[string]float64 `json:"balances"`
	Positions map[string]float64 `json:"positions"`
	Equity    float64            `json:"equity"`
}

// Error carries the failing operation and symbol around a sentinel.
type Error struct {
	Op     string
	Symbol string
	Err    error
}

func (e *Error) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err.
func Wrap(op, symbol string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Symbol: symbol, Err: err}
}
