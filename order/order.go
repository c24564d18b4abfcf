package order

import (
	"fmt"
	"time"

	"github.com/rustyeddy/quantsim/market"
	"github.com/rustyeddy/quantsim/pkg/id"
)

// Kind is the closed set of order types the simulated venue accepts.
type Kind int

const (
	Market Kind = iota
	Limit
	StopLoss
	TakeProfit
)

func (k Kind) String() string {
	switch k {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case StopLoss:
		return "stop_loss"
	case TakeProfit:
		return "take_profit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "market":
		return Market, nil
	case "limit":
		return Limit, nil
	case "stop_loss", "stop":
		return StopLoss, nil
	case "take_profit":
		return TakeProfit, nil
	default:
		return 0, fmt.Errorf("unknown order kind %q", s)
	}
}

// Status is the order lifecycle. Executed and Cancelled are terminal.
type Status int

const (
	Pending Status = iota
	Triggered
	Executed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Triggered:
		return "triggered"
	case Executed:
		return "executed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Executed || s == Cancelled
}

// Order is one order's intent plus its mutable lifecycle state.
type Order struct {
	ID        string
	Kind      Kind
	Side      market.Side
	Quantity  float64
	CreatedAt time.Time
	Status    Status
	Note      string

	trigger    *float64
	execPrice  *float64
	executedAt *time.Time
}

// New builds an order of any kind. price is ignored for Market orders.
func New(kind Kind, side market.Side, qty, price float64, ts time.Time) *Order {
	o := &Order{
		ID:        id.At(ts),
		Kind:      kind,
		Side:      side,
		Quantity:  qty,
		CreatedAt: ts,
		Status:    Pending,
	}
	if kind != Market {
		p := price
		o.trigger = &p
	}
	return o
}

func NewMarket(side market.Side, qty float64, ts time.Time) *Order {
	return New(Market, side, qty, 0, ts)
}

func NewLimit(side market.Side, qty, limit float64, ts time.Time) *Order {
	return New(Limit, side, qty, limit, ts)
}

func NewStopLoss(side market.Side, qty, stop float64, ts time.Time) *Order {
	return New(StopLoss, side, qty, stop, ts)
}

func NewTakeProfit(side market.Side, qty, target float64, ts time.Time) *Order {
	return New(TakeProfit, side, qty, target, ts)
}

// TriggerPrice is the limit/stop/target price; ok is false for Market orders.
func (o *Order) TriggerPrice() (price float64, ok bool) {
	if o.trigger == nil {
		return 0, false
	}
	return *o.trigger, true
}

// ExecutedPrice is set once the order has executed.
func (o *Order) ExecutedPrice() (float64, bool) {
	if o.execPrice == nil {
		return 0, false
	}
	return *o.execPrice, true
}

// ExecutedAt is set once the order has executed.
func (o *Order) ExecutedAt() (time.Time, bool) {
	if o.executedAt == nil {
		return time.Time{}, false
	}
	return *o.executedAt, true
}

// ShouldTrigger reports whether the order fires at the current price.
func (o *Order) ShouldTrigger(price float64) bool {
	if o.Kind == Market {
		return true
	}
	level, ok := o.TriggerPrice()
	if !ok {
		return false
	}
	switch o.Kind {
	case Limit:
		if o.Side == market.Buy {
			return price <= level
		}
		return price >= level
	case StopLoss:
		return price <= level
	case TakeProfit:
		return price >= level
	default:
		return false
	}
}

// Trigger moves a pending order to Triggered.
func (o *Order) Trigger() {
	if o.Status == Pending {
		o.Status = Triggered
	}
}

// Execute fills the order. Ignored once the order is terminal.
func (o *Order) Execute(price float64, ts time.Time) {
	if o.Status.Terminal() {
		return
	}
	o.Status = Executed
	o.execPrice = &price
	o.executedAt = &ts
}

// Cancel is a no-op for executed or already cancelled orders.
func (o *Order) Cancel() {
	if o.Status.Terminal() {
		return
	}
	o.Status = Cancelled
}

// Validate checks the fields a venue needs before accepting the order.
func (o *Order) Validate() error {
	if o.Side != market.Buy && o.Side != market.Sell {
		return fmt.Errorf("order %s: invalid side %d", o.ID, o.Side)
	}
	if !(o.Quantity > 0) {
		return fmt.Errorf("order %s: quantity must be > 0, got %v", o.ID, o.Quantity)
	}
	if p, ok := o.TriggerPrice(); ok && !market.ValidPrice(p) {
		return fmt.Errorf("order %s: invalid %s price %v", o.ID, o.Kind, p)
	}
	return nil
}
