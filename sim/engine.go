package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/quantsim/analytics"
	"github.com/rustyeddy/quantsim/broker"
	"github.com/rustyeddy/quantsim/cost"
	"github.com/rustyeddy/quantsim/journal"
	"github.com/rustyeddy/quantsim/market"
	"github.com/rustyeddy/quantsim/matching"
	"github.com/rustyeddy/quantsim/order"
	"github.com/rustyeddy/quantsim/pkg/id"
	"github.com/rustyeddy/quantsim/pkg/logging"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TradeListener is told about every settled fill. It is called after the
// broker lock is released, so it may call back into the broker.
type TradeListener interface {
	OnTrade(t order.Trade)
}

type Config struct {
	AccountID string
	// Currency is the asset equity is measured in, e.g. "USDT".
	Currency     string
	Costs        cost.Calculator
	CostsEnabled bool
	Journal      journal.Journal
	Log          *logrus.Entry
}

// Broker is a paper trading venue: a matching engine whose fills are
// re-priced through a cost model and settled against an in-memory ledger.
//
// A single mutex covers the whole submit or price-update step, so a fill
// is never visible in history without its balance change. Journal rows
// are queued under mu and written under jmu after mu is released.
type Broker struct {
	mu  sync.Mutex
	jmu sync.Mutex

	id           string
	currency     string
	engine       *matching.Engine
	costs        cost.Calculator
	costsEnabled bool
	ctx          map[string]cost.MarketContext

	ledger  *ledger
	history []order.Trade
	orders  map[string]*order.Order
	symbols map[string]string // order id -> symbol
	curve   analytics.Curve

	journal  journal.Journal
	pending  []journal.TradeRecord
	listener TradeListener
	log      *logrus.Entry
}

var _ broker.Broker = (*Broker)(nil)

func NewBroker(cfg Config) *Broker {
	if cfg.AccountID == "" {
		cfg.AccountID = id.NewSession()
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Discard{}
	}
	if cfg.Log == nil {
		cfg.Log = logging.Component("sim")
	}
	b := &Broker{
		id:           cfg.AccountID,
		currency:     cfg.Currency,
		engine:       matching.NewEngine(),
		costs:        cfg.Costs,
		costsEnabled: cfg.CostsEnabled,
		ctx:          make(map[string]cost.MarketContext),
		ledger:       newLedger(),
		orders:       make(map[string]*order.Order),
		symbols:      make(map[string]string),
		journal:      cfg.Journal,
		log:          cfg.Log.WithField("account", cfg.AccountID),
	}
	b.engine.SetSettler(settler{b})
	return b
}

func (b *Broker) ID() string { return b.id }

// SetTradeListener sets an optional listener for settled fills.
func (b *Broker) SetTradeListener(l TradeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = l
}

// SetMarketContext feeds volatility and maker/taker status to the cost
// model for later fills on symbol.
func (b *Broker) SetMarketContext(symbol string, mc cost.MarketContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctx[canonical(symbol)] = mc
}

// Deposit credits cash. Negative amounts are rejected.
func (b *Broker) Deposit(asset string, amount float64) error {
	if amount < 0 {
		return broker.Wrap("deposit", asset, fmt.Errorf("%w: negative amount %v", broker.ErrInvalidOrder, amount))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ledger.credit(asset, decimal.NewFromFloat(amount))
	return nil
}

func (b *Broker) SubmitOrder(ctx context.Context, symbol string, o *order.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sym, err := market.ParseSymbol(symbol)
	if err != nil {
		return "", broker.Wrap("submit", symbol, fmt.Errorf("%w: %v", broker.ErrInvalidSymbol, err))
	}
	if o == nil {
		return "", broker.Wrap("submit", symbol, broker.ErrInvalidOrder)
	}
	if err := o.Validate(); err != nil {
		return "", broker.Wrap("submit", symbol, fmt.Errorf("%w: %v", broker.ErrInvalidOrder, err))
	}
	key := sym.String()

	b.mu.Lock()
	if _, dup := b.orders[o.ID]; dup {
		b.mu.Unlock()
		return "", broker.Wrap("submit", key, fmt.Errorf("%w: duplicate id %s", broker.ErrInvalidOrder, o.ID))
	}
	fill, err := b.engine.SubmitOrder(key, o)
	if err != nil {
		_ = b.release(nil)
		b.log.WithFields(logrus.Fields{"symbol": key, "order": o.ID, "kind": o.Kind}).WithError(err).Warn("order rejected")
		return "", broker.Wrap("submit", key, err)
	}
	b.orders[o.ID] = o
	b.symbols[o.ID] = key
	listener := b.listener
	_ = b.release(nil)

	if fill != nil && listener != nil {
		listener.OnTrade(*fill)
	}
	return o.ID, nil
}

func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return broker.Wrap("cancel", "", fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID))
	}
	if o.Status.Terminal() {
		return nil
	}
	if _, err := b.engine.CancelOrder(b.symbols[orderID], orderID); err != nil {
		return broker.Wrap("cancel", b.symbols[orderID], err)
	}
	return nil
}

func (b *Broker) OrderStatus(ctx context.Context, orderID string) (order.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return 0, broker.Wrap("status", "", fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID))
	}
	return o.Status, nil
}

// Order returns a snapshot of any order this broker accepted.
func (b *Broker) Order(orderID string) (order.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return order.Order{}, broker.Wrap("order", "", fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID))
	}
	return *o, nil
}

// OpenOrders lists resting orders on symbol, or on every symbol when
// symbol is empty.
func (b *Broker) OpenOrders(ctx context.Context, symbol string) ([]order.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var syms []string
	if symbol == "" {
		syms = b.engine.Symbols()
		sort.Strings(syms)
	} else {
		syms = []string{canonical(symbol)}
	}

	var out []order.Order
	for _, s := range syms {
		for _, o := range b.engine.OpenOrders(s) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (b *Broker) TradeHistory(ctx context.Context) ([]order.Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]order.Trade(nil), b.history...), nil
}

// UpdateMarketPrice pushes a tick through the book, settles every fill,
// then marks the account to market and records an equity point.
func (b *Broker) UpdateMarketPrice(ctx context.Context, symbol string, price float64, ts time.Time) ([]order.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym, err := market.ParseSymbol(symbol)
	if err != nil {
		return nil, broker.Wrap("update price", symbol, fmt.Errorf("%w: %v", broker.ErrInvalidSymbol, err))
	}
	key := sym.String()

	b.mu.Lock()

	trades, fillErr := b.engine.UpdatePrice(key, price, ts)
	if errors.Is(fillErr, matching.ErrInvalidPrice) {
		b.mu.Unlock()
		return nil, broker.Wrap("update price", key, fillErr)
	}

	equity := b.equityLocked()
	pt := b.curve.Append(ts, equity)
	snap := journal.EquitySnapshot{
		Time:     ts,
		Cash:     b.ledger.cash(b.currency).InexactFloat64(),
		Equity:   equity,
		Drawdown: pt.Drawdown,
	}

	listener := b.listener
	snapErr := b.release(&snap)

	if listener != nil {
		for _, t := range trades {
			listener.OnTrade(t)
		}
	}

	if fillErr != nil {
		fillErr = broker.Wrap("update price", key, fillErr)
	}
	return trades, errors.Join(fillErr, snapErr)
}

func (b *Broker) Balance(ctx context.Context, asset string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.cash(asset).InexactFloat64(), nil
}

func (b *Broker) Position(ctx context.Context, asset string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.position(asset).InexactFloat64(), nil
}

// LastPrice is the most recent tick for symbol.
func (b *Broker) LastPrice(symbol string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.LastPrice(canonical(symbol))
}

// Equity is cash in the account currency plus every position marked at
// its last BASE/<currency> price.
func (b *Broker) Equity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.equityLocked()
}

// EquityCurve returns one point per price update.
func (b *Broker) EquityCurve() []analytics.EquityPoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.curve.Points()
}

// Drawdown is the current fraction of equity below its peak, as of the
// last price update.
func (b *Broker) Drawdown() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.curve.Drawdown()
}

// Account snapshots the ledger.
func (b *Broker) Account() broker.Account {
	b.mu.Lock()
	defer b.mu.Unlock()
	return broker.Account{
		ID:        b.id,
		Currency:  b.currency,
		Balances:  b.ledger.cashMap(),
		Positions: b.ledger.positionMap(),
		Equity:    b.equityLocked(),
	}
}

// Metrics runs the analytics over this broker's own history.
func (b *Broker) Metrics(benchmarkReturn float64) analytics.PerformanceMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return analytics.Calculate(b.curve.Points(), b.history, benchmarkReturn)
}

func (b *Broker) equityLocked() float64 {
	total := b.ledger.cash(b.currency)
	for asset, qty := range b.ledger.positions {
		if qty.IsZero() {
			continue
		}
		p, err := b.engine.LastPrice(asset + "/" + b.currency)
		if err != nil {
			b.log.WithField("asset", asset).Debug("no mark price, position left out of equity")
			continue
		}
		total = total.Add(qty.Mul(decimal.NewFromFloat(p)))
	}
	return total.InexactFloat64()
}

// EstimateCost prices a hypothetical fill with the broker's cost model and
// the symbol's current market context, without touching the ledger.
func (b *Broker) EstimateCost(symbol string, side market.Side, price, qty float64) cost.Cost {
	b.mu.Lock()
	defer b.mu.Unlock()
	calc := b.calculatorLocked()
	mc := b.ctx[canonical(symbol)]
	if side == market.Sell {
		return calc.SellCost(price, qty, mc)
	}
	return calc.BuyCost(price, qty, mc)
}

func (b *Broker) calculatorLocked() cost.Calculator {
	if !b.costsEnabled {
		return cost.Frictionless()
	}
	return b.costs
}

// release drops mu, then writes the queued fills and snap under jmu.
// Rows from one call stay in order; concurrent calls on one broker may
// interleave. Fill write errors are logged because the fill already
// settled. The snapshot error is returned.
func (b *Broker) release(snap *journal.EquitySnapshot) error {
	fills := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(fills) == 0 && snap == nil {
		return nil
	}
	b.jmu.Lock()
	defer b.jmu.Unlock()
	for _, rec := range fills {
		if err := b.journal.RecordTrade(rec); err != nil {
			b.log.WithError(err).WithField("trade", rec.TradeID).Warn("journal trade")
		}
	}
	if snap == nil {
		return nil
	}
	return b.journal.RecordEquity(*snap)
}

// settler is the engine's view of the broker. It runs with b.mu held.
type settler struct{ b *Broker }

func (s settler) Settle(symbol string, t order.Trade) (order.Trade, error) {
	return s.b.settleLocked(symbol, t)
}

func (b *Broker) settleLocked(symbol string, t order.Trade) (order.Trade, error) {
	sym, err := market.ParseSymbol(symbol)
	if err != nil {
		return t, fmt.Errorf("%w: %v", broker.ErrInvalidSymbol, err)
	}

	calc := b.calculatorLocked()
	mc := b.ctx[symbol]

	var c cost.Cost
	switch t.Side {
	case market.Buy:
		c = calc.BuyCost(t.Price, t.Quantity, mc)
		if err := b.ledger.buy(sym, t.Quantity, c.TotalCost); err != nil {
			return t, err
		}
	case market.Sell:
		c = calc.SellCost(t.Price, t.Quantity, mc)
		if err := b.ledger.sell(sym, t.Quantity, c.TotalCost); err != nil {
			return t, err
		}
	default:
		return t, fmt.Errorf("%w: side %v", broker.ErrInvalidOrder, t.Side)
	}

	t.Price = c.ExecutedPrice
	t = t.WithFee(c.Fee)
	b.history = append(b.history, t)

	b.pending = append(b.pending, journal.FromTrade(t, ""))
	b.log.WithFields(logrus.Fields{
		"symbol": symbol,
		"side":   t.Side,
		"qty":    t.Quantity,
		"price":  t.Price,
		"fee":    c.Fee,
	}).Debug("fill settled")
	return t, nil
}

func canonical(symbol string) string {
	if s, err := market.ParseSymbol(symbol); err == nil {
		return s.String()
	}
	return symbol
}
