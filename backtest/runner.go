package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/quantsim/broker"
	"github.com/rustyeddy/quantsim/cost"
	"github.com/rustyeddy/quantsim/indicators"
	"github.com/rustyeddy/quantsim/journal"
	"github.com/rustyeddy/quantsim/market"
	"github.com/rustyeddy/quantsim/matching"
	"github.com/rustyeddy/quantsim/order"
	"github.com/rustyeddy/quantsim/pkg/id"
	"github.com/rustyeddy/quantsim/pkg/logging"
	"github.com/rustyeddy/quantsim/risk"
	"github.com/rustyeddy/quantsim/sim"
	"github.com/sirupsen/logrus"
)

// RunRecorder persists finished runs; *journal.SQLite is one.
type RunRecorder interface {
	RecordRun(ctx context.Context, run journal.BacktestRun) error
}

// Runner drives one broker through a kline feed with a strategy. It is the
// only caller of its broker, owns the broker's trade listener, and is not
// safe for concurrent use. Use one Runner per goroutine.
type Runner struct {
	RunID   string
	Dataset string
	Params  string
	Symbol  string

	Broker   *sim.Broker
	Feed     KlineFeed
	Strategy Strategy

	// Risk is optional. When it is nil entries are never blocked.
	Risk   *risk.Manager
	Sizing risk.PositionManager

	// StopPct and RewardRisk place a stop-loss and a take-profit around
	// each entry. Either at 0 disables them.
	StopPct    float64
	RewardRisk float64

	// VolatilityPeriod is the ATR period feeding the cost model; 0 uses
	// each kline's own range.
	VolatilityPeriod int

	// CloseAtEnd liquidates any open position on the last kline.
	CloseAtEnd bool

	Recorder RunRecorder
	Log      *logrus.Entry

	sym   market.Symbol
	atr   *indicators.ATR
	pos   position
	fills []order.Trade
}

// position is the runner's view of the one long it may hold.
type position struct {
	open     bool
	entry    float64 // executed price of the opening fill
	spent    float64 // buy notional plus fees
	received float64 // sell notional minus fees
	stopID   string
	targetID string
}

// OnTrade collects the broker's fills for the current step.
func (r *Runner) OnTrade(t order.Trade) {
	r.fills = append(r.fills, t)
}

func (r *Runner) validate() error {
	if r.Broker == nil {
		return fmt.Errorf("backtest: Broker is required")
	}
	if r.Feed == nil {
		return fmt.Errorf("backtest: Feed is required")
	}
	if r.Strategy == nil {
		return fmt.Errorf("backtest: Strategy is required")
	}
	sym, err := market.ParseSymbol(r.Symbol)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	r.sym = sym
	return nil
}

// Run executes the backtest loop. For every kline it:
//  1. resets the daily risk baseline when the UTC date changes
//  2. feeds volatility to the cost model and pushes the close to the broker
//  3. books the fills, asks the risk manager, then acts on the strategy
//
// The finished run carries analytics against a buy-and-hold benchmark over
// the same klines and is handed to Recorder when one is set.
func (r *Runner) Run(ctx context.Context) (journal.BacktestRun, error) {
	if err := r.validate(); err != nil {
		return journal.BacktestRun{}, err
	}
	defer r.Feed.Close()

	if r.RunID == "" {
		r.RunID = id.NewSession()
	}
	if r.Log == nil {
		r.Log = logging.Component("backtest")
	}
	log := r.Log.WithFields(logrus.Fields{"run": r.RunID, "symbol": r.sym.String(), "strategy": r.Strategy.Name()})

	if r.VolatilityPeriod > 0 {
		r.atr = indicators.NewATR(r.VolatilityPeriod)
	}
	r.pos = position{}
	r.Strategy.Reset()
	r.Broker.SetTradeListener(r)

	var (
		first, last market.Kline
		bars        int
		day         time.Time
	)

	for {
		if err := ctx.Err(); err != nil {
			return journal.BacktestRun{}, err
		}
		k, ok, err := r.Feed.Next()
		if err != nil {
			return journal.BacktestRun{}, err
		}
		if !ok {
			break
		}

		d := k.Time.UTC().Truncate(24 * time.Hour)
		if bars > 0 && !d.Equal(day) && r.Risk != nil {
			r.Risk.ResetDailyStats(r.Broker.Equity())
		}
		day = d

		if bars == 0 {
			first = k
		}
		last = k
		bars++

		if err := r.step(ctx, k, log); err != nil {
			return journal.BacktestRun{}, err
		}
	}

	if r.CloseAtEnd && r.pos.open && bars > 0 {
		if err := r.exit(ctx, last, "end of data", log); err != nil {
			return journal.BacktestRun{}, err
		}
	}

	var bench float64
	if bars > 0 && first.Close > 0 {
		bench = last.Close/first.Close - 1
	}

	run := journal.BacktestRun{
		RunID:    r.RunID,
		Created:  time.Now().UTC(),
		Symbol:   r.sym.String(),
		Strategy: r.Strategy.Name(),
		Dataset:  r.Dataset,
		Params:   r.Params,
		Start:    first.Time,
		End:      last.Time,
		Metrics:  r.Broker.Metrics(bench),
	}
	if r.Risk != nil && r.Risk.ShouldStopTrading() {
		run.Notes = append(run.Notes, "trading halted: "+r.Risk.StopReason())
	}

	log.WithFields(logrus.Fields{
		"bars":         bars,
		"trades":       run.Metrics.TotalTrades,
		"total_return": run.Metrics.TotalReturn,
		"max_drawdown": run.Metrics.MaxDrawdown,
	}).Info("backtest finished")

	if r.Recorder != nil {
		if err := r.Recorder.RecordRun(ctx, run); err != nil {
			return run, fmt.Errorf("record run %s: %w", r.RunID, err)
		}
	}
	return run, nil
}

func (r *Runner) step(ctx context.Context, k market.Kline, log *logrus.Entry) error {
	symbol := r.sym.String()

	vol := k.Volatility()
	if r.atr != nil {
		r.atr.Update(k)
		if r.atr.Ready() {
			vol = r.atr.Relative()
		}
	}
	r.Broker.SetMarketContext(symbol, cost.MarketContext{Volatility: vol})

	_, err := r.Broker.UpdateMarketPrice(ctx, symbol, k.Close, k.Time)
	if err != nil {
		if errors.Is(err, matching.ErrInvalidPrice) || ctx.Err() != nil {
			return err
		}
		// a refused fill cancels its order; the run goes on
		log.WithError(err).WithField("time", k.Time).Warn("fill refused")
	}
	if err := r.book(ctx); err != nil {
		return err
	}

	sig := r.Strategy.OnKline(k)

	check := risk.CheckResult{Kind: risk.Pass}
	if r.Risk != nil {
		check = r.Risk.Check(r.Broker.Equity(), r.Broker.Drawdown(), k.Close)
		if check.Kind.Latches() {
			log.WithFields(logrus.Fields{"rule": check.Kind, "time": k.Time}).Warn(check.Reason)
		}
	}

	switch {
	case r.pos.open && check.ExitPosition():
		return r.exit(ctx, k, check.Kind.String(), log)
	case r.pos.open && sig == Exit:
		return r.exit(ctx, k, "signal", log)
	case !r.pos.open && sig == Enter && check.OK():
		return r.enter(ctx, k, log)
	}
	return nil
}

// book folds the fills since the last call into the position and closes
// the round trip once the base position is flat.
func (r *Runner) book(ctx context.Context) error {
	fills := r.fills
	r.fills = nil
	for _, t := range fills {
		switch t.Side {
		case market.Buy:
			if !r.pos.open {
				r.pos.open = true
				r.pos.entry = t.Price
			}
			r.pos.spent += t.Notional() + t.FeeOrZero()
		case market.Sell:
			r.pos.received += t.Notional() - t.FeeOrZero()
		}
	}
	if !r.pos.open {
		return nil
	}

	qty, err := r.Broker.Position(ctx, r.sym.Base)
	if err != nil {
		return err
	}
	if qty > 0 {
		return nil
	}

	if r.Risk != nil {
		r.Risk.RecordTradeResult(r.pos.received > r.pos.spent)
	}
	err = r.cancelProtective(ctx)
	r.pos = position{}
	return err
}

func (r *Runner) enter(ctx context.Context, k market.Kline, log *logrus.Entry) error {
	symbol := r.sym.String()

	equity := r.Broker.Equity()
	notional, err := r.Sizing.PositionSize(equity, 0)
	if err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	qty, err := risk.Quantity(notional, k.Close)
	if err != nil {
		return err
	}

	// spot only: shrink the order until it and its costs fit in cash
	cash, err := r.Broker.Balance(ctx, r.sym.Quote)
	if err != nil {
		return err
	}
	if est := r.Broker.EstimateCost(symbol, market.Buy, k.Close, qty); est.TotalCost > cash && est.TotalCost > 0 {
		qty *= cash / est.TotalCost * (1 - 1e-9)
	}
	if !(qty > 0) {
		return nil
	}

	if _, err := r.Broker.SubmitOrder(ctx, symbol, order.NewMarket(market.Buy, qty, k.Time)); err != nil {
		if errors.Is(err, broker.ErrInsufficientBalance) {
			log.WithError(err).Debug("entry skipped")
			return nil
		}
		return err
	}
	if err := r.book(ctx); err != nil {
		return err
	}
	if !r.pos.open || r.StopPct <= 0 || r.RewardRisk <= 0 {
		return nil
	}

	held, err := r.Broker.Position(ctx, r.sym.Base)
	if err != nil {
		return err
	}
	stop, target := risk.Protective(market.Buy, r.pos.entry, r.StopPct, r.RewardRisk)
	if r.pos.stopID, err = r.Broker.SubmitOrder(ctx, symbol, order.NewStopLoss(market.Sell, held, stop, k.Time)); err != nil {
		return err
	}
	if r.pos.targetID, err = r.Broker.SubmitOrder(ctx, symbol, order.NewTakeProfit(market.Sell, held, target, k.Time)); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"qty": held, "entry": r.pos.entry, "stop": stop, "target": target}).Debug("entered")
	return nil
}

func (r *Runner) exit(ctx context.Context, k market.Kline, reason string, log *logrus.Entry) error {
	if err := r.cancelProtective(ctx); err != nil {
		return err
	}
	held, err := r.Broker.Position(ctx, r.sym.Base)
	if err != nil {
		return err
	}
	if held > 0 {
		if _, err := r.Broker.SubmitOrder(ctx, r.sym.String(), order.NewMarket(market.Sell, held, k.Time)); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{"reason": reason, "price": k.Close, "time": k.Time}).Debug("exited")
	return r.book(ctx)
}

func (r *Runner) cancelProtective(ctx context.Context) error {
	var errs []error
	for _, oid := range []string{r.pos.stopID, r.pos.targetID} {
		if oid == "" {
			continue
		}
		errs = append(errs, r.Broker.CancelOrder(ctx, oid))
	}
	r.pos.stopID, r.pos.targetID = "", ""
	return errors.Join(errs...)
}

// RunAll runs each runner on its own goroutine. Runners must not share a
// broker. Results keep the input order; failed runs leave a zero value and
// their errors are joined.
func RunAll(ctx context.Context, runners []*Runner) ([]journal.BacktestRun, error) {
	out := make([]journal.BacktestRun, len(runners))
	errs := make([]error, len(runners))

	var wg sync.WaitGroup
	for i, r := range runners {
		wg.Add(1)
		go func(i int, r *Runner) {
			defer wg.Done()
			run, err := r.Run(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("run %d: %w", i, err)
				return
			}
			out[i] = run
		}(i, r)
	}
	wg.Wait()
	return out, errors.Join(errs...)
}
