package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/quantsim/backtest"
	"github.com/rustyeddy/quantsim/config"
	"github.com/rustyeddy/quantsim/journal"
	"github.com/rustyeddy/quantsim/pkg/logging"
	"github.com/rustyeddy/quantsim/risk"
	"github.com/rustyeddy/quantsim/sim"
)

// openJournal builds the configured trade journal. The SQLite journal is
// also returned on its own so callers can record and query runs.
func openJournal(cfg config.JournalConfig) (journal.Journal, *journal.SQLite, error) {
	switch cfg.Type {
	case "csv":
		j, err := journal.NewCSV(cfg.TradesFile, cfg.EquityFile)
		if err != nil {
			return nil, nil, fmt.Errorf("create journal: %w", err)
		}
		return j, nil, nil
	case "sqlite":
		j, err := journal.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		return j, j, nil
	default:
		return journal.Discard{}, nil, nil
	}
}

// sessionConfig is the broker template shared by backtests and API sessions.
func sessionConfig(cfg *config.Config, j journal.Journal) (sim.Config, error) {
	calc, err := cfg.Costs.Calculator()
	if err != nil {
		return sim.Config{}, fmt.Errorf("costs: %w", err)
	}
	return sim.Config{
		AccountID:    cfg.Account.ID,
		Currency:     cfg.Account.Currency,
		Costs:        calc,
		CostsEnabled: cfg.Costs.Enabled,
		Journal:      j,
		Log:          logging.Component("sim"),
	}, nil
}

// runSpec is one backtest to build from the config.
type runSpec struct {
	Data     string
	Dataset  string
	From, To time.Time
	Strategy string
	Fast     int
	Slow     int
	CloseEnd bool
	Journal  journal.Journal
	Recorder backtest.RunRecorder
}

func buildRunner(cfg *config.Config, rs runSpec) (*backtest.Runner, error) {
	strat, err := backtest.StrategyByName(rs.Strategy, rs.Fast, rs.Slow)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}
	sizing, err := cfg.Sizing.PositionManager()
	if err != nil {
		return nil, fmt.Errorf("sizing: %w", err)
	}
	sc, err := sessionConfig(cfg, rs.Journal)
	if err != nil {
		return nil, err
	}
	b := sim.NewBroker(sc)
	if err := b.Deposit(cfg.Account.Currency, cfg.Account.Cash); err != nil {
		return nil, err
	}
	feed, err := backtest.NewCSVKlineFeed(rs.Data, rs.From, rs.To)
	if err != nil {
		return nil, err
	}

	return &backtest.Runner{
		Dataset:          rs.Dataset,
		Params:           fmt.Sprintf(`{"strategy":%q,"fast":%d,"slow":%d}`, rs.Strategy, rs.Fast, rs.Slow),
		Symbol:           cfg.Market.Symbol,
		Broker:           b,
		Feed:             feed,
		Strategy:         strat,
		Risk:             risk.NewManager(cfg.Risk.Rules, cfg.Account.Cash),
		Sizing:           sizing,
		StopPct:          cfg.Risk.StopPct,
		RewardRisk:       cfg.Risk.RewardRisk,
		VolatilityPeriod: 14,
		CloseAtEnd:       rs.CloseEnd,
		Recorder:         rs.Recorder,
		Log:              logging.Component("backtest"),
	}, nil
}
