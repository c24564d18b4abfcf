package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists fills, equity and backtest runs in one database file.
// Brokers and the HTTP API may write from several goroutines, so the
// pool is pinned to a single connection.
type SQLite struct {
	db *sql.DB
}

// dsn turns a bare file path into a go-sqlite3 DSN with WAL and a busy
// timeout. Paths that already carry options pass through.
func dsn(path string) string {
	if strings.Contains(path, "?") || path == ":memory:" {
		return path
	}
	return "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal %s: schema: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) exec(ctx context.Context, query string, args ...any) error {
	_, err := j.db.ExecContext(ctx, query, args...)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	return j.exec(context.Background(),
		`INSERT INTO trades (`+tradeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.OrderID, t.Symbol, t.Side,
		t.Price, t.Quantity, t.Fee, t.Time.UTC(), t.Note)
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	return j.exec(context.Background(),
		`INSERT INTO equity (time, cash, equity, drawdown) VALUES (?, ?, ?, ?)`,
		e.Time.UTC(), e.Cash, e.Equity, e.Drawdown)
}

// RecordRun upserts a backtest summary. Metrics go in as a JSON blob.
func (j *SQLite) RecordRun(ctx context.Context, run BacktestRun) error {
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return j.exec(ctx,
		`INSERT OR REPLACE INTO backtest_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Created.UTC(), run.Symbol, run.Strategy, run.Dataset,
		run.Params, run.Start.UTC(), run.End.UTC(), string(metrics))
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
