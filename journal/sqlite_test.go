package journal

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/quantsim/market"
	"github.com/rustyeddy/quantsim/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('trades','equity','backtest_runs')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
	assert.True(t, found["backtest_runs"])
}

func TestSQLiteRecordTrade(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tr := order.Trade{
		ID:        "T1",
		OrderID:   "O1",
		Symbol:    "ETH/USDT",
		Side:      market.Sell,
		Price:     2345.6789,
		Quantity:  1.5,
		Timestamp: ts,
	}.WithFee(3.25)
	rec := FromTrade(tr, "take profit")

	require.NoError(t, j.RecordTrade(rec))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		tradeID, orderID, symbol, side, note string
		price, qty, fee                      float64
		at                                   time.Time
	)
	err = db.QueryRow(`
        SELECT trade_id, order_id, symbol, side, price, quantity, fee, time, note
        FROM trades LIMIT 1`).Scan(&tradeID, &orderID, &symbol, &side, &price, &qty, &fee, &at, &note)
	require.NoError(t, err)

	assert.Equal(t, "T1", tradeID)
	assert.Equal(t, "O1", orderID)
	assert.Equal(t, "ETH/USDT", symbol)
	assert.Equal(t, "sell", side)
	assert.InDelta(t, 2345.6789, price, 1e-9)
	assert.InDelta(t, 1.5, qty, 1e-9)
	assert.InDelta(t, 3.25, fee, 1e-9)
	assert.True(t, at.Equal(ts))
	assert.Equal(t, "take profit", note)
}

func TestSQLiteRecordEquity(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	rec := EquitySnapshot{Time: ts, Cash: 1000.1, Equity: 999.9, Drawdown: 0.02}

	require.NoError(t, j.RecordEquity(rec))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		gotTime              time.Time
		cash, equity, drawdn float64
	)
	err = db.QueryRow(`SELECT time, cash, equity, drawdown FROM equity LIMIT 1`).
		Scan(&gotTime, &cash, &equity, &drawdn)
	require.NoError(t, err)

	assert.True(t, gotTime.Equal(rec.Time))
	assert.InDelta(t, rec.Cash, cash, 1e-6)
	assert.InDelta(t, rec.Equity, equity, 1e-6)
	assert.InDelta(t, rec.Drawdown, drawdn, 1e-9)
}

func TestSQLiteDuplicateTradeRejected(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	rec := TradeRecord{TradeID: "dup", Symbol: "BTC/USDT", Side: "buy", Time: time.Now()}
	require.NoError(t, j.RecordTrade(rec))
	assert.Error(t, j.RecordTrade(rec))
}

func TestDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"q.db", "file:q.db?_journal_mode=WAL&_busy_timeout=5000"},
		{":memory:", ":memory:"},
		{"file:x.db?mode=ro", "file:x.db?mode=ro"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dsn(tt.in))
	}
}

func TestSQLiteConcurrentWriters(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				errs <- j.RecordTrade(TradeRecord{
					TradeID: fmt.Sprintf("w%d-%d", w, i),
					Side:    "buy",
					Time:    t0.Add(time.Duration(i) * time.Minute),
				})
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := j.ListTradesBetween(t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 40)
}
