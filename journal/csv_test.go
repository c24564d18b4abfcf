package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCSV(t *testing.T) (*CSV, string, string) {
	t.Helper()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	return j, tradesPath, equityPath
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	j, tradesPath, equityPath := newTestCSV(t)
	assert.NoError(t, j.Close())

	trades := readRows(t, tradesPath)
	require.Len(t, trades, 1)
	assert.Equal(t, []string{"trade_id", "order_id", "symbol", "side", "price", "quantity", "fee", "time", "note"}, trades[0])

	equity := readRows(t, equityPath)
	require.Len(t, equity, 1)
	assert.Equal(t, []string{"time", "cash", "equity", "drawdown"}, equity[0])
}

func TestCSVJournalRecordTrade(t *testing.T) {
	t.Parallel()

	j, tradesPath, _ := newTestCSV(t)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	err := j.RecordTrade(TradeRecord{
		TradeID:  "T1",
		OrderID:  "O1",
		Symbol:   "BTC/USDT",
		Side:     "buy",
		Price:    42123.4567891,
		Quantity: 0.25,
		Fee:      10.53,
		Time:     ts,
		Note:     "entry, sma cross",
	})
	assert.NoError(t, err)
	assert.NoError(t, j.Close())

	rows := readRows(t, tradesPath)
	require.Len(t, rows, 2)

	want := []string{
		"T1",
		"O1",
		"BTC/USDT",
		"buy",
		"42123.456789",
		"0.250000",
		"10.530000",
		ts.Format(time.RFC3339),
		"entry, sma cross",
	}
	assert.Equal(t, want, rows[1])
}

func TestCSVJournalRecordEquity(t *testing.T) {
	t.Parallel()

	j, _, equityPath := newTestCSV(t)

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	err := j.RecordEquity(EquitySnapshot{
		Time:     ts,
		Cash:     1000.1,
		Equity:   999.9,
		Drawdown: 0.015,
	})
	assert.NoError(t, err)
	assert.NoError(t, j.Close())

	rows := readRows(t, equityPath)
	require.Len(t, rows, 2)

	want := []string{
		ts.Format(time.RFC3339),
		"1000.100000",
		"999.900000",
		"0.015000",
	}
	assert.Equal(t, want, rows[1])
}

func TestCSVJournalReopenAppends(t *testing.T) {
	t.Parallel()

	j, tradesPath, equityPath := newTestCSV(t)
	require.NoError(t, j.RecordTrade(TradeRecord{TradeID: "T1", Side: "buy"}))
	require.NoError(t, j.Close())

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(TradeRecord{TradeID: "T2", Side: "sell"}))
	require.NoError(t, j.Close())

	rows := readRows(t, tradesPath)
	require.Len(t, rows, 3)
	assert.Equal(t, "trade_id", rows[0][0])
	assert.Equal(t, "T1", rows[1][0])
	assert.Equal(t, "T2", rows[2][0])
	// zero time still renders
	assert.Equal(t, "0001-01-01T00:00:00Z", rows[2][7])

	assert.Len(t, readRows(t, equityPath), 1)
}

func TestCSVJournalBadPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewCSV(filepath.Join(dir, "missing", "t.csv"), filepath.Join(dir, "e.csv"))
	assert.Error(t, err)
	_, err = NewCSV(filepath.Join(dir, "t.csv"), filepath.Join(dir, "missing", "e.csv"))
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	var j Journal = Discard{}
	assert.NoError(t, j.RecordTrade(TradeRecord{}))
	assert.NoError(t, j.RecordEquity(EquitySnapshot{}))
	assert.NoError(t, j.Close())
}
