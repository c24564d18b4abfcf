package journal

import (
	"context"
	"testing"
	"time"

	"github.com/rustyeddy/quantsim/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	ts := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	expected := TradeRecord{
		TradeID:  "T123",
		OrderID:  "O9",
		Symbol:   "BTC/USDT",
		Side:     "buy",
		Price:    61000.5,
		Quantity: 0.1,
		Fee:      6.1,
		Time:     ts,
		Note:     "breakout",
	}
	require.NoError(t, j.RecordTrade(expected))

	actual, err := j.GetTrade("T123")
	require.NoError(t, err)

	assert.Equal(t, expected.TradeID, actual.TradeID)
	assert.Equal(t, expected.OrderID, actual.OrderID)
	assert.Equal(t, expected.Symbol, actual.Symbol)
	assert.Equal(t, expected.Side, actual.Side)
	assert.InDelta(t, expected.Price, actual.Price, 1e-9)
	assert.InDelta(t, expected.Quantity, actual.Quantity, 1e-9)
	assert.InDelta(t, expected.Fee, actual.Fee, 1e-9)
	assert.True(t, actual.Time.Equal(ts))
	assert.Equal(t, expected.Note, actual.Note)
}

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.GetTrade("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestListTradesBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"A", "B", "C", "D"} {
		require.NoError(t, j.RecordTrade(TradeRecord{
			TradeID: id,
			Symbol:  "BTC/USDT",
			Side:    "buy",
			Price:   100 + float64(i),
			Time:    base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	got, err := j.ListTradesBetween(base.Add(24*time.Hour), base.Add(3*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].TradeID)
	assert.Equal(t, "C", got[1].TradeID)

	none, err := j.ListTradesBetween(base.AddDate(1, 0, 0), base.AddDate(2, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListEquityBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.RecordEquity(EquitySnapshot{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Cash:   1000,
			Equity: 1000 + float64(i),
		}))
	}

	got, err := j.ListEquityBetween(base.Add(time.Hour), base.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1001.0, got[0].Equity)
	assert.Equal(t, 1003.0, got[2].Equity)
	assert.True(t, got[0].Time.Equal(base.Add(time.Hour)))
}

func TestRecordAndGetRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := BacktestRun{
		RunID:    "run-1",
		Created:  start.AddDate(0, 2, 0),
		Symbol:   "BTC/USDT",
		Strategy: "sma_cross",
		Dataset:  "btc_1d.csv",
		Params:   `{"fast":10,"slow":30}`,
		Start:    start,
		End:      start.AddDate(0, 1, 0),
		Metrics: analytics.PerformanceMetrics{
			TotalReturn:  0.12,
			WinRate:      60,
			ProfitFactor: analytics.Unbounded,
			TotalTrades:  5,
		},
	}
	require.NoError(t, j.RecordRun(ctx, run))

	got, err := j.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Symbol, got.Symbol)
	assert.Equal(t, run.Params, got.Params)
	assert.True(t, got.Start.Equal(run.Start))
	assert.True(t, got.End.Equal(run.End))
	assert.Equal(t, run.Metrics.TotalTrades, got.Metrics.TotalTrades)
	assert.InDelta(t, 0.12, got.Metrics.TotalReturn, 1e-12)
	assert.Equal(t, analytics.Unbounded, got.Metrics.ProfitFactor)

	// replacing keeps one row
	run.Metrics.TotalTrades = 6
	require.NoError(t, j.RecordRun(ctx, run))
	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 6, runs[0].Metrics.TotalTrades)

	_, err = j.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRunOverIntradayWindow(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	var c analytics.Curve
	for i, eq := range []float64{10000, 11000, 12100} {
		c.Append(start.Add(time.Duration(i)*time.Hour), eq)
	}
	run := BacktestRun{
		RunID:   "intraday",
		Created: start,
		Start:   start,
		End:     start.Add(2 * time.Hour),
		Metrics: analytics.Calculate(c.Points(), nil, 0),
	}

	ctx := context.Background()
	require.NoError(t, j.RecordRun(ctx, run))
	got, err := j.GetRun(ctx, "intraday")
	require.NoError(t, err)
	assert.InDelta(t, 0.21, got.Metrics.TotalReturn, 1e-12)
	assert.Equal(t, analytics.Unbounded, got.Metrics.AnnualizedReturn)
}
