package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var (
	tradeHeader  = []string{"trade_id", "order_id", "symbol", "side", "price", "quantity", "fee", "time", "note"}
	equityHeader = []string{"time", "cash", "equity", "drawdown"}
)

// table is one append-only CSV file. Every row is flushed so a crashed
// run still leaves a readable file behind.
type table struct {
	file *os.File
	w    *csv.Writer
}

// openTable appends to path, writing header only when the file is new
// or empty.
func openTable(path string, header []string) (*table, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, err
	}

	t := &table{file: fh, w: csv.NewWriter(fh)}
	if st.Size() == 0 {
		if err := t.append(header); err != nil {
			_ = fh.Close()
			return nil, fmt.Errorf("%s: header: %w", path, err)
		}
	}
	return t, nil
}

func (t *table) append(row []string) error {
	if err := t.w.Write(row); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

func (t *table) close() error {
	t.w.Flush()
	return errors.Join(t.w.Error(), t.file.Close())
}

// CSV journals trades and equity into two flat files.
type CSV struct {
	trades *table
	equity *table
}

func NewCSV(tradesPath, equityPath string) (*CSV, error) {
	trades, err := openTable(tradesPath, tradeHeader)
	if err != nil {
		return nil, err
	}
	equity, err := openTable(equityPath, equityHeader)
	if err != nil {
		_ = trades.close()
		return nil, err
	}
	return &CSV{trades: trades, equity: equity}, nil
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	return j.trades.append([]string{
		t.TradeID, t.OrderID, t.Symbol, t.Side,
		num(t.Price), num(t.Quantity), num(t.Fee),
		stamp(t.Time), t.Note,
	})
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	return j.equity.append([]string{stamp(e.Time), num(e.Cash), num(e.Equity), num(e.Drawdown)})
}

func (j *CSV) Close() error {
	return errors.Join(j.trades.close(), j.equity.close())
}

func num(x float64) string { return strconv.FormatFloat(x, 'f', 6, 64) }

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
