package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/quantsim/market"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// KlineFeed yields klines one at a time in time order.
// Implementations return (ok=false, err=nil) at EOF.
type KlineFeed interface {
	Next() (k market.Kline, ok bool, err error)
	Close() error
}

// CSVKlineFeed reads kline CSV rows:
//
//	time,open,high,low,close[,volume]
//
// where time is RFC3339(Nano) or a unix timestamp in seconds or
// milliseconds. Files ending in .xz or .lzma are decompressed on the fly.
//
// A header row ("time,...") is allowed, blank rows are skipped and klines
// are filtered to [from, to) when those are non-zero.
type CSVKlineFeed struct {
	f    *os.File
	r    *csv.Reader
	from time.Time
	to   time.Time

	sawFirst bool
}

func NewCSVKlineFeed(path string, from, to time.Time) (*CSVKlineFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var src io.Reader = f
	switch {
	case strings.HasSuffix(path, ".xz"):
		src, err = xz.NewReader(f)
	case strings.HasSuffix(path, ".lzma"):
		src, err = lzma.NewReader(f)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	return &CSVKlineFeed{f: f, r: r, from: from, to: to}, nil
}

func (f *CSVKlineFeed) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

func (f *CSVKlineFeed) Next() (market.Kline, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return market.Kline{}, false, nil
		}
		if err != nil {
			return market.Kline{}, false, err
		}

		if !f.sawFirst {
			f.sawFirst = true
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		k, ok, err := parseKlineRow(row)
		if err != nil {
			return market.Kline{}, false, err
		}
		if !ok || !inRange(k.Time, f.from, f.to) {
			continue
		}
		return k, true, nil
	}
}

func parseKlineRow(row []string) (market.Kline, bool, error) {
	if len(row) < 5 {
		return market.Kline{}, false, nil
	}
	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return market.Kline{}, false, nil
	}
	t, err := parseTime(ts)
	if err != nil {
		return market.Kline{}, false, err
	}

	var v [5]float64
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		col := i + 1
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			// volume is optional
			if i == 4 {
				break
			}
			return market.Kline{}, false, fmt.Errorf("missing %s at %s", names[i], ts)
		}
		v[i], err = strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			return market.Kline{}, false, fmt.Errorf("bad %s %q: %w", names[i], row[col], err)
		}
	}

	return market.Kline{Time: t, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}, true, nil
}

func parseTime(ts string) (time.Time, error) {
	if n, err := strconv.ParseInt(ts, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}
	return t, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// SliceFeed replays klines held in memory.
type SliceFeed struct {
	klines []market.Kline
	i      int
}

func NewSliceFeed(klines []market.Kline) *SliceFeed {
	return &SliceFeed{klines: klines}
}

func (s *SliceFeed) Next() (market.Kline, bool, error) {
	if s.i >= len(s.klines) {
		return market.Kline{}, false, nil
	}
	k := s.klines[s.i]
	s.i++
	return k, true, nil
}

func (s *SliceFeed) Close() error { return nil }
