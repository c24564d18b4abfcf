package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/quantsim/backtest"
	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy over historical klines",
	Long: `Backtest replays a kline CSV (time,open,high,low,close[,volume], optionally
.xz or .lzma compressed) through a paper broker with the configured costs,
risk rules and position sizing.

Supported strategies:
  - hold: buy once and hold (baseline)
  - sma_cross: long while the fast SMA is above the slow SMA

With --grid several fast:slow pairs run in parallel, each on its own broker.

Examples:
  quantsim backtest -c quantsim.yaml --data data/btcusdt-1h.csv.xz
  quantsim backtest --data klines.csv --grid 5:20,10:30,20:50`,
	RunE: runBacktest,
}

var (
	btData     string
	btFrom     string
	btTo       string
	btStrategy string
	btFast     int
	btSlow     int
	btGrid     string
	btCloseEnd bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btData, "data", "d", "", "kline CSV path (overrides market.data)")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first day to replay (YYYY-MM-DD, UTC)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "day after the last one replayed (YYYY-MM-DD, UTC)")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "", "strategy name (overrides strategy.name)")
	backtestCmd.Flags().IntVar(&btFast, "fast", 0, "sma_cross: fast period (overrides strategy.fast)")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 0, "sma_cross: slow period (overrides strategy.slow)")
	backtestCmd.Flags().StringVar(&btGrid, "grid", "", "comma separated fast:slow pairs run in parallel")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "close the open position on the last kline")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data := cfg.Market.Data
	if btData != "" {
		data = btData
	}
	if data == "" {
		return fmt.Errorf("no kline data: set market.data or --data")
	}
	from, err := parseDay(btFrom)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseDay(btTo)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	base := runSpec{
		Data:     data,
		Dataset:  filepath.Base(data),
		From:     from,
		To:       to,
		Strategy: cfg.Strategy.Name,
		Fast:     cfg.Strategy.Fast,
		Slow:     cfg.Strategy.Slow,
		CloseEnd: btCloseEnd,
	}
	if btStrategy != "" {
		base.Strategy = btStrategy
	}
	if btFast > 0 {
		base.Fast = btFast
	}
	if btSlow > 0 {
		base.Slow = btSlow
	}

	j, db, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()
	if db != nil {
		base.Recorder = db
	}

	jobs := []runSpec{base}
	if btGrid != "" {
		pairs, err := parseGrid(btGrid)
		if err != nil {
			return fmt.Errorf("--grid: %w", err)
		}
		jobs = jobs[:0]
		for _, p := range pairs {
			s := base
			s.Strategy = "sma_cross"
			s.Fast, s.Slow = p[0], p[1]
			jobs = append(jobs, s)
		}
	} else {
		// one run owns the trade journal; parallel runs only record results
		jobs[0].Journal = j
	}

	runners := make([]*backtest.Runner, 0, len(jobs))
	for _, s := range jobs {
		r, err := buildRunner(cfg, s)
		if err != nil {
			return err
		}
		runners = append(runners, r)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Running %d backtest(s) on %s\n", len(runners), data)
	fmt.Printf("  Symbol: %s\n", cfg.Market.Symbol)
	fmt.Printf("  Journal: %s\n\n", cfg.Journal.Type)

	runs, err := backtest.RunAll(ctx, runners)
	for _, run := range runs {
		if run.RunID == "" {
			continue
		}
		if werr := run.WriteOrg(os.Stdout); werr != nil {
			return werr
		}
		fmt.Println()
	}
	return err
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

// parseGrid reads "5:20,10:30" into fast/slow pairs.
func parseGrid(s string) ([][2]int, error) {
	var out [][2]int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fs, ss, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("bad pair %q (want fast:slow)", part)
		}
		fast, err := strconv.Atoi(strings.TrimSpace(fs))
		if err != nil {
			return nil, fmt.Errorf("bad fast period in %q: %w", part, err)
		}
		slow, err := strconv.Atoi(strings.TrimSpace(ss))
		if err != nil {
			return nil, fmt.Errorf("bad slow period in %q: %w", part, err)
		}
		if fast <= 0 || slow <= fast {
			return nil, fmt.Errorf("bad pair %q: need 0 < fast < slow", part)
		}
		out = append(out, [2]int{fast, slow})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no pairs")
	}
	return out, nil
}
