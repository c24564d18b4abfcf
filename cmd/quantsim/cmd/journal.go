package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/quantsim/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal and backtest results",
	Long: `Query and display records from the SQLite journal.

Subcommands:
  trade  - Get details of a specific trade by ID
  today  - List trades filled today
  day    - List trades filled on a specific day
  runs   - List stored backtest runs
  run    - Show one backtest run as an Org entry

Examples:
  quantsim journal trade <trade-id>
  quantsim journal day 2024-01-15
  quantsim journal run <run-id>`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades filled today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades filled on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored backtest runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Show one backtest run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalRunCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./quantsim.sqlite", "path to SQLite journal DB")
}

// withJournal opens the journal database for one command.
func withJournal(fn func(*journal.SQLite) error) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()
	return fn(j)
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	return withJournal(func(j *journal.SQLite) error {
		rec, err := j.GetTrade(args[0])
		if err != nil {
			return fmt.Errorf("get trade: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
		return err
	})
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return listDay(cmd.OutOrStdout(), time.Local, time.Now().Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listDay(cmd.OutOrStdout(), time.Local, args[0])
}

func listDay(w io.Writer, loc *time.Location, day string) error {
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return withJournal(func(j *journal.SQLite) error {
		recs, err := j.ListTradesBetween(start, end)
		if err != nil {
			return fmt.Errorf("query trades: %w", err)
		}
		if len(recs) == 0 {
			_, err = fmt.Fprintf(w, "no fills on %s\n", day)
			return err
		}
		_, err = fmt.Fprintln(w, journal.FormatTradesOrg(recs))
		return err
	})
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	return withJournal(func(j *journal.SQLite) error {
		runs, err := j.ListRuns(cmd.Context())
		if err != nil {
			return fmt.Errorf("query runs: %w", err)
		}
		return writeRuns(cmd.OutOrStdout(), runs)
	})
}

func writeRuns(w io.Writer, runs []journal.BacktestRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no backtest runs")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "RUN\tSYMBOL\tSTRATEGY\tRETURN%\tMAXDD%\tTRADES\t")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%d\t\n",
			r.RunID, r.Symbol, r.Strategy,
			100*r.Metrics.TotalReturn, 100*r.Metrics.MaxDrawdown, r.Metrics.TotalTrades)
	}
	return tw.Flush()
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	return withJournal(func(j *journal.SQLite) error {
		run, err := j.GetRun(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}
		return run.WriteOrg(cmd.OutOrStdout())
	})
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
