package journal

import (
	"io"
	"text/template"
	"time"

	"github.com/rustyeddy/quantsim/analytics"
)

// BacktestRun mirrors the backtest_runs table.
type BacktestRun struct {
	RunID    string    `json:"run_id"`
	Created  time.Time `json:"created"`
	Symbol   string    `json:"symbol"`
	Strategy string    `json:"strategy"`
	Dataset  string    `json:"dataset"`
	Params   string    `json:"params"` // strategy and risk config, JSON

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Metrics analytics.PerformanceMetrics `json:"metrics"`

	Notes []string `json:"notes,omitempty"`
}

var backtestOrgFuncs = template.FuncMap{
	"pct": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// WriteOrg renders the run as an Org-mode entry.
func (r BacktestRun) WriteOrg(w io.Writer) error {
	return backtestOrg.Execute(w, r)
}

const BacktestOrgTemplate = `* BACKTEST: {{.Strategy}} {{.Symbol}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_EQ:    {{printf "%.2f" .Metrics.InitialEquity}}
:END_EQ:      {{printf "%.2f" .Metrics.FinalEquity}}
:RETURN_PCT:  {{printf "%.2f" (pct .Metrics.TotalReturn)}}
:MAX_DD_PCT:  {{printf "%.2f" (pct .Metrics.MaxDrawdown)}}
:TRADES:      {{.Metrics.TotalTrades}}
:WIN_RATE:    {{printf "%.2f" .Metrics.WinRate}}
:PROFIT_FAC:  {{printf "%.2f" .Metrics.ProfitFactor}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Parameters
#+begin_src json
{{.Params}}
#+end_src

** Performance Summary
| Metric            | Value |
|-------------------+-------|
| Total return %    | {{printf "%.2f" (pct .Metrics.TotalReturn)}} |
| Annualized %      | {{printf "%.2f" (pct .Metrics.AnnualizedReturn)}} |
| Volatility %      | {{printf "%.2f" (pct .Metrics.Volatility)}} |
| Sharpe            | {{printf "%.2f" .Metrics.SharpeRatio}} |
| Sortino           | {{printf "%.2f" .Metrics.SortinoRatio}} |
| Calmar            | {{printf "%.2f" .Metrics.CalmarRatio}} |
| Max drawdown %    | {{printf "%.2f" (pct .Metrics.MaxDrawdown)}} |
| Max DD duration   | {{.Metrics.MaxDrawdownDuration}} |
| Benchmark %       | {{printf "%.2f" (pct .Metrics.BenchmarkReturn)}} |
| Alpha %           | {{printf "%.2f" (pct .Metrics.Alpha)}} |

** Trade Distribution
| Outcome      | Count |
|--------------+-------|
| Wins         | {{.Metrics.WinningTrades}} |
| Losses       | {{.Metrics.LosingTrades}} |
| Total        | {{.Metrics.TotalTrades}} |
| Best streak  | {{.Metrics.MaxConsecutiveWins}} |
| Worst streak | {{.Metrics.MaxConsecutiveLoss}} |
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
