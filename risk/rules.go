package risk

// Rules are optional account-level thresholds. A nil field disables the
// rule. Drawdown and daily loss are fractions (0.2 == 20%).
type Rules struct {
	MaxDrawdown          *float64 `json:"max_drawdown,omitempty" yaml:"max_drawdown,omitempty"`
	MaxDailyLoss         *float64 `json:"max_daily_loss,omitempty" yaml:"max_daily_loss,omitempty"`
	MaxConsecutiveLosses *int     `json:"max_consecutive_losses,omitempty" yaml:"max_consecutive_losses,omitempty"`
	MinEquity            *float64 `json:"min_equity,omitempty" yaml:"min_equity,omitempty"`

	// Static price levels for the position being managed. These never
	// halt the account.
	StopLossPrice   *float64 `json:"stop_loss_price,omitempty" yaml:"stop_loss_price,omitempty"`
	TakeProfitPrice *float64 `json:"take_profit_price,omitempty" yaml:"take_profit_price,omitempty"`
}

// Float and Int build optional rule values.
func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }
