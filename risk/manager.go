package risk

import "fmt"

// Kind identifies which rule a check tripped.
type Kind int

const (
	Pass Kind = iota
	MaxDrawdownExceeded
	MaxDailyLossExceeded
	MaxConsecutiveLossesReached
	MinEquityBreached
	StopLossTriggered
	TakeProfitTriggered
	Halted
)

func (k Kind) String() string {
	switch k {
	case Pass:
		return "PASS"
	case MaxDrawdownExceeded:
		return "MAX_DRAWDOWN"
	case MaxDailyLossExceeded:
		return "DAILY_LOSS_LIMIT"
	case MaxConsecutiveLossesReached:
		return "CONSECUTIVE_LOSSES"
	case MinEquityBreached:
		return "MIN_EQUITY"
	case StopLossTriggered:
		return "STOP_LOSS"
	case TakeProfitTriggered:
		return "TAKE_PROFIT"
	case Halted:
		return "HALTED"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Latches reports whether the rule halts the account.
func (k Kind) Latches() bool {
	switch k {
	case MaxDrawdownExceeded, MaxDailyLossExceeded, MaxConsecutiveLossesReached, MinEquityBreached:
		return true
	default:
		return false
	}
}

// CheckResult is the outcome of one Check. It is a signal, not an error:
// the caller decides what to do with it.
type CheckResult struct {
	Kind   Kind
	Cause  Kind // for Halted, the rule that latched
	Reason string
	Value  float64
	Limit  float64
}

func (r CheckResult) OK() bool { return r.Kind == Pass }

// ExitPosition reports whether the managed position should be closed.
func (r CheckResult) ExitPosition() bool {
	return r.Kind != Pass
}

// Manager is the account circuit breaker. Once a latching rule fires every
// later Check returns Halted until ResumeTrading.
//
// Manager has no calendar: the driver calls ResetDailyStats once per
// trading day.
type Manager struct {
	Rules Rules

	dailyStartEquity  float64
	consecutiveWins   int
	consecutiveLosses int

	stopped bool
	cause   Kind
	reason  string
}

func NewManager(rules Rules, startEquity float64) *Manager {
	return &Manager{Rules: rules, dailyStartEquity: startEquity}
}

// Check evaluates the rules in a fixed order and returns the first that
// fires.
func (m *Manager) Check(equity, drawdown, price float64) CheckResult {
	if m.stopped {
		return CheckResult{Kind: Halted, Cause: m.cause, Reason: m.reason}
	}

	r := m.Rules
	if r.MaxDrawdown != nil && drawdown > *r.MaxDrawdown {
		return m.latch(CheckResult{
			Kind:   MaxDrawdownExceeded,
			Reason: fmt.Sprintf("drawdown %.2f%% exceeds max %.2f%%", 100*drawdown, 100 * *r.MaxDrawdown),
			Value:  drawdown,
			Limit:  *r.MaxDrawdown,
		})
	}
	if r.MaxDailyLoss != nil && m.dailyStartEquity > 0 {
		loss := (m.dailyStartEquity - equity) / m.dailyStartEquity
		if loss > *r.MaxDailyLoss {
			return m.latch(CheckResult{
				Kind:   MaxDailyLossExceeded,
				Reason: fmt.Sprintf("daily loss %.2f%% exceeds max %.2f%%", 100*loss, 100 * *r.MaxDailyLoss),
				Value:  loss,
				Limit:  *r.MaxDailyLoss,
			})
		}
	}
	if r.MaxConsecutiveLosses != nil && m.consecutiveLosses >= *r.MaxConsecutiveLosses {
		return m.latch(CheckResult{
			Kind:   MaxConsecutiveLossesReached,
			Reason: fmt.Sprintf("%d consecutive losses >= max %d", m.consecutiveLosses, *r.MaxConsecutiveLosses),
			Value:  float64(m.consecutiveLosses),
			Limit:  float64(*r.MaxConsecutiveLosses),
		})
	}
	if r.MinEquity != nil && equity < *r.MinEquity {
		return m.latch(CheckResult{
			Kind:   MinEquityBreached,
			Reason: fmt.Sprintf("equity %.2f below min %.2f", equity, *r.MinEquity),
			Value:  equity,
			Limit:  *r.MinEquity,
		})
	}
	if r.StopLossPrice != nil && price <= *r.StopLossPrice {
		return CheckResult{
			Kind:   StopLossTriggered,
			Reason: fmt.Sprintf("price %g <= stop %g", price, *r.StopLossPrice),
			Value:  price,
			Limit:  *r.StopLossPrice,
		}
	}
	if r.TakeProfitPrice != nil && price >= *r.TakeProfitPrice {
		return CheckResult{
			Kind:   TakeProfitTriggered,
			Reason: fmt.Sprintf("price %g >= target %g", price, *r.TakeProfitPrice),
			Value:  price,
			Limit:  *r.TakeProfitPrice,
		}
	}
	return CheckResult{Kind: Pass}
}

func (m *Manager) latch(res CheckResult) CheckResult {
	m.stopped = true
	m.cause = res.Kind
	m.reason = res.Reason
	return res
}

// RecordTradeResult extends one streak and zeroes the other.
func (m *Manager) RecordTradeResult(win bool) {
	if win {
		m.consecutiveWins++
		m.consecutiveLosses = 0
		return
	}
	m.consecutiveLosses++
	m.consecutiveWins = 0
}

// ResetDailyStats starts a new trading day at equity.
func (m *Manager) ResetDailyStats(equity float64) {
	m.dailyStartEquity = equity
}

// ResumeTrading clears the halt and the loss streak.
func (m *Manager) ResumeTrading() {
	m.stopped = false
	m.cause = Pass
	m.reason = ""
	m.consecutiveLosses = 0
}

func (m *Manager) ShouldStopTrading() bool { return m.stopped }

// StopReason is empty while trading is active.
func (m *Manager) StopReason() string { return m.reason }

func (m *Manager) ConsecutiveWins() int      { return m.consecutiveWins }
func (m *Manager) ConsecutiveLosses() int    { return m.consecutiveLosses }
func (m *Manager) DailyStartEquity() float64 { return m.dailyStartEquity }
