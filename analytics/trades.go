package analytics

import (
	"math"
	"time"

	"github.com/rustyeddy/quantsim/market"
	"github.com/rustyeddy/quantsim/order"
)

// RoundTrip is an entry fill paired with the exit fill that closed it.
type RoundTrip struct {
	Symbol     string      `json:"symbol"`
	Side       market.Side `json:"side"`
	EntryTime  time.Time   `json:"entry_time"`
	ExitTime   time.Time   `json:"exit_time"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	Quantity   float64     `json:"quantity"`
	Fees       float64     `json:"fees"`
	PnL        float64     `json:"pnl"`
}

func (r RoundTrip) Win() bool { return r.PnL > 0 }

func (r RoundTrip) Holding() time.Duration { return r.ExitTime.Sub(r.EntryTime) }

// RoundTrips pairs trades in order, [0,1], [2,3], ... An unpaired
// trailing trade is ignored.
func RoundTrips(trades []order.Trade) []RoundTrip {
	out := make([]RoundTrip, 0, len(trades)/2)
	for i := 0; i+1 < len(trades); i += 2 {
		entry, exit := trades[i], trades[i+1]
		fees := entry.FeeOrZero() + exit.FeeOrZero()
		gross := (exit.Price - entry.Price) * entry.Quantity * float64(entry.Side)
		out = append(out, RoundTrip{
			Symbol:     entry.Symbol,
			Side:       entry.Side,
			EntryTime:  entry.Timestamp,
			ExitTime:   exit.Timestamp,
			EntryPrice: entry.Price,
			ExitPrice:  exit.Price,
			Quantity:   entry.Quantity,
			Fees:       fees,
			PnL:        gross - fees,
		})
	}
	return out
}

// WinRate is the percentage (0-100) of round trips with positive PnL.
func WinRate(trips []RoundTrip) float64 {
	if len(trips) == 0 {
		return 0
	}
	var wins int
	for _, r := range trips {
		if r.Win() {
			wins++
		}
	}
	return float64(wins) / float64(len(trips)) * 100
}

// ProfitFactor is gross wins over gross losses: 0 with no trades and
// Unbounded when nothing lost.
func ProfitFactor(trips []RoundTrip) float64 {
	if len(trips) == 0 {
		return 0
	}
	var won, lost float64
	for _, r := range trips {
		if r.PnL > 0 {
			won += r.PnL
		} else {
			lost += -r.PnL
		}
	}
	if lost == 0 {
		if won == 0 {
			return 0
		}
		return Unbounded
	}
	return won / lost
}

// Streaks returns the longest runs of consecutive wins and losses.
func Streaks(trips []RoundTrip) (wins, losses int) {
	var w, l int
	for _, r := range trips {
		if r.Win() {
			w++
			l = 0
		} else {
			l++
			w = 0
		}
		wins = max(wins, w)
		losses = max(losses, l)
	}
	return wins, losses
}

func AverageHoldingPeriod(trips []RoundTrip) time.Duration {
	if len(trips) == 0 {
		return 0
	}
	var total time.Duration
	for _, r := range trips {
		total += r.Holding()
	}
	return total / time.Duration(len(trips))
}

// LargestWin is the best PnL, 0 when nothing won.
func LargestWin(trips []RoundTrip) float64 {
	var best float64
	for _, r := range trips {
		best = math.Max(best, r.PnL)
	}
	return best
}

// LargestLoss is the worst PnL as a non-positive number.
func LargestLoss(trips []RoundTrip) float64 {
	var worst float64
	for _, r := range trips {
		worst = math.Min(worst, r.PnL)
	}
	return worst
}
