package backtest

import (
	"testing"
	"time"

	"github.com/rustyeddy/quantsim/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourly(cs ...float64) []market.Kline {
	out := make([]market.Kline, len(cs))
	for i, c := range cs {
		out[i] = market.Kline{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return out
}

func signals(s Strategy, ks []market.Kline) []Signal {
	out := make([]Signal, len(ks))
	for i, k := range ks {
		out[i] = s.OnKline(k)
	}
	return out
}

func TestSMACrossSignals(t *testing.T) {
	t.Parallel()

	s, err := NewSMACross(2, 3)
	require.NoError(t, err)
	assert.Equal(t, "sma_cross(2,3)", s.Name())

	got := signals(s, hourly(10, 10, 10, 12, 13, 8, 7))
	assert.Equal(t, []Signal{Hold, Hold, Hold, Enter, Hold, Exit, Hold}, got)

	// reset forgets the warmup and the last difference
	s.Reset()
	assert.Equal(t, []Signal{Hold, Hold, Hold}, signals(s, hourly(10, 10, 12)))
}

func TestBuyAndHold(t *testing.T) {
	t.Parallel()

	s := &BuyAndHold{}
	assert.Equal(t, []Signal{Enter, Hold, Hold}, signals(s, hourly(1, 2, 3)))
	s.Reset()
	assert.Equal(t, Enter, s.OnKline(market.Kline{Close: 1}))
}

func TestStrategyByName(t *testing.T) {
	t.Parallel()

	s, err := StrategyByName("hold", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "hold", s.Name())

	s, err = StrategyByName(" SMA_Cross ", 5, 20)
	require.NoError(t, err)
	assert.Equal(t, "sma_cross(5,20)", s.Name())

	_, err = StrategyByName("sma_cross", 20, 5)
	assert.Error(t, err)
	_, err = StrategyByName("moon", 1, 2)
	assert.Error(t, err)
	assert.Equal(t, "signal(9)", Signal(9).String())
}
