package risk

import (
	"math"
	"testing"

	"github.com/rustyeddy/quantsim/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionSize(t *testing.T) {
	t.Parallel()

	pyramid := Sizing{Kind: Pyramid, InitialPct: 0.1, ProfitThreshold: 0.05, MaxPct: 0.3, Increment: 0.05}

	tests := []struct {
		name   string
		pm     PositionManager
		equity float64
		profit float64
		want   float64
	}{
		{"fixed amount", PositionManager{Strategy: Sizing{Kind: FixedAmount, Amount: 1500}}, 10000, 0, 1500},
		{"fixed amount capped by equity", PositionManager{Strategy: Sizing{Kind: FixedAmount, Amount: 50000}}, 10000, 0, 10000},
		{"fixed percentage", PositionManager{Strategy: Sizing{Kind: FixedPercentage, Percentage: 0.25}}, 10000, 0, 2500},
		{"half kelly", PositionManager{Strategy: Sizing{Kind: Kelly, WinRate: 0.6, ProfitLossRatio: 2, KellyFraction: 0.5}}, 10000, 0, 2000},
		{"negative edge kelly", PositionManager{Strategy: Sizing{Kind: Kelly, WinRate: 0.2, ProfitLossRatio: 1, KellyFraction: 1}}, 10000, 0, 0},
		{"pyramid initial", PositionManager{Strategy: pyramid}, 10000, 0.01, 1000},
		{"pyramid two steps", PositionManager{Strategy: pyramid}, 10000, 0.11, 2000},
		{"pyramid capped", PositionManager{Strategy: pyramid}, 10000, 1.0, 3000},
		{"pyramid losing", PositionManager{Strategy: pyramid}, 10000, -0.2, 1000},
		{"all in", PositionManager{Strategy: Sizing{Kind: AllIn}}, 10000, 0, 10000},
		{"leverage", PositionManager{Strategy: Sizing{Kind: FixedPercentage, Percentage: 0.5}, MaxLeverage: 3}, 10000, 0, 15000},
		{"leverage cap", PositionManager{Strategy: Sizing{Kind: AllIn}, MaxLeverage: 2}, 10000, 0, 20000},
		{"min floor", PositionManager{Strategy: Sizing{Kind: FixedPercentage, Percentage: 0.01}, MinPositionValue: 500}, 10000, 0, 500},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.pm.PositionSize(tt.equity, tt.profit)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestPositionSizeRejectsBadInput(t *testing.T) {
	t.Parallel()

	ok := Sizing{Kind: FixedPercentage, Percentage: 0.1}
	tests := []struct {
		name   string
		pm     PositionManager
		equity float64
	}{
		{"zero equity", PositionManager{Strategy: ok}, 0},
		{"negative equity", PositionManager{Strategy: ok}, -1},
		{"nan equity", PositionManager{Strategy: ok}, math.NaN()},
		{"percentage above one", PositionManager{Strategy: Sizing{Kind: FixedPercentage, Percentage: 1.5}}, 1000},
		{"win rate out of range", PositionManager{Strategy: Sizing{Kind: Kelly, WinRate: -0.1, ProfitLossRatio: 1, KellyFraction: 1}}, 1000},
		{"zero profit loss ratio", PositionManager{Strategy: Sizing{Kind: Kelly, WinRate: 0.5, KellyFraction: 1}}, 1000},
		{"zero pyramid threshold", PositionManager{Strategy: Sizing{Kind: Pyramid, InitialPct: 0.1, MaxPct: 0.2}}, 1000},
		{"negative leverage", PositionManager{Strategy: ok, MaxLeverage: -2}, 1000},
		{"unknown kind", PositionManager{Strategy: Sizing{Kind: SizingKind(42)}}, 1000},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.pm.PositionSize(tt.equity, 0)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestQuantity(t *testing.T) {
	t.Parallel()

	q, err := Quantity(2000, 40)
	require.NoError(t, err)
	assert.Equal(t, 50.0, q)

	_, err = Quantity(2000, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestParseSizingKind(t *testing.T) {
	t.Parallel()

	for _, k := range []SizingKind{FixedAmount, FixedPercentage, Kelly, Pyramid, AllIn} {
		got, err := ParseSizingKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseSizingKind("martingale")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestRRAndProtective(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 2.0, RR(100, 95, 110), 1e-12)
	assert.Zero(t, RR(100, 100, 110))
	assert.InDelta(t, 0.05, RiskPct(100, 100, 95, 10000), 1e-12)
	assert.True(t, math.IsInf(RiskPct(1, 100, 95, 0), 1))

	stop, target := Protective(market.Buy, 100, 0.02, 3)
	assert.InDelta(t, 98, stop, 1e-9)
	assert.InDelta(t, 106, target, 1e-9)

	stop, target = Protective(market.Sell, 100, 0.02, 3)
	assert.InDelta(t, 102, stop, 1e-9)
	assert.InDelta(t, 94, target, 1e-9)
}

func TestPyramidValidateReportsFirstBadField(t *testing.T) {
	t.Parallel()

	s := Sizing{Kind: Pyramid, InitialPct: 2, MaxPct: 3, Increment: -1, ProfitThreshold: 0.05}
	for i := 0; i < 20; i++ {
		err := s.Validate()
		require.ErrorIs(t, err, ErrInvalidParameter)
		assert.Contains(t, err.Error(), "initial must be in [0,1]")
	}
}
