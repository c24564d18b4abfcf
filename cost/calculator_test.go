package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeModels(t *testing.T) {
	t.Parallel()

	tiers := Tiered(
		FeeTier{Threshold: 10000, Rate: 0.0005},
		FeeTier{Threshold: 0, Rate: 0.001},
		FeeTier{Threshold: 100000, Rate: 0.0002},
	)

	tests := []struct {
		name     string
		model    FeeModel
		notional float64
		maker    bool
		want     float64
	}{
		{"none", NoFees(), 5000, false, 0},
		{"fixed", Fixed(2.5), 5000, false, 2.5},
		{"percentage", Percentage(0.001), 5000, false, 5},
		{"tier low", tiers, 5000, false, 5},
		{"tier exact threshold", tiers, 10000, false, 5},
		{"tier mid", tiers, 50000, false, 25},
		{"tier top", tiers, 200000, false, 40},
		{"maker", MakerTaker(0.0002, 0.0007), 10000, true, 2},
		{"taker", MakerTaker(0.0002, 0.0007), 10000, false, 7},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, tt.model.Fee(tt.notional, tt.maker), 1e-9)
		})
	}
}

func TestTieredBelowLowestThreshold(t *testing.T) {
	t.Parallel()

	m := FeeModel{Kind: TieredFee, Tiers: []FeeTier{
		{Threshold: 5000, Rate: 0.002},
		{Threshold: 1000, Rate: 0.003},
	}}
	assert.InDelta(t, 1.5, m.Fee(500, false), 1e-9)
	assert.InDelta(t, 6.0, m.Fee(2000, false), 1e-9)
	assert.InDelta(t, 12.0, m.Fee(6000, false), 1e-9)
}

func TestSlippageModels(t *testing.T) {
	t.Parallel()

	ctx := MarketContext{Volatility: 0.02}
	tests := []struct {
		name  string
		model SlippageModel
		want  float64
	}{
		{"none", SlippageModel{}, 0},
		{"fixed", SlippageModel{Kind: FixedSlippage, Amount: 0.5}, 0.5},
		{"percentage", SlippageModel{Kind: PercentageSlippage, Rate: 0.001}, 0.1},
		{"volume", SlippageModel{Kind: VolumeSlippage, Base: 0.001, VolumeCoefficient: 0.01, ReferenceVolume: 100}, 100 * (0.001 + 0.001)},
		{"volume no reference", SlippageModel{Kind: VolumeSlippage, Base: 0.001, VolumeCoefficient: 0.01}, 0.1},
		{"volatility", SlippageModel{Kind: VolatilitySlippage, Base: 0.001, VolatilityCoefficient: 0.5}, 100 * (0.001 + 0.01)},
		{"dynamic", SlippageModel{Kind: DynamicSlippage, Base: 0.001, VolumeCoefficient: 0.01, ReferenceVolume: 100, VolatilityCoefficient: 0.5}, 100 * (0.001 + 0.001 + 0.01)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// price 100, qty 10
			assert.InDelta(t, tt.want, tt.model.Offset(100, 10, ctx), 1e-9)
		})
	}
}

func TestBuyAddsSellSubtractsSlippage(t *testing.T) {
	t.Parallel()

	c := Calculator{
		Fee:      Percentage(0.001),
		Slippage: SlippageModel{Kind: PercentageSlippage, Rate: 0.01},
	}

	buy := c.BuyCost(100, 10, MarketContext{})
	assert.InDelta(t, 1.0, buy.Slippage, 1e-9)
	assert.InDelta(t, 101.0, buy.ExecutedPrice, 1e-9)
	assert.InDelta(t, 1.01, buy.Fee, 1e-9)
	assert.InDelta(t, 1011.01, buy.TotalCost, 1e-9)

	sell := c.SellCost(100, 10, MarketContext{})
	assert.InDelta(t, 99.0, sell.ExecutedPrice, 1e-9)
	assert.InDelta(t, 0.99, sell.Fee, 1e-9)
	assert.InDelta(t, -(990.0 - 0.99), sell.TotalCost, 1e-9)
}

func TestSellPriceNeverNegative(t *testing.T) {
	t.Parallel()

	c := Calculator{Slippage: SlippageModel{Kind: FixedSlippage, Amount: 5}}
	got := c.SellCost(3, 1, MarketContext{})
	assert.Zero(t, got.ExecutedPrice)
	assert.InDelta(t, 3.0, got.Slippage, 1e-9)
	assert.Zero(t, got.TotalCost)
}

func TestRoundTripWithoutCostsNetsTheSpread(t *testing.T) {
	t.Parallel()

	c := Frictionless()
	for _, tc := range []struct{ p1, p2, q float64 }{
		{100, 110, 100},
		{1.2345, 1.3001, 10000},
		{50, 50.5, 0.25},
	} {
		buy := c.BuyCost(tc.p1, tc.q, MarketContext{})
		sell := c.SellCost(tc.p2, tc.q, MarketContext{})
		assert.InDelta(t, -(tc.p2-tc.p1)*tc.q, buy.TotalCost+sell.TotalCost, 1e-6)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Frictionless().Validate())
	assert.ErrorIs(t, Calculator{Fee: Percentage(-0.1)}.Validate(), ErrInvalidModel)
	assert.ErrorIs(t, Calculator{Fee: FeeModel{Kind: TieredFee}}.Validate(), ErrInvalidModel)
	assert.ErrorIs(t, Calculator{Slippage: SlippageModel{Kind: VolumeSlippage, Base: -1}}.Validate(), ErrInvalidModel)
}

func TestParseKinds(t *testing.T) {
	t.Parallel()

	for _, k := range []FeeKind{NoFee, FixedFee, PercentageFee, TieredFee, MakerTakerFee} {
		got, err := ParseFeeKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	for _, k := range []SlippageKind{NoSlippage, FixedSlippage, PercentageSlippage, VolumeSlippage, VolatilitySlippage, DynamicSlippage} {
		got, err := ParseSlippageKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseFeeKind("flat")
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestSlippageValidateReportsFirstBadField(t *testing.T) {
	t.Parallel()

	m := SlippageModel{Kind: DynamicSlippage, Base: -1, VolumeCoefficient: -2, VolatilityCoefficient: -3}
	for i := 0; i < 20; i++ {
		err := m.Validate()
		require.ErrorIs(t, err, ErrInvalidModel)
		assert.Contains(t, err.Error(), "slippage base must be >= 0")
	}
}
