package cost

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidModel = errors.New("invalid cost model")

type FeeKind int

const (
	NoFee FeeKind = iota
	FixedFee
	PercentageFee
	TieredFee
	MakerTakerFee
)

func (k FeeKind) String() string {
	switch k {
	case NoFee:
		return "none"
	case FixedFee:
		return "fixed"
	case PercentageFee:
		return "percentage"
	case TieredFee:
		return "tiered"
	case MakerTakerFee:
		return "maker_taker"
	default:
		return fmt.Sprintf("fee(%d)", int(k))
	}
}

// ParseFeeKind maps the config spelling to a FeeKind. "" means none.
func ParseFeeKind(s string) (FeeKind, error) {
	switch s {
	case "", "none":
		return NoFee, nil
	case "fixed":
		return FixedFee, nil
	case "percentage", "percent":
		return PercentageFee, nil
	case "tiered":
		return TieredFee, nil
	case "maker_taker", "makertaker":
		return MakerTakerFee, nil
	default:
		return 0, fmt.Errorf("%w: unknown fee kind %q", ErrInvalidModel, s)
	}
}

// FeeTier applies Rate once notional reaches Threshold.
type FeeTier struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Rate      float64 `yaml:"rate" json:"rate"`
}

// FeeModel is a closed set of fee schedules; only the fields used by Kind
// are read.
type FeeModel struct {
	Kind   FeeKind
	Amount float64   // FixedFee, per fill
	Rate   float64   // PercentageFee
	Tiers  []FeeTier // TieredFee, any order
	Maker  float64   // MakerTakerFee
	Taker  float64   // MakerTakerFee
}

func NoFees() FeeModel                 { return FeeModel{Kind: NoFee} }
func Fixed(amount float64) FeeModel    { return FeeModel{Kind: FixedFee, Amount: amount} }
func Percentage(rate float64) FeeModel { return FeeModel{Kind: PercentageFee, Rate: rate} }
func MakerTaker(maker, taker float64) FeeModel {
	return FeeModel{Kind: MakerTakerFee, Maker: maker, Taker: taker}
}

func Tiered(tiers ...FeeTier) FeeModel {
	ts := append([]FeeTier(nil), tiers...)
	sort.Slice(ts, func(i, j int) bool { return ts[i].Threshold < ts[j].Threshold })
	return FeeModel{Kind: TieredFee, Tiers: ts}
}

// Fee is the charge for a fill of the given notional.
func (m FeeModel) Fee(notional float64, isMaker bool) float64 {
	switch m.Kind {
	case NoFee:
		return 0
	case FixedFee:
		return m.Amount
	case PercentageFee:
		return notional * m.Rate
	case TieredFee:
		return notional * m.tierRate(notional)
	case MakerTakerFee:
		if isMaker {
			return notional * m.Maker
		}
		return notional * m.Taker
	default:
		return 0
	}
}

// tierRate picks the highest tier whose threshold the notional reaches.
// Below every threshold the lowest tier applies.
func (m FeeModel) tierRate(notional float64) float64 {
	if len(m.Tiers) == 0 {
		return 0
	}
	lowest := m.Tiers[0]
	best, found := lowest, false
	for _, t := range m.Tiers {
		if t.Threshold < lowest.Threshold {
			lowest = t
		}
		if t.Threshold <= notional && (!found || t.Threshold >= best.Threshold) {
			best, found = t, true
		}
	}
	if !found {
		return lowest.Rate
	}
	return best.Rate
}

func (m FeeModel) Validate() error {
	neg := func(name string, v float64) error {
		if v < 0 {
			return fmt.Errorf("%w: %s fee %s must be >= 0, got %v", ErrInvalidModel, m.Kind, name, v)
		}
		return nil
	}
	switch m.Kind {
	case NoFee:
		return nil
	case FixedFee:
		return neg("amount", m.Amount)
	case PercentageFee:
		return neg("rate", m.Rate)
	case TieredFee:
		if len(m.Tiers) == 0 {
			return fmt.Errorf("%w: tiered fee needs at least one tier", ErrInvalidModel)
		}
		for _, t := range m.Tiers {
			if err := neg("tier rate", t.Rate); err != nil {
				return err
			}
			if err := neg("tier threshold", t.Threshold); err != nil {
				return err
			}
		}
		return nil
	case MakerTakerFee:
		if err := neg("maker", m.Maker); err != nil {
			return err
		}
		return neg("taker", m.Taker)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidModel, m.Kind)
	}
}

type SlippageKind int

const (
	NoSlippage SlippageKind = iota
	FixedSlippage
	PercentageSlippage
	VolumeSlippage
	VolatilitySlippage
	DynamicSlippage
)

func (k SlippageKind) String() string {
	switch k {
	case NoSlippage:
		return "none"
	case FixedSlippage:
		return "fixed"
	case PercentageSlippage:
		return "percentage"
	case VolumeSlippage:
		return "volume"
	case VolatilitySlippage:
		return "volatility"
	case DynamicSlippage:
		return "dynamic"
	default:
		return fmt.Sprintf("slippage(%d)", int(k))
	}
}

func ParseSlippageKind(s string) (SlippageKind, error) {
	switch s {
	case "", "none":
		return NoSlippage, nil
	case "fixed":
		return FixedSlippage, nil
	case "percentage", "percent":
		return PercentageSlippage, nil
	case "volume", "volume_based":
		return VolumeSlippage, nil
	case "volatility", "volatility_based":
		return VolatilitySlippage, nil
	case "dynamic":
		return DynamicSlippage, nil
	default:
		return 0, fmt.Errorf("%w: unknown slippage kind %q", ErrInvalidModel, s)
	}
}

// SlippageModel is a closed set of slippage rules. FixedSlippage is an
// absolute price offset; every other kind yields a rate applied to price.
type SlippageModel struct {
	Kind                  SlippageKind
	Amount                float64 // FixedSlippage
	Rate                  float64 // PercentageSlippage
	Base                  float64 // volume, volatility, dynamic
	VolumeCoefficient     float64
	ReferenceVolume       float64
	VolatilityCoefficient float64
}

// Offset is the price distance the fill moves against the trader.
func (m SlippageModel) Offset(price, qty float64, ctx MarketContext) float64 {
	switch m.Kind {
	case NoSlippage:
		return 0
	case FixedSlippage:
		return m.Amount
	case PercentageSlippage:
		return price * m.Rate
	case VolumeSlippage:
		return price * (m.Base + m.volumeTerm(qty))
	case VolatilitySlippage:
		return price * (m.Base + ctx.Volatility*m.VolatilityCoefficient)
	case DynamicSlippage:
		return price * (m.Base + m.volumeTerm(qty) + ctx.Volatility*m.VolatilityCoefficient)
	default:
		return 0
	}
}

func (m SlippageModel) volumeTerm(qty float64) float64 {
	if m.ReferenceVolume <= 0 {
		return 0
	}
	return qty / m.ReferenceVolume * m.VolumeCoefficient
}

func (m SlippageModel) Validate() error {
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"amount", m.Amount},
		{"rate", m.Rate},
		{"base", m.Base},
		{"volume coefficient", m.VolumeCoefficient},
		{"reference volume", m.ReferenceVolume},
		{"volatility coefficient", m.VolatilityCoefficient},
	} {
		if p.v < 0 {
			return fmt.Errorf("%w: %s slippage %s must be >= 0, got %v", ErrInvalidModel, m.Kind, p.name, p.v)
		}
	}
	if m.Kind < NoSlippage || m.Kind > DynamicSlippage {
		return fmt.Errorf("%w: %s", ErrInvalidModel, m.Kind)
	}
	return nil
}
